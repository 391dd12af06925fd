package util

import (
	"regexp"
	"testing"
)

func TestGenerateAccountID(t *testing.T) {
	re := regexp.MustCompile(`^DA[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateAccountID()
		if !re.MatchString(id) {
			t.Fatalf("unexpected account id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 99 {
		t.Errorf("expected distinct ids, got %d unique of 100", len(seen))
	}
}

func TestGenerateCardNumber(t *testing.T) {
	re := regexp.MustCompile(`^\d{16}$`)
	for i := 0; i < 50; i++ {
		if n := GenerateCardNumber(); !re.MatchString(n) {
			t.Fatalf("unexpected card number %q", n)
		}
	}
}
