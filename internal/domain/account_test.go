package domain

import (
	"errors"
	"testing"
)

func TestAccountTransitions(t *testing.T) {
	cases := []struct {
		from, to AccountStatus
		allowed  bool
	}{
		{AccountStatusActive, AccountStatusFrozen, true},
		{AccountStatusActive, AccountStatusClosed, true},
		{AccountStatusActive, AccountStatusActive, false},
		{AccountStatusFrozen, AccountStatusActive, true},
		{AccountStatusFrozen, AccountStatusClosed, true},
		{AccountStatusFrozen, AccountStatusFrozen, false},
		{AccountStatusClosed, AccountStatusActive, false},
		{AccountStatusClosed, AccountStatusFrozen, false},
		{AccountStatusClosed, AccountStatusClosed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestParseAccountStatus(t *testing.T) {
	for in, want := range map[string]AccountStatus{
		"Active": AccountStatusActive,
		"frozen": AccountStatusFrozen,
		"CLOSED": AccountStatusClosed,
	} {
		got, err := ParseAccountStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseAccountStatus(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseAccountStatus("Suspended"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParseStatusAction(t *testing.T) {
	got, err := ParseStatusAction(" freeze ")
	if err != nil || got != AccountStatusFrozen {
		t.Errorf("freeze: got %q, %v", got, err)
	}
	got, err = ParseStatusAction("UNFREEZE")
	if err != nil || got != AccountStatusActive {
		t.Errorf("unfreeze: got %q, %v", got, err)
	}
	if _, err := ParseStatusAction("CLOSE"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(NewStorageError("get account", cause))

	if !errors.Is(err, ErrStorageFailure) {
		t.Error("storage error must match ErrStorageFailure")
	}
	if !errors.Is(err, cause) {
		t.Error("storage error must unwrap to its cause")
	}
	if errors.Is(err, ErrAccountNotFound) {
		t.Error("storage error must not match unrelated errors")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "get account" {
		t.Errorf("errors.As failed: %+v", se)
	}
}
