package util

import (
	"crypto/rand"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	newUUID, err := uuid.NewRandom()
	if err != nil {
		log.Fatalf("Failed to generate UUID: %v", err)
	}
	return newUUID.String()
}

// GenerateAccountID returns "DA" followed by eight upper-case hex digits.
func GenerateAccountID() string {
	return "DA" + strings.ToUpper(GenerateUUID()[:8])
}

// GenerateCardNumber returns a random 16-digit card number.
func GenerateCardNumber() string {
	var sb strings.Builder
	sb.Grow(16)
	ten := big.NewInt(10)
	for sb.Len() < 16 {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			log.Fatalf("Failed to generate card number: %v", err)
		}
		sb.WriteByte(byte('0' + d.Int64()))
	}
	return sb.String()
}
