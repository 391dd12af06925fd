package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type CardStatus string

const (
	CardStatusActive   CardStatus = "ACTIVE"
	CardStatusInactive CardStatus = "INACTIVE"
	CardStatusFrozen   CardStatus = "FROZEN"
)

func ParseCardStatus(s string) (CardStatus, error) {
	switch st := CardStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case CardStatusActive, CardStatusInactive, CardStatusFrozen:
		return st, nil
	}
	return "", fmt.Errorf("unknown card status %q", s)
}

type CardAction string

const (
	CardActionActivate   CardAction = "ACTIVATE"
	CardActionDeactivate CardAction = "DEACTIVATE"
	CardActionFreeze     CardAction = "FREEZE"
	CardActionUnfreeze   CardAction = "UNFREEZE"
)

func ParseCardAction(s string) (CardAction, error) {
	switch a := CardAction(strings.ToUpper(strings.TrimSpace(s))); a {
	case CardActionActivate, CardActionDeactivate, CardActionFreeze, CardActionUnfreeze:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCardAction, s)
}

const (
	DefaultCardTransactionLimit = 5000
	MinCardTransactionLimit     = 100
	MaxCardTransactionLimit     = 10000
)

var pinPattern = regexp.MustCompile(`^\d{6}$`)

// ValidPIN reports whether pin is exactly six digits.
func ValidPIN(pin string) bool { return pinPattern.MatchString(pin) }

// ValidCardLimit enforces MinCardTransactionLimit < limit <= MaxCardTransactionLimit.
func ValidCardLimit(limit int) bool {
	return limit > MinCardTransactionLimit && limit <= MaxCardTransactionLimit
}

type Card struct {
	ID               string
	AccountID        string
	CardNumber       string
	TransactionLimit int
	Status           CardStatus
	PINHash          []byte
	CreatedAt        time.Time
}

// SyncedCardStatus derives the card status forced by the linked account.
// An Active account leaves the card's own status untouched.
func SyncedCardStatus(account AccountStatus, card CardStatus) CardStatus {
	switch account {
	case AccountStatusFrozen:
		return CardStatusFrozen
	case AccountStatusClosed:
		return CardStatusInactive
	default:
		return card
	}
}

// ApplyCardAction returns the status a card moves to under action, given the
// status of its account.
func ApplyCardAction(action CardAction, current CardStatus, account AccountStatus) (CardStatus, error) {
	switch action {
	case CardActionActivate:
		if account != AccountStatusActive {
			return "", fmt.Errorf("%w: linked account must be Active to activate", ErrAccountNotActive)
		}
		if current == CardStatusActive {
			return "", fmt.Errorf("%w: card already ACTIVE", ErrInvalidCardAction)
		}
		if current == CardStatusFrozen {
			return "", fmt.Errorf("%w: frozen card must be unfrozen, not activated", ErrInvalidCardAction)
		}
		return CardStatusActive, nil
	case CardActionDeactivate:
		if current == CardStatusInactive {
			return "", fmt.Errorf("%w: card already INACTIVE", ErrInvalidCardAction)
		}
		if current == CardStatusFrozen {
			return "", fmt.Errorf("%w: frozen card cannot be deactivated", ErrInvalidCardAction)
		}
		return CardStatusInactive, nil
	case CardActionFreeze:
		if current != CardStatusActive {
			return "", fmt.Errorf("%w: only ACTIVE cards can be frozen", ErrInvalidCardAction)
		}
		return CardStatusFrozen, nil
	case CardActionUnfreeze:
		if account != AccountStatusActive {
			return "", fmt.Errorf("%w: linked account must be Active to unfreeze", ErrAccountNotActive)
		}
		if current != CardStatusFrozen {
			return "", fmt.Errorf("%w: only FROZEN cards can be unfrozen", ErrInvalidCardAction)
		}
		return CardStatusActive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCardAction, action)
}
