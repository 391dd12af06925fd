package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "Active"
	AccountStatusFrozen AccountStatus = "Frozen"
	AccountStatusClosed AccountStatus = "Closed"
)

// accountTransitions lists, for every state, the states it may move to.
// Closed has no entry and is therefore terminal.
var accountTransitions = map[AccountStatus][]AccountStatus{
	AccountStatusActive: {AccountStatusFrozen, AccountStatusClosed},
	AccountStatusFrozen: {AccountStatusActive, AccountStatusClosed},
}

// ParseAccountStatus accepts exactly the three stored values, case-insensitively.
func ParseAccountStatus(s string) (AccountStatus, error) {
	for _, st := range []AccountStatus{AccountStatusActive, AccountStatusFrozen, AccountStatusClosed} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown account status %q", s)
}

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusFrozen, AccountStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target.
func (s AccountStatus) CanTransitionTo(target AccountStatus) bool {
	for _, allowed := range accountTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// StatusAction is the customer-facing freeze/unfreeze request.
type StatusAction string

const (
	StatusActionFreeze   StatusAction = "FREEZE"
	StatusActionUnfreeze StatusAction = "UNFREEZE"
)

// ParseStatusAction maps FREEZE/UNFREEZE to the target status.
func ParseStatusAction(s string) (AccountStatus, error) {
	switch StatusAction(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActionFreeze:
		return AccountStatusFrozen, nil
	case StatusActionUnfreeze:
		return AccountStatusActive, nil
	}
	return "", fmt.Errorf("%w: action must be FREEZE or UNFREEZE, got %q", ErrInvalidTransition, s)
}

type Account struct {
	ID        string
	OwnerID   string
	Balance   decimal.Decimal
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Account) IsActive() bool { return a.Status == AccountStatusActive }
func (a *Account) IsFrozen() bool { return a.Status == AccountStatusFrozen }
func (a *Account) IsClosed() bool { return a.Status == AccountStatusClosed }
