package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventAccountCreated       = "account.created"
	EventAccountStatusChanged = "account.status_changed"
	EventFundsDeposited       = "funds.deposited"
	EventFundsWithdrawn       = "funds.withdrawn"
	EventTransferCompleted    = "transfer.completed"
	EventCardStatusChanged    = "card.status_changed"
	EventCardPINChanged       = "card.pin_changed"
	EventCardLimitChanged     = "card.limit_changed"
)

// LedgerEvent is the JSON payload published for every committed change.
type LedgerEvent struct {
	Type          string           `json:"type"`
	AccountID     string           `json:"account_id"`
	CounterpartID string           `json:"counterpart_account_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	EntryKind     EntryKind        `json:"entry_kind,omitempty"`
	Status        string           `json:"status,omitempty"`
	CardLimit     int              `json:"card_limit,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}
