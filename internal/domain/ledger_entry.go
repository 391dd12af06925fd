package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryKindDeposit     EntryKind = "DEPOSIT"
	EntryKindWithdrawal  EntryKind = "WITHDRAWAL"
	EntryKindTransferOut EntryKind = "TRANSFER_OUT"
	EntryKindTransferIn  EntryKind = "TRANSFER_IN"
)

func ParseEntryKind(s string) (EntryKind, error) {
	k := EntryKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryKind, s)
	}
	return k, nil
}

func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindDeposit, EntryKindWithdrawal, EntryKindTransferOut, EntryKindTransferIn:
		return true
	}
	return false
}

// IsCredit reports whether the entry increases the balance.
func (k EntryKind) IsCredit() bool {
	return k == EntryKindDeposit || k == EntryKindTransferIn
}

type LedgerEntry struct {
	ID        string
	AccountID string
	Kind      EntryKind
	Amount    decimal.Decimal
	Note      string
	CreatedAt time.Time
}

// Signed returns the amount with the sign it has on the balance.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Kind.IsCredit() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// EntryFilter selects ledger entries; nil fields match everything.
type EntryFilter struct {
	Kind *EntryKind
	From *time.Time
	To   *time.Time
}

type LedgerSummary struct {
	TotalCredits decimal.Decimal
	TotalDebits  decimal.Decimal
	Net          decimal.Decimal
}

// Summarize folds entries into credit/debit totals. An empty slice gives zeros.
func Summarize(entries []LedgerEntry) LedgerSummary {
	credits, debits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.Kind.IsCredit() {
			credits = credits.Add(e.Amount)
		} else {
			debits = debits.Add(e.Amount)
		}
	}
	return LedgerSummary{
		TotalCredits: credits,
		TotalDebits:  debits,
		Net:          credits.Sub(debits),
	}
}
