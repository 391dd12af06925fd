package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/ledger_repo"
	"ledger/internal/util"
)

// TransactionLedger is the append-only movement log of every account.
type TransactionLedger struct {
	entries  ledger_repo.LedgerRepository
	accounts accounts_repo.AccountRepository
	now      func() time.Time
}

func NewTransactionLedger(entries ledger_repo.LedgerRepository, accounts accounts_repo.AccountRepository) *TransactionLedger {
	return &TransactionLedger{entries: entries, accounts: accounts, now: time.Now}
}

// Append records a movement. The account must exist; its status is not
// checked here.
func (l *TransactionLedger) Append(ctx context.Context, q domain.Querier, accountID string, kind domain.EntryKind, amount decimal.Decimal, note string) (*domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: entry amount must be greater than zero, got %s", domain.ErrInvalidAmount, amount)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidEntryKind, kind)
	}
	if _, err := l.accounts.GetAccountByIDTx(ctx, q, accountID); err != nil {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		ID:        util.GenerateUUID(),
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
		Note:      note,
		CreatedAt: l.now().UTC(),
	}
	if err := l.entries.CreateEntryTx(ctx, q, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// History returns every entry of the account, newest first.
func (l *TransactionLedger) History(ctx context.Context, q domain.Querier, accountID string) ([]domain.LedgerEntry, error) {
	return l.entries.ListEntriesTx(ctx, q, accountID, domain.EntryFilter{})
}

// Filter applies every supplied predicate; From and To are inclusive.
func (l *TransactionLedger) Filter(ctx context.Context, q domain.Querier, accountID string, filter domain.EntryFilter) ([]domain.LedgerEntry, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidEntryKind, *filter.Kind)
	}
	return l.entries.ListEntriesTx(ctx, q, accountID, filter)
}

func (l *TransactionLedger) Summarize(ctx context.Context, q domain.Querier, accountID string, from, to *time.Time) (domain.LedgerSummary, error) {
	return l.entries.SummarizeTx(ctx, q, accountID, domain.EntryFilter{From: from, To: to})
}
