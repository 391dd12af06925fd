package ledger_repo

import (
	"context"

	"ledger/internal/domain"
)

type LedgerRepository interface {
	CreateEntryTx(ctx context.Context, querier domain.Querier, entry *domain.LedgerEntry) error
	ListEntriesTx(ctx context.Context, querier domain.Querier, accountID string, filter domain.EntryFilter) ([]domain.LedgerEntry, error)
	SummarizeTx(ctx context.Context, querier domain.Querier, accountID string, filter domain.EntryFilter) (domain.LedgerSummary, error)
}
