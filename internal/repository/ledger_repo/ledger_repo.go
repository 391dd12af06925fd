package ledger_repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

type ledgerRepository struct{}

func NewLedgerRepository() *ledgerRepository {
	return &ledgerRepository{}
}

func (r *ledgerRepository) CreateEntryTx(ctx context.Context, querier domain.Querier, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, kind, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var note sql.NullString
	if entry.Note != "" {
		note = sql.NullString{String: entry.Note, Valid: true}
	}
	_, err := querier.ExecContext(ctx, query,
		entry.ID,
		entry.AccountID,
		string(entry.Kind),
		entry.Amount,
		note,
		entry.CreatedAt,
	)
	if err != nil {
		return domain.NewStorageError("create ledger entry", err)
	}
	return nil
}

// ListEntriesTx returns matching entries newest first. seq breaks ties
// between entries written within the same timestamp.
func (r *ledgerRepository) ListEntriesTx(ctx context.Context, querier domain.Querier, accountID string, filter domain.EntryFilter) ([]domain.LedgerEntry, error) {
	where, args := buildWhere(accountID, filter)
	query := `
		SELECT id, account_id, kind, amount, note, created_at
		FROM ledger_entries
		WHERE ` + where + `
		ORDER BY created_at DESC, seq DESC
	`
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError("list ledger entries", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			entry domain.LedgerEntry
			kind  string
			note  sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.AccountID, &kind, &entry.Amount, &note, &entry.CreatedAt); err != nil {
			return nil, domain.NewStorageError("scan ledger entry", err)
		}
		entry.Kind, err = domain.ParseEntryKind(kind)
		if err != nil {
			return nil, domain.NewStorageError("scan ledger entry", err)
		}
		entry.Note = note.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate ledger entries", err)
	}
	return entries, nil
}

func (r *ledgerRepository) SummarizeTx(ctx context.Context, querier domain.Querier, accountID string, filter domain.EntryFilter) (domain.LedgerSummary, error) {
	filter.Kind = nil
	where, args := buildWhere(accountID, filter)
	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN kind IN ('%s', '%s') THEN amount END), 0),
			COALESCE(SUM(CASE WHEN kind IN ('%s', '%s') THEN amount END), 0)
		FROM ledger_entries
		WHERE %s
	`, domain.EntryKindDeposit, domain.EntryKindTransferIn,
		domain.EntryKindWithdrawal, domain.EntryKindTransferOut, where)

	var credits, debits decimal.Decimal
	if err := querier.QueryRowContext(ctx, query, args...).Scan(&credits, &debits); err != nil {
		return domain.LedgerSummary{}, domain.NewStorageError("summarize ledger", err)
	}
	return domain.LedgerSummary{
		TotalCredits: credits,
		TotalDebits:  debits,
		Net:          credits.Sub(debits),
	}, nil
}

func buildWhere(accountID string, filter domain.EntryFilter) (string, []any) {
	conds := []string{"account_id = $1"}
	args := []any{accountID}
	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}
