package cards_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ledger/internal/domain"
)

type cardRepository struct{}

func NewCardRepository() *cardRepository {
	return &cardRepository{}
}

func (r *cardRepository) CreateCardTx(ctx context.Context, querier domain.Querier, card *domain.Card) error {
	query := `
		INSERT INTO cards (id, account_id, card_number, transaction_limit, status, pin_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (card_number) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query,
		card.ID,
		card.AccountID,
		card.CardNumber,
		card.TransactionLimit,
		string(card.Status),
		card.PINHash,
		card.CreatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.Constraint {
			case "cards_account_id_key":
				return fmt.Errorf("account %s: %w", card.AccountID, domain.ErrCardAlreadyExists)
			case "cards_card_number_key":
				return fmt.Errorf("card number: %w", domain.ErrIDCollision)
			}
		}
		return domain.NewStorageError("create card", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("create card", err)
	}
	if rows == 0 {
		return fmt.Errorf("card number: %w", domain.ErrIDCollision)
	}
	return nil
}

func (r *cardRepository) GetCardByAccountIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Card, error) {
	query := `
		SELECT id, account_id, card_number, transaction_limit, status, pin_hash, created_at
		FROM cards
		WHERE account_id = $1
	`
	card := &domain.Card{}
	var status string
	err := querier.QueryRowContext(ctx, query, accountID).Scan(
		&card.ID,
		&card.AccountID,
		&card.CardNumber,
		&card.TransactionLimit,
		&status,
		&card.PINHash,
		&card.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, domain.NewStorageError("get card for account "+accountID, err)
	}
	if card.Status, err = domain.ParseCardStatus(status); err != nil {
		return nil, domain.NewStorageError("get card for account "+accountID, err)
	}
	return card, nil
}

func (r *cardRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, cardID string, status domain.CardStatus) error {
	return r.update(ctx, querier, "update card status", `UPDATE cards SET status = $1 WHERE id = $2`, string(status), cardID)
}

func (r *cardRepository) UpdatePINTx(ctx context.Context, querier domain.Querier, cardID string, pinHash []byte) error {
	return r.update(ctx, querier, "update card pin", `UPDATE cards SET pin_hash = $1 WHERE id = $2`, pinHash, cardID)
}

func (r *cardRepository) UpdateLimitTx(ctx context.Context, querier domain.Querier, cardID string, limit int) error {
	return r.update(ctx, querier, "update card limit", `UPDATE cards SET transaction_limit = $1 WHERE id = $2`, limit, cardID)
}

func (r *cardRepository) update(ctx context.Context, querier domain.Querier, op, query string, value any, cardID string) error {
	res, err := querier.ExecContext(ctx, query, value, cardID)
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	if rowsAffected == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}
