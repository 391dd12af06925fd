package cards_repo

import (
	"context"

	"ledger/internal/domain"
)

type CardRepository interface {
	CreateCardTx(ctx context.Context, querier domain.Querier, card *domain.Card) error
	GetCardByAccountIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Card, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, cardID string, status domain.CardStatus) error
	UpdatePINTx(ctx context.Context, querier domain.Querier, cardID string, pinHash []byte) error
	UpdateLimitTx(ctx context.Context, querier domain.Querier, cardID string, limit int) error
}
