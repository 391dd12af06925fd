package ledger

import (
	"context"

	"ledger/internal/domain"
	"ledger/internal/repository/cards_repo"
)

// CardLinkSynchronizer keeps a card's status consistent with its account.
// The relation is one-way: card changes never touch the account.
type CardLinkSynchronizer struct {
	cards cards_repo.CardRepository
}

func NewCardLinkSynchronizer(cards cards_repo.CardRepository) *CardLinkSynchronizer {
	return &CardLinkSynchronizer{cards: cards}
}

// Sync persists the status derived from account and reports whether the
// card changed.
func (s *CardLinkSynchronizer) Sync(ctx context.Context, q domain.Querier, card *domain.Card, account *domain.Account) (bool, error) {
	derived := domain.SyncedCardStatus(account.Status, card.Status)
	if derived == card.Status {
		return false, nil
	}
	if err := s.cards.UpdateStatusTx(ctx, q, card.ID, derived); err != nil {
		return false, err
	}
	card.Status = derived
	return true, nil
}

// Load reads the account's card and synchronizes it before returning.
func (s *CardLinkSynchronizer) Load(ctx context.Context, q domain.Querier, account *domain.Account) (*domain.Card, bool, error) {
	card, err := s.cards.GetCardByAccountIDTx(ctx, q, account.ID)
	if err != nil {
		return nil, false, err
	}
	changed, err := s.Sync(ctx, q, card, account)
	if err != nil {
		return nil, false, err
	}
	return card, changed, nil
}
