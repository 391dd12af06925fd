package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ledger/internal/domain"
	"ledger/internal/util"
)

var pinCost = bcrypt.DefaultCost

func hashPIN(pin string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), pinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}
	return hash, nil
}

func checkPIN(card *domain.Card, pin string) error {
	if err := bcrypt.CompareHashAndPassword(card.PINHash, []byte(pin)); err != nil {
		return fmt.Errorf("%w: pin does not match", domain.ErrInvalidPIN)
	}
	return nil
}

// CreateCard issues the single card of the caller's account. The account
// must be Active; the card starts INACTIVE with the default limit.
func (s *Service) CreateCard(ctx context.Context, identificationNo, password, pin string) (card *domain.Card, err error) {
	ctx, done := s.observe(ctx, "create_card")
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	if !domain.ValidPIN(pin) {
		return nil, fmt.Errorf("%w: pin must be exactly 6 digits", domain.ErrInvalidPIN)
	}
	pinHash, err := hashPIN(pin)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		account, err := s.store.Get(ctx, q, owner.ID)
		if err != nil {
			return err
		}
		if !account.IsActive() {
			return fmt.Errorf("cannot issue card for account %s with status %s: %w", account.ID, account.Status, domain.ErrAccountNotActive)
		}
		if _, err := s.cards.GetCardByAccountIDTx(ctx, q, account.ID); err == nil {
			return fmt.Errorf("account %s: %w", account.ID, domain.ErrCardAlreadyExists)
		} else if !errors.Is(err, domain.ErrCardNotFound) {
			return err
		}

		card = &domain.Card{
			ID:               util.GenerateUUID(),
			AccountID:        account.ID,
			TransactionLimit: domain.DefaultCardTransactionLimit,
			Status:           domain.CardStatusInactive,
			PINHash:          pinHash,
			CreatedAt:        s.now().UTC(),
		}
		if err := s.insertCard(ctx, q, card); err != nil {
			return err
		}
		return s.emitCard(ctx, q, card)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Card issued", zap.String("account_id", card.AccountID), zap.String("card_id", card.ID))
	return card, nil
}

// insertCard stores card under a freshly generated number, drawing again
// when the number is already issued.
func (s *Service) insertCard(ctx context.Context, q domain.Querier, card *domain.Card) error {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		card.CardNumber = s.cardNo()
		err := s.cards.CreateCardTx(ctx, q, card)
		if !errors.Is(err, domain.ErrIDCollision) {
			return err
		}
		s.logger.Warn("Generated card number already in use, retrying", zap.Int("attempt", attempt))
	}
	return domain.NewStorageError("create card", fmt.Errorf("no free card number after %d attempts: %w", maxIDAttempts, domain.ErrIDCollision))
}

// GetCard returns the caller's card after synchronizing it with the account.
func (s *Service) GetCard(ctx context.Context, identificationNo, password string) (card *domain.Card, err error) {
	ctx, done := s.observe(ctx, "get_card")
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		card, _, err = s.loadCard(ctx, q, owner.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Service) UpdateCardStatus(ctx context.Context, identificationNo, password, action, pin string) (*domain.Card, error) {
	cardAction, err := domain.ParseCardAction(action)
	if err != nil {
		return nil, err
	}
	return s.updateCard(ctx, "update_card_status", identificationNo, password, func(ctx context.Context, q domain.Querier, card *domain.Card, account *domain.Account) error {
		if err := checkPIN(card, pin); err != nil {
			return err
		}
		next, err := domain.ApplyCardAction(cardAction, card.Status, account.Status)
		if err != nil {
			return err
		}
		if err := s.cards.UpdateStatusTx(ctx, q, card.ID, next); err != nil {
			return err
		}
		card.Status = next
		return s.emitCard(ctx, q, card)
	})
}

func (s *Service) UpdateCardPIN(ctx context.Context, identificationNo, password, currentPIN, newPIN string) (*domain.Card, error) {
	if !domain.ValidPIN(newPIN) {
		return nil, fmt.Errorf("%w: new pin must be exactly 6 digits", domain.ErrInvalidPIN)
	}
	return s.updateCard(ctx, "update_card_pin", identificationNo, password, func(ctx context.Context, q domain.Querier, card *domain.Card, _ *domain.Account) error {
		if card.Status != domain.CardStatusActive {
			return fmt.Errorf("card %s is %s: %w", card.ID, card.Status, domain.ErrCardNotActive)
		}
		if err := checkPIN(card, currentPIN); err != nil {
			return err
		}
		hash, err := hashPIN(newPIN)
		if err != nil {
			return err
		}
		if err := s.cards.UpdatePINTx(ctx, q, card.ID, hash); err != nil {
			return err
		}
		card.PINHash = hash
		return s.emit(ctx, q, domain.LedgerEvent{
			Type:      domain.EventCardPINChanged,
			AccountID: card.AccountID,
			Status:    string(card.Status),
		})
	})
}

func (s *Service) UpdateCardLimit(ctx context.Context, identificationNo, password string, limit int, pin string) (*domain.Card, error) {
	return s.updateCard(ctx, "update_card_limit", identificationNo, password, func(ctx context.Context, q domain.Querier, card *domain.Card, _ *domain.Account) error {
		if err := checkPIN(card, pin); err != nil {
			return err
		}
		if card.Status != domain.CardStatusActive {
			return fmt.Errorf("card %s is %s: %w", card.ID, card.Status, domain.ErrCardNotActive)
		}
		if !domain.ValidCardLimit(limit) {
			return fmt.Errorf("%w: limit must be above %d and at most %d, got %d",
				domain.ErrInvalidCardLimit, domain.MinCardTransactionLimit, domain.MaxCardTransactionLimit, limit)
		}
		if err := s.cards.UpdateLimitTx(ctx, q, card.ID, limit); err != nil {
			return err
		}
		card.TransactionLimit = limit
		return s.emit(ctx, q, domain.LedgerEvent{
			Type:      domain.EventCardLimitChanged,
			AccountID: card.AccountID,
			Status:    string(card.Status),
			CardLimit: limit,
		})
	})
}

type cardUpdate func(ctx context.Context, q domain.Querier, card *domain.Card, account *domain.Account) error

// updateCard synchronizes the caller's card in its own transaction, so the
// derived status survives a rejected update, then applies fn to a fresh
// locked read in a second transaction.
func (s *Service) updateCard(ctx context.Context, operation, identificationNo, password string, fn cardUpdate) (card *domain.Card, err error) {
	ctx, done := s.observe(ctx, operation)
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		_, _, err := s.loadCard(ctx, q, owner.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		account, err := s.store.GetForUpdate(ctx, q, owner.ID)
		if err != nil {
			return err
		}
		card, err = s.cards.GetCardByAccountIDTx(ctx, q, account.ID)
		if err != nil {
			return err
		}
		if _, err := s.cardSync.Sync(ctx, q, card, account); err != nil {
			return err
		}
		return fn(ctx, q, card, account)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Card updated", zap.String("operation", operation), zap.String("card_id", card.ID), zap.String("status", string(card.Status)))
	return card, nil
}

func (s *Service) loadCard(ctx context.Context, q domain.Querier, ownerID string) (*domain.Card, *domain.Account, error) {
	account, err := s.store.Get(ctx, q, ownerID)
	if err != nil {
		return nil, nil, err
	}
	card, changed, err := s.cardSync.Load(ctx, q, account)
	if err != nil {
		return nil, nil, err
	}
	if changed {
		s.logger.Info("Card status synchronized with account",
			zap.String("card_id", card.ID),
			zap.String("account_status", string(account.Status)),
			zap.String("card_status", string(card.Status)))
		if err := s.emitCard(ctx, q, card); err != nil {
			return nil, nil, err
		}
	}
	return card, account, nil
}

func (s *Service) emitCard(ctx context.Context, q domain.Querier, card *domain.Card) error {
	return s.emit(ctx, q, domain.LedgerEvent{
		Type:      domain.EventCardStatusChanged,
		AccountID: card.AccountID,
		Status:    string(card.Status),
	})
}
