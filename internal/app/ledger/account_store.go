package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/util"
)

// ValidateAmount accepts strictly positive amounts with at most two
// fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero, got %s", domain.ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", domain.ErrInvalidAmount, amount)
	}
	return nil
}

// AccountStore owns the deposit-account record and its lifecycle. Every
// method runs on the caller's querier, normally an open transaction.
type AccountStore struct {
	repo   accounts_repo.AccountRepository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// maxIDAttempts bounds how many generated ids Create tries before giving up.
const maxIDAttempts = 5

func NewAccountStore(repo accounts_repo.AccountRepository, logger *zap.Logger) *AccountStore {
	return &AccountStore{repo: repo, logger: logger, now: time.Now, newID: util.GenerateAccountID}
}

// Create opens an Active account for ownerID. A nil or negative initial
// balance is coerced to zero.
func (s *AccountStore) Create(ctx context.Context, q domain.Querier, ownerID string, initialBalance *decimal.Decimal) (*domain.Account, error) {
	existing, err := s.repo.GetAccountForOwnerTx(ctx, q, ownerID)
	if err == nil {
		return nil, fmt.Errorf("owner %s already has account %s: %w", ownerID, existing.ID, domain.ErrAccountAlreadyExists)
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	balance := decimal.Zero
	if initialBalance != nil {
		switch {
		case initialBalance.IsNegative():
			s.logger.Warn("Negative initial balance coerced to zero",
				zap.String("owner_id", ownerID),
				zap.String("initial_balance", initialBalance.String()))
		case !initialBalance.Equal(initialBalance.Truncate(2)):
			return nil, fmt.Errorf("%w: initial balance %s has more than two decimal places", domain.ErrInvalidAmount, initialBalance)
		default:
			balance = *initialBalance
		}
	}

	now := s.now().UTC()
	account := &domain.Account{
		OwnerID:   ownerID,
		Balance:   balance,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		account.ID = s.newID()
		err := s.repo.CreateAccountTx(ctx, q, account)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, domain.ErrIDCollision) {
			return nil, err
		}
		s.logger.Warn("Generated account id already in use, retrying",
			zap.String("account_id", account.ID),
			zap.Int("attempt", attempt))
	}
	return nil, domain.NewStorageError("create account", fmt.Errorf("no free account id after %d attempts: %w", maxIDAttempts, domain.ErrIDCollision))
}

func (s *AccountStore) Get(ctx context.Context, q domain.Querier, ownerID string) (*domain.Account, error) {
	return s.repo.GetAccountForOwnerTx(ctx, q, ownerID)
}

// GetForUpdate resolves the owner's account and locks its row.
func (s *AccountStore) GetForUpdate(ctx context.Context, q domain.Querier, ownerID string) (*domain.Account, error) {
	account, err := s.repo.GetAccountForOwnerTx(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.LockAccountByIDTx(ctx, q, account.ID)
}

func (s *AccountStore) LockByID(ctx context.Context, q domain.Querier, accountID string) (*domain.Account, error) {
	return s.repo.LockAccountByIDTx(ctx, q, accountID)
}

func (s *AccountStore) Credit(ctx context.Context, q domain.Querier, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.repo.LockAccountByIDTx(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.creditLocked(ctx, q, account, amount); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountStore) Debit(ctx context.Context, q domain.Querier, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.repo.LockAccountByIDTx(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.debitLocked(ctx, q, account, amount); err != nil {
		return nil, err
	}
	return account, nil
}

// creditLocked and debitLocked expect account to be row-locked already.
// On success account carries the new balance.
func (s *AccountStore) creditLocked(ctx context.Context, q domain.Querier, account *domain.Account, amount decimal.Decimal) error {
	if !account.IsActive() {
		return fmt.Errorf("cannot credit account %s with status %s: %w", account.ID, account.Status, domain.ErrAccountNotActive)
	}
	balance := account.Balance.Add(amount)
	if err := s.repo.UpdateBalanceTx(ctx, q, account.ID, balance); err != nil {
		return err
	}
	account.Balance = balance
	return nil
}

func (s *AccountStore) debitLocked(ctx context.Context, q domain.Querier, account *domain.Account, amount decimal.Decimal) error {
	if !account.IsActive() {
		return fmt.Errorf("cannot debit account %s with status %s: %w", account.ID, account.Status, domain.ErrAccountNotActive)
	}
	if account.Balance.LessThan(amount) {
		return fmt.Errorf("account %s balance %s is below %s: %w", account.ID, account.Balance, amount, domain.ErrInsufficientFunds)
	}
	balance := account.Balance.Sub(amount)
	if err := s.repo.UpdateBalanceTx(ctx, q, account.ID, balance); err != nil {
		return err
	}
	account.Balance = balance
	return nil
}

// SetStatus moves the account to target if the lifecycle allows it.
// Disallowed moves leave the account untouched.
func (s *AccountStore) SetStatus(ctx context.Context, q domain.Querier, accountID string, target domain.AccountStatus) (*domain.Account, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown target status %q", domain.ErrInvalidTransition, target)
	}
	account, err := s.repo.LockAccountByIDTx(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	if !account.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, account.Status, target)
	}
	if err := s.repo.UpdateStatusTx(ctx, q, account.ID, target); err != nil {
		return nil, err
	}
	account.Status = target
	account.UpdatedAt = s.now().UTC()
	return account, nil
}

func (s *AccountStore) Close(ctx context.Context, q domain.Querier, accountID string) (*domain.Account, error) {
	return s.SetStatus(ctx, q, accountID, domain.AccountStatusClosed)
}
