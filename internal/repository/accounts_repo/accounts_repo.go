package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

const (
	uniqueViolation = "23505"

	ownerUniqueConstraint = "accounts_owner_id_key"
	primaryKeyConstraint  = "accounts_pkey"
)

const accountColumns = `id, owner_id, balance, status, created_at, updated_at`

type accountRepository struct{}

func NewAccountRepository() *accountRepository {
	return &accountRepository{}
}

func (r *accountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query,
		account.ID, account.OwnerID, account.Balance, string(account.Status), account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.Constraint {
			case ownerUniqueConstraint:
				return fmt.Errorf("owner %s: %w", account.OwnerID, domain.ErrAccountAlreadyExists)
			case primaryKeyConstraint:
				return fmt.Errorf("account id %s: %w", account.ID, domain.ErrIDCollision)
			}
		}
		return domain.NewStorageError("create account", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("create account", err)
	}
	if rows == 0 {
		return fmt.Errorf("account id %s: %w", account.ID, domain.ErrIDCollision)
	}
	return nil
}

func (r *accountRepository) GetAccountByIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(querier.QueryRowContext(ctx, query, accountID), "get account "+accountID)
}

func (r *accountRepository) GetAccountForOwnerTx(ctx context.Context, querier domain.Querier, ownerID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1`
	return r.scanOne(querier.QueryRowContext(ctx, query, ownerID), "get account for owner "+ownerID)
}

// LockAccountByIDTx reads the row with FOR UPDATE; the lock is held until
// the surrounding transaction ends.
func (r *accountRepository) LockAccountByIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return r.scanOne(querier.QueryRowContext(ctx, query, accountID), "lock account "+accountID)
}

func (r *accountRepository) UpdateBalanceTx(ctx context.Context, querier domain.Querier, accountID string, balance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`
	return r.execOne(ctx, querier, "update balance of "+accountID, query, balance, time.Now().UTC(), accountID)
}

func (r *accountRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, accountID string, status domain.AccountStatus) error {
	query := `
		UPDATE accounts
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	return r.execOne(ctx, querier, "update status of "+accountID, query, string(status), time.Now().UTC(), accountID)
}

func (r *accountRepository) execOne(ctx context.Context, querier domain.Querier, op, query string, args ...any) error {
	res, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) scanOne(row *sql.Row, op string) (*domain.Account, error) {
	account := &domain.Account{}
	var status string
	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.Balance,
		&status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, domain.NewStorageError(op, err)
	}
	account.Status, err = domain.ParseAccountStatus(status)
	if err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	return account, nil
}
