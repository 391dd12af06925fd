package accounts_repo

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	GetAccountByIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Account, error)
	GetAccountForOwnerTx(ctx context.Context, querier domain.Querier, ownerID string) (*domain.Account, error)
	LockAccountByIDTx(ctx context.Context, querier domain.Querier, accountID string) (*domain.Account, error)
	UpdateBalanceTx(ctx context.Context, querier domain.Querier, accountID string, balance decimal.Decimal) error
	UpdateStatusTx(ctx context.Context, querier domain.Querier, accountID string, status domain.AccountStatus) error
}
