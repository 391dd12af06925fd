package customers_repo

import (
	"context"

	"ledger/internal/domain"
)

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, querier domain.Querier, customer *domain.Customer) error
	GetByIdentificationNo(ctx context.Context, querier domain.Querier, identificationNo string) (*domain.Customer, error)
}
