package customers_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ledger/internal/domain"
)

// ErrCustomerAlreadyExists is returned when the identification number is taken.
var ErrCustomerAlreadyExists = errors.New("customer already exists")

type customerRepository struct{}

func NewCustomerRepository() *customerRepository {
	return &customerRepository{}
}

func (r *customerRepository) CreateCustomer(ctx context.Context, querier domain.Querier, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, identification_no, name, email, password_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := querier.ExecContext(ctx, query,
		customer.ID,
		customer.IdentificationNo,
		customer.Name,
		customer.Email,
		customer.PasswordHash,
		customer.Status,
		customer.CreatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("identification no %s: %w", customer.IdentificationNo, ErrCustomerAlreadyExists)
		}
		return domain.NewStorageError("create customer", err)
	}
	return nil
}

func (r *customerRepository) GetByIdentificationNo(ctx context.Context, querier domain.Querier, identificationNo string) (*domain.Customer, error) {
	query := `
		SELECT id, identification_no, name, email, password_hash, status, created_at
		FROM customers
		WHERE identification_no = $1
	`
	customer := &domain.Customer{}
	err := querier.QueryRowContext(ctx, query, identificationNo).Scan(
		&customer.ID,
		&customer.IdentificationNo,
		&customer.Name,
		&customer.Email,
		&customer.PasswordHash,
		&customer.Status,
		&customer.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.NewStorageError("get customer", err)
	}
	return customer, nil
}
