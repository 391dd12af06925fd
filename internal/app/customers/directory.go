package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ledger/internal/domain"
	"ledger/internal/util"
)

const StatusActive = "ACTIVE"

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, querier domain.Querier, customer *domain.Customer) error
	GetByIdentificationNo(ctx context.Context, querier domain.Querier, identificationNo string) (*domain.Customer, error)
}

// Directory is the Postgres-backed customer registry. It verifies
// credentials and resolves identification numbers to account owners.
type Directory struct {
	db     domain.Querier
	repo   CustomerRepository
	logger *zap.Logger
}

func NewDirectory(db domain.Querier, repo CustomerRepository, logger *zap.Logger) *Directory {
	return &Directory{db: db, repo: repo, logger: logger}
}

// Verify returns false for unknown, inactive or wrong-password customers.
// Errors are reserved for storage failures.
func (d *Directory) Verify(ctx context.Context, identificationNo, credential string) (bool, error) {
	customer, err := d.repo.GetByIdentificationNo(ctx, d.db, identificationNo)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			d.logger.Info("Login failed: customer not found", zap.String("identification_no", identificationNo))
			return false, nil
		}
		return false, err
	}
	if !strings.EqualFold(customer.Status, StatusActive) {
		d.logger.Info("Login failed: customer not active", zap.String("identification_no", identificationNo))
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword(customer.PasswordHash, []byte(credential)); err != nil {
		d.logger.Info("Login failed: incorrect password", zap.String("identification_no", identificationNo))
		return false, nil
	}
	return true, nil
}

func (d *Directory) ResolveAccountOwner(ctx context.Context, identificationNo string) (*domain.Customer, error) {
	return d.repo.GetByIdentificationNo(ctx, d.db, identificationNo)
}

// Register hashes password and stores a new ACTIVE customer.
func (d *Directory) Register(ctx context.Context, identificationNo, name, email, password string) (*domain.Customer, error) {
	if strings.TrimSpace(identificationNo) == "" || strings.TrimSpace(password) == "" {
		return nil, errors.New("identification number and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	customer := &domain.Customer{
		ID:               util.GenerateUUID(),
		IdentificationNo: identificationNo,
		Name:             name,
		Email:            email,
		PasswordHash:     hash,
		Status:           StatusActive,
		CreatedAt:        time.Now().UTC(),
	}
	if err := d.repo.CreateCustomer(ctx, d.db, customer); err != nil {
		return nil, err
	}
	d.logger.Info("Customer registered", zap.String("customer_id", customer.ID))
	return customer, nil
}
