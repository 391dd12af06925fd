package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/outbox"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/cards_repo"
	"ledger/internal/repository/ledger_repo"
	"ledger/internal/repository/outbox_repo"
	"ledger/internal/util"
)

var tracer = otel.Tracer("ledger")

// Authenticator checks a customer's credential.
type Authenticator interface {
	Verify(ctx context.Context, identificationNo, credential string) (bool, error)
}

// IdentityResolver maps an identification number to the account owner.
type IdentityResolver interface {
	ResolveAccountOwner(ctx context.Context, identificationNo string) (*domain.Customer, error)
}

// Transactor runs fn inside one storage transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(q domain.Querier) error) error
}

type Metrics interface {
	RecordOperation(operation string, d time.Duration, err error)
}

type Repositories struct {
	Accounts accounts_repo.AccountRepository
	Entries  ledger_repo.LedgerRepository
	Cards    cards_repo.CardRepository
	Outbox   outbox_repo.OutboxRepository
}

// Service is the authenticated operation surface of the ledger. Each call
// verifies the credential, resolves the owner and runs its component
// operations in a single transaction.
type Service struct {
	auth      Authenticator
	identity  IdentityResolver
	tx        Transactor
	store     *AccountStore
	ledger    *TransactionLedger
	transfers *TransferCoordinator
	cardSync  *CardLinkSynchronizer
	cards     cards_repo.CardRepository
	outbox    outbox_repo.OutboxRepository
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
	cardNo    func() string
}

func NewService(
	auth Authenticator,
	identity IdentityResolver,
	tx Transactor,
	repos Repositories,
	metrics Metrics,
	logger *zap.Logger,
) *Service {
	store := NewAccountStore(repos.Accounts, logger)
	ledger := NewTransactionLedger(repos.Entries, repos.Accounts)
	return &Service{
		auth:      auth,
		identity:  identity,
		tx:        tx,
		store:     store,
		ledger:    ledger,
		transfers: NewTransferCoordinator(store, ledger),
		cardSync:  NewCardLinkSynchronizer(repos.Cards),
		cards:     repos.Cards,
		outbox:    repos.Outbox,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		cardNo:    util.GenerateCardNumber,
	}
}

// authenticate rejects blank or wrong credentials before any store access.
func (s *Service) authenticate(ctx context.Context, identificationNo, password string) (*domain.Customer, error) {
	if strings.TrimSpace(identificationNo) == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: identification number and password are required", domain.ErrUnauthorized)
	}
	ok, err := s.auth.Verify(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return s.identity.ResolveAccountOwner(ctx, identificationNo)
}

func (s *Service) observe(ctx context.Context, operation string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ledger."+operation)
	return ctx, func(errp *error) {
		finishSpan(span, *errp)
		s.metrics.RecordOperation(operation, time.Since(start), *errp)
		if *errp != nil {
			s.logFailure(operation, *errp)
		}
	}
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) logFailure(operation string, err error) {
	switch {
	case errors.Is(err, domain.ErrStorageFailure):
		s.logger.Error("Ledger operation failed", zap.String("operation", operation), zap.Error(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Info("Ledger operation cancelled", zap.String("operation", operation), zap.Error(err))
	default:
		s.logger.Warn("Ledger operation rejected", zap.String("operation", operation), zap.Error(err))
	}
}

func (s *Service) emit(ctx context.Context, q domain.Querier, event domain.LedgerEvent) error {
	event.Timestamp = s.now().UTC()
	msg, err := outbox.NewLedgerEventMessage(event)
	if err != nil {
		return err
	}
	return s.outbox.CreateMessageTx(ctx, q, msg)
}

func (s *Service) CreateAccount(ctx context.Context, identificationNo, password string, initialBalance *decimal.Decimal) (account *domain.Account, err error) {
	ctx, done := s.observe(ctx, "create_account")
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		account, err = s.store.Create(ctx, q, owner.ID, initialBalance)
		if err != nil {
			return err
		}
		balance := account.Balance
		return s.emit(ctx, q, domain.LedgerEvent{
			Type:      domain.EventAccountCreated,
			AccountID: account.ID,
			Balance:   &balance,
			Status:    string(account.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Deposit account created", zap.String("account_id", account.ID), zap.String("balance", account.Balance.String()))
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, identificationNo, password string) (account *domain.Account, err error) {
	ctx, done := s.observe(ctx, "get_account")
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		account, err = s.store.Get(ctx, q, owner.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) Deposit(ctx context.Context, identificationNo, password string, amount decimal.Decimal) (*domain.Account, error) {
	return s.move(ctx, "deposit", identificationNo, password, domain.EntryKindDeposit, amount, "")
}

func (s *Service) Withdraw(ctx context.Context, identificationNo, password string, amount decimal.Decimal) (*domain.Account, error) {
	return s.move(ctx, "withdraw", identificationNo, password, domain.EntryKindWithdrawal, amount, "")
}

// RecordTransaction applies a deposit or withdrawal together with its
// ledger entry. Transfer kinds are produced by Transfer only.
func (s *Service) RecordTransaction(ctx context.Context, identificationNo, password string, kind domain.EntryKind, amount decimal.Decimal, note string) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	switch kind {
	case domain.EntryKindDeposit, domain.EntryKindWithdrawal:
	case domain.EntryKindTransferIn, domain.EntryKindTransferOut:
		return nil, fmt.Errorf("%w: %s entries are recorded by transfers", domain.ErrInvalidEntryKind, kind)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidEntryKind, kind)
	}
	if _, err := s.moveWith(ctx, "record_transaction", identificationNo, password, kind, amount, note, &entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) move(ctx context.Context, operation, identificationNo, password string, kind domain.EntryKind, amount decimal.Decimal, note string) (*domain.Account, error) {
	return s.moveWith(ctx, operation, identificationNo, password, kind, amount, note, nil)
}

func (s *Service) moveWith(ctx context.Context, operation, identificationNo, password string, kind domain.EntryKind, amount decimal.Decimal, note string, entryOut **domain.LedgerEntry) (account *domain.Account, err error) {
	ctx, done := s.observe(ctx, operation)
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	if err = ValidateAmount(amount); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		current, err := s.store.Get(ctx, q, owner.ID)
		if err != nil {
			return err
		}
		eventType := domain.EventFundsDeposited
		if kind == domain.EntryKindDeposit {
			account, err = s.store.Credit(ctx, q, current.ID, amount)
		} else {
			eventType = domain.EventFundsWithdrawn
			account, err = s.store.Debit(ctx, q, current.ID, amount)
		}
		if err != nil {
			return err
		}
		entry, err := s.ledger.Append(ctx, q, account.ID, kind, amount, note)
		if err != nil {
			return err
		}
		if entryOut != nil {
			*entryOut = entry
		}
		balance := account.Balance
		return s.emit(ctx, q, domain.LedgerEvent{
			Type:      eventType,
			AccountID: account.ID,
			Amount:    &amount,
			Balance:   &balance,
			EntryKind: kind,
		})
	})
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account_id", account.ID))
	s.logger.Info("Funds moved",
		zap.String("operation", operation),
		zap.String("account_id", account.ID),
		zap.String("amount", amount.String()),
		zap.String("balance", account.Balance.String()))
	return account, nil
}

// UpdateStatus applies FREEZE or UNFREEZE.
func (s *Service) UpdateStatus(ctx context.Context, identificationNo, password, action string) (*domain.Account, error) {
	target, err := domain.ParseStatusAction(action)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, "update_status", identificationNo, password, target)
}

func (s *Service) CloseAccount(ctx context.Context, identificationNo, password string) (*domain.Account, error) {
	return s.setStatus(ctx, "close_account", identificationNo, password, domain.AccountStatusClosed)
}

func (s *Service) setStatus(ctx context.Context, operation, identificationNo, password string, target domain.AccountStatus) (account *domain.Account, err error) {
	ctx, done := s.observe(ctx, operation)
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		current, err := s.store.Get(ctx, q, owner.ID)
		if err != nil {
			return err
		}
		account, err = s.store.SetStatus(ctx, q, current.ID, target)
		if err != nil {
			return err
		}
		return s.emit(ctx, q, domain.LedgerEvent{
			Type:      domain.EventAccountStatusChanged,
			AccountID: account.ID,
			Status:    string(account.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Deposit account status changed", zap.String("account_id", account.ID), zap.String("status", string(account.Status)))
	return account, nil
}

func (s *Service) History(ctx context.Context, identificationNo, password string) ([]domain.LedgerEntry, error) {
	return s.Filter(ctx, identificationNo, password, domain.EntryFilter{})
}

func (s *Service) Filter(ctx context.Context, identificationNo, password string, filter domain.EntryFilter) (entries []domain.LedgerEntry, err error) {
	ctx, done := s.observe(ctx, "list_transactions")
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		account, err := s.store.Get(ctx, q, owner.ID)
		if err != nil {
			return err
		}
		entries, err = s.ledger.Filter(ctx, q, account.ID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) Summary(ctx context.Context, identificationNo, password string, from, to *time.Time) (summary domain.LedgerSummary, err error) {
	ctx, done := s.observe(ctx, "summary")
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return domain.LedgerSummary{}, err
	}
	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		account, err := s.store.Get(ctx, q, owner.ID)
		if err != nil {
			return err
		}
		summary, err = s.ledger.Summarize(ctx, q, account.ID, from, to)
		return err
	})
	if err != nil {
		return domain.LedgerSummary{}, err
	}
	return summary, nil
}

// Transfer moves amount from the caller's account to the account owned by
// toIdentificationNo.
func (s *Service) Transfer(ctx context.Context, identificationNo, password, toIdentificationNo string, amount decimal.Decimal) (result *TransferResult, err error) {
	ctx, done := s.observe(ctx, "transfer")
	defer done(&err)

	owner, err := s.authenticate(ctx, identificationNo, password)
	if err != nil {
		return nil, err
	}
	if err = ValidateAmount(amount); err != nil {
		return nil, err
	}
	recipient, err := s.identity.ResolveAccountOwner(ctx, toIdentificationNo)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(q domain.Querier) error {
		result, err = s.transfers.Transfer(ctx, q, owner.ID, recipient.ID, amount)
		if err != nil {
			return err
		}
		fromBalance, toBalance := result.From.Balance, result.To.Balance
		if err := s.emit(ctx, q, domain.LedgerEvent{
			Type:          domain.EventTransferCompleted,
			AccountID:     result.From.ID,
			CounterpartID: result.To.ID,
			Amount:        &amount,
			Balance:       &fromBalance,
			EntryKind:     domain.EntryKindTransferOut,
		}); err != nil {
			return err
		}
		return s.emit(ctx, q, domain.LedgerEvent{
			Type:          domain.EventTransferCompleted,
			AccountID:     result.To.ID,
			CounterpartID: result.From.ID,
			Amount:        &amount,
			Balance:       &toBalance,
			EntryKind:     domain.EntryKindTransferIn,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Transfer completed",
		zap.String("from_account_id", result.From.ID),
		zap.String("to_account_id", result.To.ID),
		zap.String("amount", amount.String()))
	return result, nil
}
