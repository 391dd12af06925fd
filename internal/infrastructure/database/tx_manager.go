package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/infrastructure/resilience"
)

// Postgres error codes that mean "try the whole transaction again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// IsTransient reports whether err carries a pq error that a fresh
// transaction can be expected to get past.
func IsTransient(err error) bool {
	var pgErr *pq.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

type TxConfig struct {
	LockTimeout    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

// TxManager runs callbacks inside a Postgres transaction and retries them
// when they fail on a transient conflict.
type TxManager struct {
	db      *sql.DB
	cfg     TxConfig
	logger  *zap.Logger
	onRetry func()
}

func NewTxManager(db *sql.DB, cfg TxConfig, logger *zap.Logger, onRetry func()) *TxManager {
	if onRetry == nil {
		onRetry = func() {}
	}
	return &TxManager{db: db, cfg: cfg, logger: logger, onRetry: onRetry}
}

func (m *TxManager) WithinTx(ctx context.Context, fn func(q domain.Querier) error) error {
	attempt := 0
	return resilience.RetryWithBackoff(ctx, resilience.Config{
		MaxRetries:     m.cfg.MaxRetries,
		InitialBackoff: m.cfg.InitialBackoff,
		Retryable:      IsTransient,
	}, func() error {
		if attempt > 0 {
			m.onRetry()
			m.logger.Warn("Retrying transaction after transient conflict", zap.Int("attempt", attempt))
		}
		attempt++
		return m.runOnce(ctx, fn)
	})
}

func (m *TxManager) runOnce(ctx context.Context, fn func(q domain.Querier) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				m.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	if m.cfg.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.cfg.LockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return domain.NewStorageError("set lock timeout", err)
		}
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return domain.NewStorageError("commit transaction", err)
	}
	return nil
}
