package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"ledger/internal/domain"
)

func newTestManager(t *testing.T, maxRetries int) (*TxManager, sqlmock.Sqlmock, *int) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	retries := 0
	m := NewTxManager(db, TxConfig{
		LockTimeout:    2 * time.Second,
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
	}, zap.NewNop(), func() { retries++ })
	return m, mock, &retries
}

func TestWithinTx_Commits(t *testing.T) {
	m, mock, _ := newTestManager(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = '2000ms'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := m.WithinTx(context.Background(), func(q domain.Querier) error {
		_, err := q.ExecContext(context.Background(), "UPDATE accounts SET balance = 1")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	m, mock, retries := newTestManager(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := m.WithinTx(context.Background(), func(q domain.Querier) error {
		return domain.ErrInsufficientFunds
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if *retries != 0 {
		t.Errorf("validation errors must not be retried, got %d retries", *retries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithinTx_RetriesTransientConflict(t *testing.T) {
	m, mock, retries := newTestManager(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	calls := 0
	err := m.WithinTx(context.Background(), func(q domain.Querier) error {
		calls++
		if calls == 1 {
			return domain.NewStorageError("lock account", &pq.Error{Code: "40P01"})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 || *retries != 1 {
		t.Errorf("expected 2 calls and 1 retry, got %d calls and %d retries", calls, *retries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithinTx_GivesUpAfterMaxRetries(t *testing.T) {
	m, mock, _ := newTestManager(t, 1)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
	}

	calls := 0
	err := m.WithinTx(context.Background(), func(q domain.Querier) error {
		calls++
		return domain.NewStorageError("lock account", &pq.Error{Code: "55P03"})
	})
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestWithinTx_BeginFailureIsStorageFailure(t *testing.T) {
	m, mock, _ := newTestManager(t, 0)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := m.WithinTx(context.Background(), func(q domain.Querier) error {
		t.Fatal("callback must not run")
		return nil
	})
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&pq.Error{Code: "40001"}, true},
		{&pq.Error{Code: "40P01"}, true},
		{&pq.Error{Code: "55P03"}, true},
		{&pq.Error{Code: "23505"}, false},
		{domain.NewStorageError("op", &pq.Error{Code: "40001"}), true},
		{domain.ErrInsufficientFunds, false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
