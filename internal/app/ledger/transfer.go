package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

type TransferResult struct {
	From     *domain.Account
	To       *domain.Account
	OutEntry *domain.LedgerEntry
	InEntry  *domain.LedgerEntry
}

// TransferCoordinator moves money between two accounts. All its writes
// happen on one querier; the caller commits or rolls back as a unit.
type TransferCoordinator struct {
	store  *AccountStore
	ledger *TransactionLedger
}

func NewTransferCoordinator(store *AccountStore, ledger *TransactionLedger) *TransferCoordinator {
	return &TransferCoordinator{store: store, ledger: ledger}
}

func (c *TransferCoordinator) Transfer(ctx context.Context, q domain.Querier, fromOwnerID, toOwnerID string, amount decimal.Decimal) (*TransferResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	source, err := c.store.Get(ctx, q, fromOwnerID)
	if err != nil {
		return nil, fmt.Errorf("source account: %w", err)
	}
	destination, err := c.store.Get(ctx, q, toOwnerID)
	if err != nil {
		return nil, fmt.Errorf("destination account: %w", err)
	}
	if source.ID == destination.ID {
		return nil, fmt.Errorf("%w: source and destination are the same account %s", domain.ErrInvalidTransfer, source.ID)
	}

	// Rows are always locked in ascending id order so two opposite
	// transfers cannot deadlock.
	firstID, secondID := source.ID, destination.ID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := c.store.LockByID(ctx, q, firstID)
	if err != nil {
		return nil, err
	}
	second, err := c.store.LockByID(ctx, q, secondID)
	if err != nil {
		return nil, err
	}
	if first.ID == source.ID {
		source, destination = first, second
	} else {
		source, destination = second, first
	}

	if err := c.store.debitLocked(ctx, q, source, amount); err != nil {
		return nil, err
	}
	if err := c.store.creditLocked(ctx, q, destination, amount); err != nil {
		return nil, err
	}

	out, err := c.ledger.Append(ctx, q, source.ID, domain.EntryKindTransferOut, amount, "Transfer to "+destination.ID)
	if err != nil {
		return nil, err
	}
	in, err := c.ledger.Append(ctx, q, destination.ID, domain.EntryKindTransferIn, amount, "Transfer from "+source.ID)
	if err != nil {
		return nil, err
	}

	return &TransferResult{From: source, To: destination, OutEntry: out, InEntry: in}, nil
}
