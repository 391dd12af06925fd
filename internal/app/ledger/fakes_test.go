package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/domain"
)

// memStore is the in-memory system of record behind the fake repositories.
type memStore struct {
	accounts map[string]domain.Account
	entries  []domain.LedgerEntry
	cards    map[string]domain.Card
	outbox   []domain.OutboxMessage
	calls    int
	failOn   func(op string, arg any) error
}

type memSnapshot struct {
	accounts map[string]domain.Account
	entries  []domain.LedgerEntry
	cards    map[string]domain.Card
	outbox   []domain.OutboxMessage
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]domain.Account{},
		cards:    map[string]domain.Card{},
	}
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		accounts: make(map[string]domain.Account, len(m.accounts)),
		entries:  append([]domain.LedgerEntry(nil), m.entries...),
		cards:    make(map[string]domain.Card, len(m.cards)),
		outbox:   append([]domain.OutboxMessage(nil), m.outbox...),
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.cards {
		s.cards[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.accounts, m.entries, m.cards, m.outbox = s.accounts, s.entries, s.cards, s.outbox
}

func (m *memStore) hit(op string, arg any) error {
	m.calls++
	if m.failOn != nil {
		return m.failOn(op, arg)
	}
	return nil
}

func (m *memStore) accountByOwner(ownerID string) (domain.Account, bool) {
	for _, a := range m.accounts {
		if a.OwnerID == ownerID {
			return a, true
		}
	}
	return domain.Account{}, false
}

type fakeAccounts struct{ *memStore }

func (f fakeAccounts) CreateAccountTx(ctx context.Context, q domain.Querier, account *domain.Account) error {
	if err := f.hit("CreateAccountTx", account); err != nil {
		return err
	}
	if _, ok := f.accountByOwner(account.OwnerID); ok {
		return domain.ErrAccountAlreadyExists
	}
	if _, ok := f.accounts[account.ID]; ok {
		return domain.ErrIDCollision
	}
	f.accounts[account.ID] = *account
	return nil
}

func (f fakeAccounts) GetAccountByIDTx(ctx context.Context, q domain.Querier, accountID string) (*domain.Account, error) {
	if err := f.hit("GetAccountByIDTx", accountID); err != nil {
		return nil, err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (f fakeAccounts) GetAccountForOwnerTx(ctx context.Context, q domain.Querier, ownerID string) (*domain.Account, error) {
	if err := f.hit("GetAccountForOwnerTx", ownerID); err != nil {
		return nil, err
	}
	a, ok := f.accountByOwner(ownerID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (f fakeAccounts) LockAccountByIDTx(ctx context.Context, q domain.Querier, accountID string) (*domain.Account, error) {
	return f.GetAccountByIDTx(ctx, q, accountID)
}

func (f fakeAccounts) UpdateBalanceTx(ctx context.Context, q domain.Querier, accountID string, balance decimal.Decimal) error {
	if err := f.hit("UpdateBalanceTx", accountID); err != nil {
		return err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Balance = balance
	f.accounts[accountID] = a
	return nil
}

func (f fakeAccounts) UpdateStatusTx(ctx context.Context, q domain.Querier, accountID string, status domain.AccountStatus) error {
	if err := f.hit("UpdateStatusTx", accountID); err != nil {
		return err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Status = status
	f.accounts[accountID] = a
	return nil
}

type fakeEntries struct{ *memStore }

func (f fakeEntries) CreateEntryTx(ctx context.Context, q domain.Querier, entry *domain.LedgerEntry) error {
	if err := f.hit("CreateEntryTx", entry); err != nil {
		return err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f fakeEntries) ListEntriesTx(ctx context.Context, q domain.Querier, accountID string, filter domain.EntryFilter) ([]domain.LedgerEntry, error) {
	if err := f.hit("ListEntriesTx", accountID); err != nil {
		return nil, err
	}
	var out []domain.LedgerEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.AccountID != accountID {
			continue
		}
		if filter.Kind != nil && e.Kind != *filter.Kind {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f fakeEntries) SummarizeTx(ctx context.Context, q domain.Querier, accountID string, filter domain.EntryFilter) (domain.LedgerSummary, error) {
	filter.Kind = nil
	entries, err := f.ListEntriesTx(ctx, q, accountID, filter)
	if err != nil {
		return domain.LedgerSummary{}, err
	}
	return domain.Summarize(entries), nil
}

type fakeCards struct{ *memStore }

func (f fakeCards) CreateCardTx(ctx context.Context, q domain.Querier, card *domain.Card) error {
	if err := f.hit("CreateCardTx", card); err != nil {
		return err
	}
	if _, ok := f.cards[card.AccountID]; ok {
		return domain.ErrCardAlreadyExists
	}
	for _, c := range f.cards {
		if c.CardNumber == card.CardNumber {
			return domain.ErrIDCollision
		}
	}
	f.cards[card.AccountID] = *card
	return nil
}

func (f fakeCards) GetCardByAccountIDTx(ctx context.Context, q domain.Querier, accountID string) (*domain.Card, error) {
	if err := f.hit("GetCardByAccountIDTx", accountID); err != nil {
		return nil, err
	}
	c, ok := f.cards[accountID]
	if !ok {
		return nil, domain.ErrCardNotFound
	}
	return &c, nil
}

func (f fakeCards) update(op, cardID string, apply func(*domain.Card)) error {
	if err := f.hit(op, cardID); err != nil {
		return err
	}
	for k, c := range f.cards {
		if c.ID == cardID {
			apply(&c)
			f.cards[k] = c
			return nil
		}
	}
	return domain.ErrCardNotFound
}

func (f fakeCards) UpdateStatusTx(ctx context.Context, q domain.Querier, cardID string, status domain.CardStatus) error {
	return f.update("UpdateCardStatusTx", cardID, func(c *domain.Card) { c.Status = status })
}

func (f fakeCards) UpdatePINTx(ctx context.Context, q domain.Querier, cardID string, pinHash []byte) error {
	return f.update("UpdatePINTx", cardID, func(c *domain.Card) { c.PINHash = pinHash })
}

func (f fakeCards) UpdateLimitTx(ctx context.Context, q domain.Querier, cardID string, limit int) error {
	return f.update("UpdateLimitTx", cardID, func(c *domain.Card) { c.TransactionLimit = limit })
}

type fakeOutbox struct{ *memStore }

func (f fakeOutbox) CreateMessageTx(ctx context.Context, q domain.Querier, msg *domain.OutboxMessage) error {
	if err := f.hit("CreateMessageTx", msg); err != nil {
		return err
	}
	f.outbox = append(f.outbox, *msg)
	return nil
}

func (f fakeOutbox) GetPendingMessages(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	return append([]domain.OutboxMessage(nil), f.outbox...), nil
}

func (f fakeOutbox) UpdateMessageStatusTx(ctx context.Context, q domain.Querier, id string, status domain.OutboxMessageStatus) error {
	return nil
}

// fakeTransactor serializes callbacks and restores the store when one fails,
// which is what a committed-or-rolled-back Postgres transaction looks like
// from the outside.
type fakeTransactor struct {
	mu    sync.Mutex
	store *memStore
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(q domain.Querier) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type fakeDirectory struct {
	passwords map[string]string
	customers map[string]*domain.Customer
}

func (d *fakeDirectory) Verify(ctx context.Context, identificationNo, credential string) (bool, error) {
	pw, ok := d.passwords[identificationNo]
	return ok && pw == credential, nil
}

func (d *fakeDirectory) ResolveAccountOwner(ctx context.Context, identificationNo string) (*domain.Customer, error) {
	c, ok := d.customers[identificationNo]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return c, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(string, time.Duration, error) {}

const (
	alice, alicePW = "ID-ALICE", "alice-pw"
	bob, bobPW     = "ID-BOB", "bob-pw"
	carol, carolPW = "ID-CAROL", "carol-pw"
)

type harness struct {
	svc   *Service
	store *memStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	dir := &fakeDirectory{
		passwords: map[string]string{alice: alicePW, bob: bobPW, carol: carolPW},
		customers: map[string]*domain.Customer{
			alice: {ID: "cust-alice", IdentificationNo: alice, Status: "ACTIVE"},
			bob:   {ID: "cust-bob", IdentificationNo: bob, Status: "ACTIVE"},
			carol: {ID: "cust-carol", IdentificationNo: carol, Status: "ACTIVE"},
		},
	}
	svc := NewService(dir, dir, &fakeTransactor{store: store}, Repositories{
		Accounts: fakeAccounts{store},
		Entries:  fakeEntries{store},
		Cards:    fakeCards{store},
		Outbox:   fakeOutbox{store},
	}, nopMetrics{}, zap.NewNop())

	// The ledger clock advances one second per entry so ordering and
	// range filters are deterministic.
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.ledger.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &harness{svc: svc, store: store}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (h *harness) open(t *testing.T, idNo, pw, balance string) *domain.Account {
	t.Helper()
	account, err := h.svc.CreateAccount(context.Background(), idNo, pw, decPtr(balance))
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", idNo, err)
	}
	return account
}

func (h *harness) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	a, ok := h.store.accounts[accountID]
	if !ok {
		t.Fatalf("account %s not stored", accountID)
	}
	return a.Balance
}

func assertBalance(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("balance = %s, want %s", got, want)
	}
}
