package ledger

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"ledger/internal/domain"
)

func TestMain(m *testing.M) {
	pinCost = bcrypt.MinCost
	os.Exit(m.Run())
}

const pin = "123456"

func (h *harness) issueCard(t *testing.T, idNo, pw string) *domain.Card {
	t.Helper()
	card, err := h.svc.CreateCard(context.Background(), idNo, pw, pin)
	if err != nil {
		t.Fatalf("CreateCard(%s): %v", idNo, err)
	}
	return card
}

func (h *harness) storedCard(t *testing.T, accountID string) domain.Card {
	t.Helper()
	c, ok := h.store.cards[accountID]
	if !ok {
		t.Fatalf("no card stored for %s", accountID)
	}
	return c
}

func TestCreateCard(t *testing.T) {
	ctx := context.Background()

	t.Run("issued inactive with default limit", func(t *testing.T) {
		h := newHarness(t)
		account := h.open(t, alice, alicePW, "10")
		card := h.issueCard(t, alice, alicePW)

		if card.Status != domain.CardStatusInactive {
			t.Errorf("status = %s, want INACTIVE", card.Status)
		}
		if card.TransactionLimit != domain.DefaultCardTransactionLimit {
			t.Errorf("limit = %d, want %d", card.TransactionLimit, domain.DefaultCardTransactionLimit)
		}
		if card.AccountID != account.ID {
			t.Errorf("card linked to %s, want %s", card.AccountID, account.ID)
		}
		if !regexp.MustCompile(`^\d{16}$`).MatchString(card.CardNumber) {
			t.Errorf("card number %q is not 16 digits", card.CardNumber)
		}
		if string(card.PINHash) == pin || bcrypt.CompareHashAndPassword(card.PINHash, []byte(pin)) != nil {
			t.Error("pin must be stored as a bcrypt hash")
		}
	})

	t.Run("malformed pin", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, alice, alicePW, "10")
		for _, bad := range []string{"", "12345", "1234567", "12a456"} {
			if _, err := h.svc.CreateCard(ctx, alice, alicePW, bad); !errors.Is(err, domain.ErrInvalidPIN) {
				t.Errorf("pin %q: expected ErrInvalidPIN, got %v", bad, err)
			}
		}
		if len(h.store.cards) != 0 {
			t.Errorf("expected no cards, got %d", len(h.store.cards))
		}
	})

	t.Run("no account", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.svc.CreateCard(ctx, alice, alicePW, pin); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("account not active", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, alice, alicePW, "10")
		if _, err := h.svc.UpdateStatus(ctx, alice, alicePW, "FREEZE"); err != nil {
			t.Fatal(err)
		}
		if _, err := h.svc.CreateCard(ctx, alice, alicePW, pin); !errors.Is(err, domain.ErrAccountNotActive) {
			t.Fatalf("expected ErrAccountNotActive, got %v", err)
		}
	})

	t.Run("one card per account", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, alice, alicePW, "10")
		h.issueCard(t, alice, alicePW)
		if _, err := h.svc.CreateCard(ctx, alice, alicePW, "654321"); !errors.Is(err, domain.ErrCardAlreadyExists) {
			t.Fatalf("expected ErrCardAlreadyExists, got %v", err)
		}
	})
}

func TestCreateCard_RegeneratesTakenNumber(t *testing.T) {
	h := newHarness(t)
	h.open(t, alice, alicePW, "10")
	h.open(t, bob, bobPW, "10")
	first := h.issueCard(t, alice, alicePW)
	h.svc.cardNo = sequence(first.CardNumber, "4000000000000002")

	card := h.issueCard(t, bob, bobPW)
	if card.CardNumber != "4000000000000002" {
		t.Errorf("card number = %s, want regenerated number", card.CardNumber)
	}

	h.svc.cardNo = sequence(first.CardNumber)
	h.open(t, carol, carolPW, "10")
	_, err := h.svc.CreateCard(context.Background(), carol, carolPW, pin)
	if !errors.Is(err, domain.ErrStorageFailure) || errors.Is(err, domain.ErrCardAlreadyExists) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}
}

func TestGetCard_NotFound(t *testing.T) {
	h := newHarness(t)
	h.open(t, alice, alicePW, "10")
	if _, err := h.svc.GetCard(context.Background(), alice, alicePW); !errors.Is(err, domain.ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
}

func TestCardLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.open(t, alice, alicePW, "10")
	h.issueCard(t, alice, alicePW)

	steps := []struct {
		action string
		want   domain.CardStatus
		err    error
	}{
		{action: "FREEZE", err: domain.ErrInvalidCardAction},
		{action: "deactivate", err: domain.ErrInvalidCardAction},
		{action: "activate", want: domain.CardStatusActive},
		{action: "ACTIVATE", err: domain.ErrInvalidCardAction},
		{action: "FREEZE", want: domain.CardStatusFrozen},
		{action: "ACTIVATE", err: domain.ErrInvalidCardAction},
		{action: "DEACTIVATE", err: domain.ErrInvalidCardAction},
		{action: "UNFREEZE", want: domain.CardStatusActive},
		{action: "UNFREEZE", err: domain.ErrInvalidCardAction},
		{action: "DEACTIVATE", want: domain.CardStatusInactive},
		{action: "BLOCK", err: domain.ErrInvalidCardAction},
	}

	status := domain.CardStatusInactive
	for i, step := range steps {
		card, err := h.svc.UpdateCardStatus(ctx, alice, alicePW, step.action, pin)
		if step.err != nil {
			if !errors.Is(err, step.err) {
				t.Fatalf("step %d %s: expected %v, got %v", i, step.action, step.err, err)
			}
		} else {
			if err != nil {
				t.Fatalf("step %d %s: %v", i, step.action, err)
			}
			if card.Status != step.want {
				t.Fatalf("step %d %s: status = %s, want %s", i, step.action, card.Status, step.want)
			}
			status = step.want
		}
		if got := h.storedCard(t, account.ID).Status; got != status {
			t.Fatalf("step %d %s: stored status = %s, want %s", i, step.action, got, status)
		}
	}
}

func TestUpdateCardStatus_WrongPIN(t *testing.T) {
	h := newHarness(t)
	account := h.open(t, alice, alicePW, "10")
	h.issueCard(t, alice, alicePW)

	if _, err := h.svc.UpdateCardStatus(context.Background(), alice, alicePW, "ACTIVATE", "000000"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
	if got := h.storedCard(t, account.ID).Status; got != domain.CardStatusInactive {
		t.Errorf("stored status = %s, want INACTIVE", got)
	}
}

func TestCardFollowsAccountStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.open(t, alice, alicePW, "10")
	h.issueCard(t, alice, alicePW)
	if _, err := h.svc.UpdateCardStatus(ctx, alice, alicePW, "ACTIVATE", pin); err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.UpdateStatus(ctx, alice, alicePW, "FREEZE"); err != nil {
		t.Fatal(err)
	}
	// Freezing the account does not touch the card until it is read.
	if got := h.storedCard(t, account.ID).Status; got != domain.CardStatusActive {
		t.Fatalf("stored status before read = %s, want ACTIVE", got)
	}
	card, err := h.svc.GetCard(ctx, alice, alicePW)
	if err != nil {
		t.Fatal(err)
	}
	if card.Status != domain.CardStatusFrozen {
		t.Fatalf("status = %s, want FROZEN", card.Status)
	}
	if got := h.storedCard(t, account.ID).Status; got != domain.CardStatusFrozen {
		t.Fatalf("synced status not persisted: %s", got)
	}

	// Unfreezing the account leaves the card frozen.
	if _, err := h.svc.UpdateStatus(ctx, alice, alicePW, "UNFREEZE"); err != nil {
		t.Fatal(err)
	}
	card, err = h.svc.GetCard(ctx, alice, alicePW)
	if err != nil {
		t.Fatal(err)
	}
	if card.Status != domain.CardStatusFrozen {
		t.Fatalf("status after unfreeze = %s, want FROZEN", card.Status)
	}
	if got := h.store.accounts[account.ID].Status; got != domain.AccountStatusActive {
		t.Fatalf("card sync changed the account: %s", got)
	}

	if _, err := h.svc.CloseAccount(ctx, alice, alicePW); err != nil {
		t.Fatal(err)
	}
	card, err = h.svc.GetCard(ctx, alice, alicePW)
	if err != nil {
		t.Fatal(err)
	}
	if card.Status != domain.CardStatusInactive {
		t.Fatalf("status after close = %s, want INACTIVE", card.Status)
	}
	if _, err := h.svc.UpdateCardStatus(ctx, alice, alicePW, "ACTIVATE", pin); !errors.Is(err, domain.ErrAccountNotActive) {
		t.Fatalf("activate on closed account: expected ErrAccountNotActive, got %v", err)
	}

	var synced int
	for _, msg := range h.store.outbox {
		if msg.EventType == domain.EventCardStatusChanged {
			synced++
		}
	}
	// issue, activate, sync to FROZEN, sync to INACTIVE
	if synced != 4 {
		t.Errorf("expected 4 card events, got %d", synced)
	}
}

func TestCardSyncSurvivesRejectedUpdate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.open(t, alice, alicePW, "10")
	h.issueCard(t, alice, alicePW)
	if _, err := h.svc.UpdateCardStatus(ctx, alice, alicePW, "ACTIVATE", pin); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.UpdateStatus(ctx, alice, alicePW, "FREEZE"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.UpdateCardLimit(ctx, alice, alicePW, 2000, "999999"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
	stored := h.storedCard(t, account.ID)
	if stored.Status != domain.CardStatusFrozen {
		t.Errorf("stored status = %s, want FROZEN", stored.Status)
	}
	if stored.TransactionLimit != domain.DefaultCardTransactionLimit {
		t.Errorf("limit changed to %d", stored.TransactionLimit)
	}
}

func TestUpdateCardPIN(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, alice, alicePW, "10")
	h.issueCard(t, alice, alicePW)

	if _, err := h.svc.UpdateCardPIN(ctx, alice, alicePW, pin, "12ab56"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Errorf("malformed new pin: expected ErrInvalidPIN, got %v", err)
	}
	if _, err := h.svc.UpdateCardPIN(ctx, alice, alicePW, pin, "654321"); !errors.Is(err, domain.ErrCardNotActive) {
		t.Errorf("inactive card: expected ErrCardNotActive, got %v", err)
	}
	if _, err := h.svc.UpdateCardStatus(ctx, alice, alicePW, "ACTIVATE", pin); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.UpdateCardPIN(ctx, alice, alicePW, "111111", "654321"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Errorf("wrong current pin: expected ErrInvalidPIN, got %v", err)
	}
	if _, err := h.svc.UpdateCardPIN(ctx, alice, alicePW, pin, "654321"); err != nil {
		t.Fatalf("change pin: %v", err)
	}

	if _, err := h.svc.UpdateCardLimit(ctx, alice, alicePW, 2000, pin); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Errorf("old pin still accepted: %v", err)
	}
	if _, err := h.svc.UpdateCardLimit(ctx, alice, alicePW, 2000, "654321"); err != nil {
		t.Errorf("new pin rejected: %v", err)
	}
}

func TestUpdateCardLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.open(t, alice, alicePW, "10")
	h.issueCard(t, alice, alicePW)

	if _, err := h.svc.UpdateCardLimit(ctx, alice, alicePW, 2000, pin); !errors.Is(err, domain.ErrCardNotActive) {
		t.Fatalf("inactive card: expected ErrCardNotActive, got %v", err)
	}
	if _, err := h.svc.UpdateCardStatus(ctx, alice, alicePW, "ACTIVATE", pin); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		limit int
		ok    bool
	}{
		{limit: 100, ok: false},
		{limit: 101, ok: true},
		{limit: 10000, ok: true},
		{limit: 10001, ok: false},
		{limit: -1, ok: false},
	}
	for _, tc := range cases {
		card, err := h.svc.UpdateCardLimit(ctx, alice, alicePW, tc.limit, pin)
		if !tc.ok {
			if !errors.Is(err, domain.ErrInvalidCardLimit) {
				t.Errorf("limit %d: expected ErrInvalidCardLimit, got %v", tc.limit, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("limit %d: %v", tc.limit, err)
			continue
		}
		if card.TransactionLimit != tc.limit || h.storedCard(t, account.ID).TransactionLimit != tc.limit {
			t.Errorf("limit %d not applied", tc.limit)
		}
	}
}
