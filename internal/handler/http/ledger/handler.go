package ledger_http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/ledger"
	"ledger/internal/domain"
)

// Every request authenticates with these two headers.
const (
	HeaderIdentificationNo = "X-Identification-No"
	headerPassword         = "X-Password"
)

// LedgerService is the part of ledger.Service the HTTP adapter calls.
type LedgerService interface {
	CreateAccount(ctx context.Context, identificationNo, password string, initialBalance *decimal.Decimal) (*domain.Account, error)
	GetAccount(ctx context.Context, identificationNo, password string) (*domain.Account, error)
	Deposit(ctx context.Context, identificationNo, password string, amount decimal.Decimal) (*domain.Account, error)
	Withdraw(ctx context.Context, identificationNo, password string, amount decimal.Decimal) (*domain.Account, error)
	RecordTransaction(ctx context.Context, identificationNo, password string, kind domain.EntryKind, amount decimal.Decimal, note string) (*domain.LedgerEntry, error)
	UpdateStatus(ctx context.Context, identificationNo, password, action string) (*domain.Account, error)
	CloseAccount(ctx context.Context, identificationNo, password string) (*domain.Account, error)
	Filter(ctx context.Context, identificationNo, password string, filter domain.EntryFilter) ([]domain.LedgerEntry, error)
	Summary(ctx context.Context, identificationNo, password string, from, to *time.Time) (domain.LedgerSummary, error)
	Transfer(ctx context.Context, identificationNo, password, toIdentificationNo string, amount decimal.Decimal) (*ledger.TransferResult, error)

	CreateCard(ctx context.Context, identificationNo, password, pin string) (*domain.Card, error)
	GetCard(ctx context.Context, identificationNo, password string) (*domain.Card, error)
	UpdateCardStatus(ctx context.Context, identificationNo, password, action, pin string) (*domain.Card, error)
	UpdateCardPIN(ctx context.Context, identificationNo, password, currentPIN, newPIN string) (*domain.Card, error)
	UpdateCardLimit(ctx context.Context, identificationNo, password string, limit int, pin string) (*domain.Card, error)
}

type LedgerHandler struct {
	service LedgerService
	logger  *zap.Logger
}

func NewLedgerHandler(s LedgerService, l *zap.Logger) *LedgerHandler {
	return &LedgerHandler{service: s, logger: l}
}

type CreateAccountRequest struct {
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type RecordTransactionRequest struct {
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type StatusRequest struct {
	Action string `json:"action"`
}

type TransferRequest struct {
	ToIdentificationNo string          `json:"to_identification_no"`
	Amount             decimal.Decimal `json:"amount"`
}

type AccountResponse struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type EntryResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type SummaryResponse struct {
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	Net          decimal.Decimal `json:"net"`
}

// TransferResponse is the sender's view of a transfer. Only the recipient's
// account id is disclosed.
type TransferResponse struct {
	From        AccountResponse `json:"from"`
	ToAccountID string          `json:"to_account_id"`
	OutEntry    EntryResponse   `json:"out_entry"`
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Balance:   a.Balance,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toEntryResponse(e *domain.LedgerEntry) EntryResponse {
	return EntryResponse{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Amount:    e.Amount,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

func credentials(r *http.Request) (string, string) {
	return r.Header.Get(HeaderIdentificationNo), r.Header.Get(headerPassword)
}

func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debug("Invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *LedgerHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	idNo, pw := credentials(r)
	account, err := h.service.CreateAccount(r.Context(), idNo, pw, req.InitialBalance)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *LedgerHandler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	idNo, pw := credentials(r)
	account, err := h.service.GetAccount(r.Context(), idNo, pw)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *LedgerHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.service.Deposit)
}

func (h *LedgerHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.service.Withdraw)
}

type moveFunc func(ctx context.Context, identificationNo, password string, amount decimal.Decimal) (*domain.Account, error)

func (h *LedgerHandler) moveFunds(w http.ResponseWriter, r *http.Request, move moveFunc) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	idNo, pw := credentials(r)
	account, err := move(r.Context(), idNo, pw, req.Amount)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *LedgerHandler) RecordTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind, err := domain.ParseEntryKind(req.Kind)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	idNo, pw := credentials(r)
	entry, err := h.service.RecordTransaction(r.Context(), idNo, pw, kind, req.Amount, req.Note)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *LedgerHandler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	idNo, pw := credentials(r)
	account, err := h.service.UpdateStatus(r.Context(), idNo, pw, req.Action)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *LedgerHandler) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	idNo, pw := credentials(r)
	account, err := h.service.CloseAccount(r.Context(), idNo, pw)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// ListTransactionsHandler accepts optional kind, from and to query
// parameters; from and to are RFC 3339 timestamps.
func (h *LedgerHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	var filter domain.EntryFilter
	q := r.URL.Query()
	if v := q.Get("kind"); v != "" {
		kind, err := domain.ParseEntryKind(v)
		if err != nil {
			handleServiceError(w, err, h.logger)
			return
		}
		filter.Kind = &kind
	}
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	filter.From, filter.To = from, to

	idNo, pw := credentials(r)
	entries, err := h.service.Filter(r.Context(), idNo, pw, filter)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	resp := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, toEntryResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LedgerHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	idNo, pw := credentials(r)
	summary, err := h.service.Summary(r.Context(), idNo, pw, from, to)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		TotalCredits: summary.TotalCredits,
		TotalDebits:  summary.TotalDebits,
		Net:          summary.Net,
	})
}

func (h *LedgerHandler) parseRange(w http.ResponseWriter, r *http.Request) (from, to *time.Time, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+p.key+" timestamp, expected RFC 3339")
			return nil, nil, false
		}
		*p.dst = &t
	}
	return from, to, true
}

func (h *LedgerHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	idNo, pw := credentials(r)
	result, err := h.service.Transfer(r.Context(), idNo, pw, req.ToIdentificationNo, req.Amount)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, TransferResponse{
		From:        toAccountResponse(result.From),
		ToAccountID: result.To.ID,
		OutEntry:    toEntryResponse(result.OutEntry),
	})
}
