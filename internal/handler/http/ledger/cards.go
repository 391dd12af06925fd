package ledger_http

import (
	"net/http"
	"time"

	"ledger/internal/domain"
)

type CreateCardRequest struct {
	PIN string `json:"pin"`
}

type CardStatusRequest struct {
	Action string `json:"action"`
	PIN    string `json:"pin"`
}

type CardPINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

type CardLimitRequest struct {
	Limit int    `json:"limit"`
	PIN   string `json:"pin"`
}

// CardResponse never carries the PIN hash.
type CardResponse struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"account_id"`
	CardNumber       string    `json:"card_number"`
	TransactionLimit int       `json:"transaction_limit"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func toCardResponse(c *domain.Card) CardResponse {
	return CardResponse{
		ID:               c.ID,
		AccountID:        c.AccountID,
		CardNumber:       c.CardNumber,
		TransactionLimit: c.TransactionLimit,
		Status:           string(c.Status),
		CreatedAt:        c.CreatedAt,
	}
}

func (h *LedgerHandler) writeCard(w http.ResponseWriter, status int, card *domain.Card, err error) {
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, status, toCardResponse(card))
}

func (h *LedgerHandler) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	idNo, pw := credentials(r)
	card, err := h.service.CreateCard(r.Context(), idNo, pw, req.PIN)
	h.writeCard(w, http.StatusCreated, card, err)
}

func (h *LedgerHandler) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	idNo, pw := credentials(r)
	card, err := h.service.GetCard(r.Context(), idNo, pw)
	h.writeCard(w, http.StatusOK, card, err)
}

func (h *LedgerHandler) UpdateCardStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req CardStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	idNo, pw := credentials(r)
	card, err := h.service.UpdateCardStatus(r.Context(), idNo, pw, req.Action, req.PIN)
	h.writeCard(w, http.StatusOK, card, err)
}

func (h *LedgerHandler) UpdateCardPINHandler(w http.ResponseWriter, r *http.Request) {
	var req CardPINRequest
	if !h.decode(w, r, &req) {
		return
	}
	idNo, pw := credentials(r)
	card, err := h.service.UpdateCardPIN(r.Context(), idNo, pw, req.CurrentPIN, req.NewPIN)
	h.writeCard(w, http.StatusOK, card, err)
}

func (h *LedgerHandler) UpdateCardLimitHandler(w http.ResponseWriter, r *http.Request) {
	var req CardLimitRequest
	if !h.decode(w, r, &req) {
		return
	}
	idNo, pw := credentials(r)
	card, err := h.service.UpdateCardLimit(r.Context(), idNo, pw, req.Limit, req.PIN)
	h.writeCard(w, http.StatusOK, card, err)
}
