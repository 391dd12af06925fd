package ledger_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func RegisterRoutes(r chi.Router, s LedgerService, registry *prometheus.Registry, l *zap.Logger) {
	handler := NewLedgerHandler(s, l.With(zap.String("component", "LedgerHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ledger service is healthy!"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", handler.CreateAccountHandler)
		r.Route("/me", func(r chi.Router) {
			r.Get("/", handler.GetAccountHandler)
			r.Delete("/", handler.CloseAccountHandler)
			r.Patch("/status", handler.UpdateStatusHandler)
			r.Post("/deposit", handler.DepositHandler)
			r.Post("/withdraw", handler.WithdrawHandler)
			r.Get("/transactions", handler.ListTransactionsHandler)
			r.Post("/transactions", handler.RecordTransactionHandler)
			r.Get("/summary", handler.SummaryHandler)
		})
	})

	r.Post("/transfers", handler.TransferHandler)

	r.Route("/cards", func(r chi.Router) {
		r.Post("/", handler.CreateCardHandler)
		r.Route("/me", func(r chi.Router) {
			r.Get("/", handler.GetCardHandler)
			r.Patch("/status", handler.UpdateCardStatusHandler)
			r.Patch("/pin", handler.UpdateCardPINHandler)
			r.Patch("/limit", handler.UpdateCardLimitHandler)
		})
	})
}
