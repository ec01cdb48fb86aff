package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"donationledger/internal/domain"
	"donationledger/internal/middleware"
)

// Ledger is the subset of ledger.Service the handlers need.
type Ledger interface {
	History(ctx context.Context, userID string) ([]domain.TransactionView, error)
	Record(ctx context.Context, d domain.Donation) (domain.Donation, error)
	Submit(ctx context.Context, d domain.Donation) (domain.Donation, error)
	UpdateStatus(ctx context.Context, hash string, status domain.Status) (domain.Donation, error)
}

type App struct {
	Ledger  Ledger
	Logger  zerolog.Logger
	Backend string
}

func NewApp(ledger Ledger, backend string, logger zerolog.Logger) *App {
	return &App{Ledger: ledger, Backend: backend, Logger: logger}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// ledgerError maps a ledger failure onto the error envelope.
func (a *App) ledgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrInvalidDonation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "donation not found")
	case errors.Is(err, domain.ErrReconciliationConflict):
		a.error(w, http.StatusConflict, "reconciliation_conflict", err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("store unavailable")
		a.error(w, http.StatusServiceUnavailable, "store_unavailable", "donation history is temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("ledger request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
