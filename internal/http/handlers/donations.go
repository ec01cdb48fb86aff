package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"donationledger/internal/domain"
)

type donationRequest struct {
	CharityID       *string             `json:"charity_id"`
	AmountFiat      decimal.NullDecimal `json:"amount_fiat"`
	AmountCrypto    decimal.NullDecimal `json:"amount_crypto"`
	TransactionHash string              `json:"transaction_hash"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type donationDTO struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	CharityID       *string             `json:"charity_id"`
	AmountFiat      decimal.NullDecimal `json:"amount_fiat"`
	AmountCrypto    decimal.NullDecimal `json:"amount_crypto"`
	TransactionHash string              `json:"transaction_hash,omitempty"`
	Status          string              `json:"status"`
	CreatedAt       *time.Time          `json:"created_at,omitempty"`
}

func toDonationDTO(d domain.Donation) donationDTO {
	out := donationDTO{
		ID:              d.ID,
		UserID:          d.UserID,
		CharityID:       d.CharityID,
		AmountFiat:      d.AmountFiat,
		AmountCrypto:    d.AmountCrypto,
		TransactionHash: d.TransactionHash,
		Status:          string(d.Status),
	}
	if !d.CreatedAt.IsZero() {
		created := d.CreatedAt
		out.CreatedAt = &created
	}
	return out
}

func (a *App) decodeDonation(w http.ResponseWriter, r *http.Request) (domain.Donation, bool) {
	var req donationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return domain.Donation{}, false
	}
	if req.CharityID != nil && strings.TrimSpace(*req.CharityID) == "" {
		req.CharityID = nil
	}
	return domain.Donation{
		UserID:          a.currentUserID(r),
		CharityID:       req.CharityID,
		AmountFiat:      req.AmountFiat,
		AmountCrypto:    req.AmountCrypto,
		TransactionHash: strings.TrimSpace(req.TransactionHash),
	}, true
}

// DonationsCreate records a donation the payment side already confirmed.
func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	d, ok := a.decodeDonation(w, r)
	if !ok {
		return
	}
	if !d.AmountFiat.Valid && !d.AmountCrypto.Valid {
		a.error(w, http.StatusBadRequest, "bad_request", "amount_fiat or amount_crypto required")
		return
	}
	stored, err := a.Ledger.Record(r.Context(), d)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toDonationDTO(stored))
}

// DonationsPending saves a donation before its blockchain transaction is
// confirmed.
func (a *App) DonationsPending(w http.ResponseWriter, r *http.Request) {
	d, ok := a.decodeDonation(w, r)
	if !ok {
		return
	}
	if d.TransactionHash == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "transaction_hash required")
		return
	}
	held, err := a.Ledger.Submit(r.Context(), d)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, toDonationDTO(held))
}

// DonationStatus settles the donation identified by its transaction hash.
func (a *App) DonationStatus(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimSpace(chi.URLParam(r, "hash"))
	if hash == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "transaction hash required")
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	status, ok := domain.ParseStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "status must be pending, completed or failed")
		return
	}
	updated, err := a.Ledger.UpdateStatus(r.Context(), hash, status)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toDonationDTO(updated))
}
