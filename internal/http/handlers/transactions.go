package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type charityDTO struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

type transactionDTO struct {
	ID              string              `json:"id"`
	Charity         charityDTO          `json:"charity"`
	AmountFiat      decimal.Decimal     `json:"amount_fiat"`
	AmountCrypto    decimal.NullDecimal `json:"amount_crypto"`
	TransactionHash string              `json:"transaction_hash,omitempty"`
	Status          string              `json:"status"`
	StatusLabel     string              `json:"status_label"`
	Source          string              `json:"source"`
	CreatedAt       time.Time           `json:"created_at"`
}

// MyTransactions returns the caller's donation history, newest first. An
// empty history is {"items": []}.
func (a *App) MyTransactions(w http.ResponseWriter, r *http.Request) {
	views, err := a.Ledger.History(r.Context(), a.currentUserID(r))
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	title := cases.Title(requestLanguage(r))
	items := make([]transactionDTO, 0, len(views))
	for _, v := range views {
		items = append(items, transactionDTO{
			ID: v.ID,
			Charity: charityDTO{
				ID:            v.Charity.ID,
				Name:          v.Charity.Name,
				WalletAddress: v.Charity.WalletAddress,
			},
			AmountFiat:      v.AmountFiat,
			AmountCrypto:    v.AmountCrypto,
			TransactionHash: v.TransactionHash,
			Status:          string(v.Status),
			StatusLabel:     title.String(string(v.Status)),
			Source:          string(v.Provenance),
			CreatedAt:       v.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func requestLanguage(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	return tags[0]
}
