package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"donationledger/internal/domain"
	"donationledger/internal/http/handlers"
	"donationledger/internal/middleware"
)

type fakeLedger struct{}

func (fakeLedger) History(_ context.Context, userID string) ([]domain.TransactionView, error) {
	return []domain.TransactionView{{ID: "1", UserID: userID, Charity: domain.UnknownCharity, Status: domain.StatusPending}}, nil
}

func (fakeLedger) Record(_ context.Context, d domain.Donation) (domain.Donation, error) {
	return d, nil
}

func (fakeLedger) Submit(_ context.Context, d domain.Donation) (domain.Donation, error) {
	return d, nil
}

func (fakeLedger) UpdateStatus(_ context.Context, hash string, status domain.Status) (domain.Donation, error) {
	return domain.Donation{UserID: "u1", TransactionHash: hash, Status: status}, nil
}

func newTestRouter() http.Handler {
	app := handlers.NewApp(fakeLedger{}, "remote", zerolog.Nop())
	return NewRouter(app, Options{JWTSecret: "secret", RateLimitPerMin: 100, Logger: zerolog.Nop()})
}

func TestRouterRequiresToken(t *testing.T) {
	h := newTestRouter()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/me/transactions"},
		{http.MethodPost, "/v1/donations"},
		{http.MethodPatch, "/v1/donations/0xabc/status"},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: got %d", tc.method, tc.path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", rr.Code)
	}
}

func TestRouterServesAuthenticatedRoutes(t *testing.T) {
	h := newTestRouter()
	token, err := middleware.SignJWT("secret", "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/v1/me/transactions", "", http.StatusOK},
		{http.MethodPost, "/v1/donations", `{"amount_fiat":"5"}`, http.StatusCreated},
		{http.MethodPost, "/v1/donations/pending", `{"transaction_hash":"0x1"}`, http.StatusAccepted},
		{http.MethodPatch, "/v1/donations/0x1/status", `{"status":"completed"}`, http.StatusOK},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("%s %s: got %d, want %d (%s)", tc.method, tc.path, rr.Code, tc.want, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s %s: missing request id", tc.method, tc.path)
		}
	}
}
