package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

// donationRow mirrors the column list of the donation queries.
type donationRow struct {
	id           string
	userID       string
	charityID    *string
	amountFiat   *string
	amountCrypto *string
	hash         *string
	status       *string
	createdAt    time.Time
}

func (row donationRow) scanInto(dest ...any) error {
	if len(dest) != 8 {
		return fmt.Errorf("unexpected scan args: %d", len(dest))
	}
	*(dest[0].(*string)) = row.id
	*(dest[1].(*string)) = row.userID
	*(dest[2].(**string)) = row.charityID
	*(dest[3].(**string)) = row.amountFiat
	*(dest[4].(**string)) = row.amountCrypto
	*(dest[5].(**string)) = row.hash
	*(dest[6].(**string)) = row.status
	*(dest[7].(*time.Time)) = row.createdAt
	return nil
}

type scannerRows struct {
	testRowsBase
	rows []func(dest ...any) error
	idx  int
	err  error
}

func (r *scannerRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *scannerRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return pgx.ErrNoRows
	}
	return r.rows[r.idx-1](dest...)
}

func (r *scannerRows) Err() error { return r.err }

func (r *scannerRows) Close() {}

type recordedCall struct {
	query string
	args  []any
}

// stubExecutor answers queries through per-query handlers and records calls.
type stubExecutor struct {
	queryRows map[string]func(args []any) pgx.Row
	queries   map[string]func(args []any) (pgx.Rows, error)
	calls     []recordedCall
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, recordedCall{query: query, args: args})
	return pgconn.CommandTag{}, errors.New("exec not expected")
}

func (s *stubExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, recordedCall{query: query, args: args})
	if h, ok := s.queryRows[query]; ok {
		return h(args)
	}
	return simpleRow{scan: func(...any) error { return fmt.Errorf("unexpected query: %s", query) }}
}

func (s *stubExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, recordedCall{query: query, args: args})
	if h, ok := s.queries[query]; ok {
		return h(args)
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

func strPtr(s string) *string { return &s }
