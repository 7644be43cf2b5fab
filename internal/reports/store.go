package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// Store is the read contract for the report builders.
type Store interface {
	// Accounts returns the organization's chart of accounts ordered by
	// code.
	Accounts(ctx context.Context, orgID string) ([]*ledger.Account, error)

	// NetTotals returns each account's summed debit - credit over
	// POSTED entries dated within [from, to], keyed by account ID. A
	// nil bound leaves that side of the range open.
	NetTotals(ctx context.Context, orgID string, from, to *time.Time) (map[string]decimal.Decimal, error)

	// GrossTotals returns each account's debit and credit sums over
	// POSTED entries dated within [from, to], summed independently
	// rather than netted, keyed by account ID.
	GrossTotals(ctx context.Context, orgID string, from, to *time.Time) (map[string]AccountTotals, error)
}

// AccountTotals carries one account's gross posted debit and credit
// sums.
type AccountTotals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}
