package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// MemoryStore adapts the in-memory ledger store to the report read
// contract.
type MemoryStore struct {
	ledger *ledger.MemoryStore
}

// NewMemoryStore creates a report store reading from the given ledger
// store.
func NewMemoryStore(ls *ledger.MemoryStore) *MemoryStore {
	return &MemoryStore{ledger: ls}
}

// Accounts implements Store.
func (m *MemoryStore) Accounts(ctx context.Context, orgID string) ([]*ledger.Account, error) {
	return m.ledger.ListAccounts(ctx, orgID)
}

// NetTotals implements Store.
func (m *MemoryStore) NetTotals(ctx context.Context, orgID string, from, to *time.Time) (map[string]decimal.Decimal, error) {
	totals := make(map[string]decimal.Decimal)
	for _, e := range m.ledger.PostedEntriesSnapshot(orgID) {
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		for _, l := range e.Lines {
			totals[l.AccountID] = totals[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	return totals, nil
}

// GrossTotals implements Store.
func (m *MemoryStore) GrossTotals(ctx context.Context, orgID string, from, to *time.Time) (map[string]AccountTotals, error) {
	totals := make(map[string]AccountTotals)
	for _, e := range m.ledger.PostedEntriesSnapshot(orgID) {
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		for _, l := range e.Lines {
			t := totals[l.AccountID]
			t.Debit = t.Debit.Add(l.Debit)
			t.Credit = t.Credit.Add(l.Credit)
			totals[l.AccountID] = t
		}
	}
	return totals, nil
}
