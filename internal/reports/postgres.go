package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// PostgresStore is the production report read path. Aggregation happens
// in SQL so report cost stays flat in the number of lines returned.
type PostgresStore struct {
	Ledger *ledger.PostgresStore
}

// NewPostgresStore creates a report store reading from the given ledger
// store.
func NewPostgresStore(ls *ledger.PostgresStore) *PostgresStore {
	return &PostgresStore{Ledger: ls}
}

// Accounts implements Store.
func (s *PostgresStore) Accounts(ctx context.Context, orgID string) ([]*ledger.Account, error) {
	return s.Ledger.ListAccounts(ctx, orgID)
}

// NetTotals implements Store.
func (s *PostgresStore) NetTotals(ctx context.Context, orgID string, from, to *time.Time) (map[string]decimal.Decimal, error) {
	query := `
		SELECT l.account_id, COALESCE(SUM(l.debit - l.credit), 0)::text
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.organization_id = $1 AND e.status = 'POSTED'
	`
	args := []any{orgID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND e.date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND e.date <= $%d", len(args))
	}
	query += " GROUP BY l.account_id"

	rows, err := s.Ledger.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query net totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var accountID, sum string
		if err := rows.Scan(&accountID, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan net total: %w", err)
		}
		d, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("failed to parse net total: %w", err)
		}
		totals[accountID] = d
	}
	return totals, rows.Err()
}

// GrossTotals implements Store.
func (s *PostgresStore) GrossTotals(ctx context.Context, orgID string, from, to *time.Time) (map[string]AccountTotals, error) {
	query := `
		SELECT l.account_id, COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.organization_id = $1 AND e.status = 'POSTED'
	`
	args := []any{orgID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND e.date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND e.date <= $%d", len(args))
	}
	query += " GROUP BY l.account_id"

	rows, err := s.Ledger.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gross totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]AccountTotals)
	for rows.Next() {
		var accountID, debit, credit string
		if err := rows.Scan(&accountID, &debit, &credit); err != nil {
			return nil, fmt.Errorf("failed to scan gross total: %w", err)
		}
		d, err := decimal.NewFromString(debit)
		if err != nil {
			return nil, fmt.Errorf("failed to parse debit total: %w", err)
		}
		c, err := decimal.NewFromString(credit)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credit total: %w", err)
		}
		totals[accountID] = AccountTotals{Debit: d, Credit: c}
	}
	return totals, rows.Err()
}
