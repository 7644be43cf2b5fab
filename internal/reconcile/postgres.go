package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// PostgresStore is the production Store implementation. Batch imports
// and match-with-posting both run inside the ledger store's
// serializable transactions.
type PostgresStore struct {
	Ledger *ledger.PostgresStore
}

// NewPostgresStore creates a bank transaction store posting through the
// given ledger store.
func NewPostgresStore(ls *ledger.PostgresStore) *PostgresStore {
	return &PostgresStore{Ledger: ls}
}

// CreateBatch implements Store.
func (s *PostgresStore) CreateBatch(ctx context.Context, txs []*BankTransaction) error {
	return s.Ledger.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		for _, bt := range txs {
			_, err := tx.Exec(ctx, `
				INSERT INTO bank_transactions
					(id, organization_id, account_id, date, amount, description, external_id,
					 status, matched_journal_entry_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
			`, bt.ID, bt.OrganizationID, bt.AccountID, bt.Date, bt.Amount.String(),
				bt.Description, bt.ExternalID, bt.Status, bt.MatchedJournalEntryID, bt.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert bank transaction: %w", err)
			}
		}
		return nil
	})
}

// Apply implements Store. The row is locked and its status re-checked
// inside the transaction, so a match computed from a stale read cannot
// claim an already-claimed line or post a second entry for it.
func (s *PostgresStore) Apply(ctx context.Context, bt *BankTransaction, entry *ledger.Entry) error {
	return s.Ledger.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		var status TxStatus
		var matchedID string
		err := tx.QueryRow(ctx, `
			SELECT status, COALESCE(matched_journal_entry_id, '')
			FROM bank_transactions
			WHERE id = $1 AND organization_id = $2
			FOR UPDATE
		`, bt.ID, bt.OrganizationID).Scan(&status, &matchedID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBankTxNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock bank transaction: %w", err)
		}
		switch status {
		case StatusMatched:
			return &AlreadyMatchedError{TransactionID: bt.ID, JournalEntryID: matchedID}
		case StatusExcluded:
			return ErrTxExcluded
		}

		if entry != nil {
			if err := s.Ledger.ApplyEntryInTx(ctx, tx, entry); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE bank_transactions
			SET status = $3, matched_journal_entry_id = NULLIF($4, '')
			WHERE id = $1 AND organization_id = $2
		`, bt.ID, bt.OrganizationID, bt.Status, bt.MatchedJournalEntryID); err != nil {
			return fmt.Errorf("failed to update bank transaction: %w", err)
		}
		return nil
	})
}

const bankTxColumns = `
	id, organization_id, account_id, date, amount::text, description,
	COALESCE(external_id, ''), status, COALESCE(matched_journal_entry_id, ''), created_at
`

func scanBankTx(row pgx.Row) (*BankTransaction, error) {
	var bt BankTransaction
	var amount string
	err := row.Scan(&bt.ID, &bt.OrganizationID, &bt.AccountID, &bt.Date, &amount,
		&bt.Description, &bt.ExternalID, &bt.Status, &bt.MatchedJournalEntryID, &bt.CreatedAt)
	if err != nil {
		return nil, err
	}
	if bt.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	return &bt, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, orgID, txID string) (*BankTransaction, error) {
	bt, err := scanBankTx(s.Ledger.Pool.QueryRow(ctx,
		`SELECT `+bankTxColumns+` FROM bank_transactions WHERE id = $1 AND organization_id = $2`,
		txID, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBankTxNotFound
		}
		return nil, fmt.Errorf("failed to get bank transaction: %w", err)
	}
	return bt, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, orgID string, f TxFilter) ([]*BankTransaction, error) {
	query := `SELECT ` + bankTxColumns + ` FROM bank_transactions WHERE organization_id = $1`
	args := []any{orgID}

	if f.AccountID != "" {
		args = append(args, f.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY date DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.Ledger.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank transactions: %w", err)
	}
	defer rows.Close()

	var txs []*BankTransaction
	for rows.Next() {
		bt, err := scanBankTx(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank transaction: %w", err)
		}
		txs = append(txs, bt)
	}
	return txs, rows.Err()
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, orgID, txID string) error {
	tag, err := s.Ledger.Pool.Exec(ctx,
		`DELETE FROM bank_transactions WHERE id = $1 AND organization_id = $2`, txID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete bank transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBankTxNotFound
	}
	return nil
}
