package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// PostgresStore is the production Store implementation. It reuses the
// ledger store's transaction machinery so that a document mutation and
// its journal entry commit or roll back together.
type PostgresStore struct {
	Ledger *ledger.PostgresStore
}

// NewPostgresStore creates a document store posting through the given
// ledger store.
func NewPostgresStore(ls *ledger.PostgresStore) *PostgresStore {
	return &PostgresStore{Ledger: ls}
}

// Apply implements Store. Mutations lock the stored row and re-check
// the expected state before writing, so two callers working from the
// same snapshot cannot both land.
func (s *PostgresStore) Apply(ctx context.Context, d *Document, expect *Expect, entry *ledger.Entry) error {
	return s.Ledger.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		if expect == nil {
			if err := s.insertDocument(ctx, tx, d); err != nil {
				return err
			}
		} else {
			if err := s.lockAndCheck(ctx, tx, d, expect); err != nil {
				return err
			}
			if err := s.updateDocument(ctx, tx, d); err != nil {
				return err
			}
		}

		if entry != nil {
			if err := s.Ledger.ApplyEntryInTx(ctx, tx, entry); err != nil {
				return err
			}
		}

		// Lines are replaced wholesale on every write.
		if _, err := tx.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, d.ID); err != nil {
			return fmt.Errorf("failed to clear document lines: %w", err)
		}
		for i, l := range d.Lines {
			_, err := tx.Exec(ctx, `
				INSERT INTO document_lines (id, document_id, account_id, description, quantity, unit_price, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, l.ID, d.ID, l.AccountID, l.Description, l.Quantity.String(), l.UnitPrice.String(), i)
			if err != nil {
				return fmt.Errorf("failed to insert document line: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) lockAndCheck(ctx context.Context, tx pgx.Tx, d *Document, expect *Expect) error {
	var status Status
	var paid string
	err := tx.QueryRow(ctx, `
		SELECT status, amount_paid::text FROM documents
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE
	`, d.ID, d.OrganizationID).Scan(&status, &paid)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock document: %w", err)
	}
	amountPaid, err := decimal.NewFromString(paid)
	if err != nil {
		return fmt.Errorf("failed to parse amount paid: %w", err)
	}
	if status != expect.Status || !amountPaid.Equal(expect.AmountPaid) {
		return ErrConcurrentUpdate
	}
	return nil
}

func (s *PostgresStore) insertDocument(ctx context.Context, tx pgx.Tx, d *Document) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO documents
			(id, organization_id, kind, counterparty, number, date, due_date,
			 status, total_amount, amount_paid, journal_entry_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '0001-01-01'::date),
			 $8, $9, $10, NULLIF($11, ''), $12, $13, $14)
	`, d.ID, d.OrganizationID, d.Kind, d.Counterparty, d.Number, d.Date, d.DueDate,
		d.Status, d.TotalAmount.String(), d.AmountPaid.String(),
		d.JournalEntryID, d.Notes, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) updateDocument(ctx context.Context, tx pgx.Tx, d *Document) error {
	_, err := tx.Exec(ctx, `
		UPDATE documents SET
			counterparty = $3, number = $4, date = $5,
			due_date = NULLIF($6, '0001-01-01'::date), status = $7,
			total_amount = $8, amount_paid = $9,
			journal_entry_id = NULLIF($10, ''), notes = $11, updated_at = $12
		WHERE id = $1 AND organization_id = $2
	`, d.ID, d.OrganizationID, d.Counterparty, d.Number, d.Date, d.DueDate,
		d.Status, d.TotalAmount.String(), d.AmountPaid.String(),
		d.JournalEntryID, d.Notes, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

const documentColumns = `
	id, organization_id, kind, counterparty, number, date,
	COALESCE(due_date, '0001-01-01'::date), status,
	total_amount::text, amount_paid::text,
	COALESCE(journal_entry_id, ''), COALESCE(notes, ''), created_at, updated_at
`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var total, paid string
	err := row.Scan(&d.ID, &d.OrganizationID, &d.Kind, &d.Counterparty, &d.Number,
		&d.Date, &d.DueDate, &d.Status, &total, &paid,
		&d.JournalEntryID, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if d.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to parse total: %w", err)
	}
	if d.AmountPaid, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("failed to parse amount paid: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) loadLines(ctx context.Context, docID string) ([]DocLine, error) {
	rows, err := s.Ledger.Pool.Query(ctx, `
		SELECT id, account_id, description, quantity::text, unit_price::text
		FROM document_lines WHERE document_id = $1 ORDER BY position
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document lines: %w", err)
	}
	defer rows.Close()

	var lines []DocLine
	for rows.Next() {
		var l DocLine
		var quantity, unitPrice string
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Description, &quantity, &unitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan document line: %w", err)
		}
		if l.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if l.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("failed to parse unit price: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, orgID, docID string) (*Document, error) {
	d, err := scanDocument(s.Ledger.Pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND organization_id = $2`,
		docID, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if d.Lines, err = s.loadLines(ctx, docID); err != nil {
		return nil, err
	}
	return d, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, orgID string, f Filter) ([]*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = $1`
	args := []any{orgID}

	if f.Kind != "" {
		args = append(args, f.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
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
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, d := range docs {
		if d.Lines, err = s.loadLines(ctx, d.ID); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, orgID, docID string) error {
	tag, err := s.Ledger.Pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND organization_id = $2`, docID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
