package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore is the production Store implementation on PostgreSQL.
// All mutations run in SERIALIZABLE transactions with row locks on the
// touched accounts; serialization failures are retried.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

const (
	maxTxRetries         = 3
	queryTimeout         = 5 * time.Second
	scanTimeout          = 30 * time.Second
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

// WithSerializableTx runs fn inside a SERIALIZABLE read-write
// transaction, retrying up to maxTxRetries times on serialization
// failure. It is exported so stores layered on the ledger (documents,
// reconciliation) can combine their own writes with a posting in one
// atomic transaction.
func (s *PostgresStore) WithSerializableTx(ctx context.Context, fn func(pgx.Tx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
			if attempt == maxTxRetries-1 {
				return fmt.Errorf("transaction failed after %d retries due to serialization failure: %w", maxTxRetries, err)
			}
			time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
			continue
		}
		return err
	}
	return nil
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(pgx.Tx) error) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	conn, err := s.Pool.Acquire(queryCtx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(queryCtx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(queryCtx)
}

// CreateAccount implements Store.
func (s *PostgresStore) CreateAccount(ctx context.Context, a *Account) error {
	return s.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		if a.Code == "" {
			var last string
			err := tx.QueryRow(ctx, `
				SELECT code FROM accounts
				WHERE organization_id = $1 AND type = $2
				ORDER BY code DESC LIMIT 1
			`, a.OrganizationID, a.Type).Scan(&last)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to read last account code: %w", err)
			}
			a.Code = nextAccountCode(last, a.Type)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO accounts
				(id, organization_id, code, name, type, parent_account_id, is_system, current_balance, created_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		`, a.ID, a.OrganizationID, a.Code, a.Name, a.Type, a.ParentAccountID,
			a.IsSystem, a.CurrentBalance.String(), a.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrDuplicateAccount
			}
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	})
}

const accountColumns = `
	id, organization_id, code, name, type,
	COALESCE(parent_account_id, ''), is_system, current_balance::text, created_at
`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var balance string
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Code, &a.Name, &a.Type,
		&a.ParentAccountID, &a.IsSystem, &balance, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.CurrentBalance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	return &a, nil
}

// GetAccount implements Store.
func (s *PostgresStore) GetAccount(ctx context.Context, orgID, accountID string) (*Account, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAccount(s.Pool.QueryRow(queryCtx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &AccountNotFoundError{AccountID: accountID}
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if a.OrganizationID != orgID {
		return nil, &CrossOrganizationAccountError{AccountID: accountID, OrganizationID: orgID}
	}
	return a, nil
}

// GetAccountByCode implements Store.
func (s *PostgresStore) GetAccountByCode(ctx context.Context, orgID, code string) (*Account, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAccount(s.Pool.QueryRow(queryCtx,
		`SELECT `+accountColumns+` FROM accounts WHERE organization_id = $1 AND code = $2`,
		orgID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &AccountNotFoundError{AccountID: code}
		}
		return nil, fmt.Errorf("failed to get account by code: %w", err)
	}
	return a, nil
}

// ListAccounts implements Store.
func (s *PostgresStore) ListAccounts(ctx context.Context, orgID string) ([]*Account, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx,
		`SELECT `+accountColumns+` FROM accounts WHERE organization_id = $1 ORDER BY code`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount implements Store.
func (s *PostgresStore) DeleteAccount(ctx context.Context, orgID, accountID string) error {
	return s.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		var ownerOrg string
		var isSystem bool
		err := tx.QueryRow(ctx, `
			SELECT organization_id, is_system FROM accounts WHERE id = $1 FOR UPDATE
		`, accountID).Scan(&ownerOrg, &isSystem)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &AccountNotFoundError{AccountID: accountID}
			}
			return fmt.Errorf("failed to lock account: %w", err)
		}
		if ownerOrg != orgID {
			return &CrossOrganizationAccountError{AccountID: accountID, OrganizationID: orgID}
		}
		if isSystem {
			return ErrSystemAccount
		}

		var referenced bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM journal_entry_lines l
				JOIN journal_entries e ON e.id = l.entry_id
				WHERE l.account_id = $1 AND e.status = 'POSTED'
			)
		`, accountID).Scan(&referenced)
		if err != nil {
			return fmt.Errorf("failed to check account references: %w", err)
		}
		if referenced {
			return ErrAccountInUse
		}

		_, err = tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	})
}

// ApplyEntry implements Store.
func (s *PostgresStore) ApplyEntry(ctx context.Context, e *Entry) error {
	return s.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		return s.ApplyEntryInTx(ctx, tx, e)
	})
}

// ApplyEntryInTx performs the atomic posting work inside an existing
// transaction: verify and lock the line accounts, allocate the next
// per-organization entry number, insert the entry with its lines, and
// apply balance deltas for POSTED entries.
func (s *PostgresStore) ApplyEntryInTx(ctx context.Context, tx pgx.Tx, e *Entry) error {
	nets := lineAccountNets(e)
	accountIDs := sortedAccountIDs(nets)

	// Accounts are locked in sorted order to avoid lock-order
	// deadlocks between concurrent postings.
	for _, accountID := range accountIDs {
		var ownerOrg string
		err := tx.QueryRow(ctx, `
			SELECT organization_id FROM accounts WHERE id = $1 FOR UPDATE
		`, accountID).Scan(&ownerOrg)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &AccountNotFoundError{AccountID: accountID}
			}
			return fmt.Errorf("failed to lock account: %w", err)
		}
		if ownerOrg != e.OrganizationID {
			return &CrossOrganizationAccountError{AccountID: accountID, OrganizationID: e.OrganizationID}
		}
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO journal_sequences (organization_id, last_number)
		VALUES ($1, 1)
		ON CONFLICT (organization_id)
		DO UPDATE SET last_number = journal_sequences.last_number + 1
		RETURNING last_number
	`, e.OrganizationID).Scan(&e.EntryNumber)
	if err != nil {
		return fmt.Errorf("failed to allocate entry number: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO journal_entries
			(id, organization_id, entry_number, date, description, status, reference_type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
	`, e.ID, e.OrganizationID, e.EntryNumber, e.Date, e.Description, e.Status,
		e.ReferenceType, e.ReferenceID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	for i, l := range e.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO journal_entry_lines (id, entry_id, account_id, debit, credit, description, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, l.ID, e.ID, l.AccountID, l.Debit.String(), l.Credit.String(), l.Description, i)
		if err != nil {
			return fmt.Errorf("failed to insert journal line: %w", err)
		}
	}

	if e.Status == StatusPosted {
		if err := applyBalanceDeltas(ctx, tx, nets, accountIDs); err != nil {
			return err
		}
	}
	return nil
}

func lineAccountNets(e *Entry) map[string]decimal.Decimal {
	nets := make(map[string]decimal.Decimal)
	for _, l := range e.Lines {
		nets[l.AccountID] = nets[l.AccountID].Add(l.Debit).Sub(l.Credit)
	}
	return nets
}

func sortedAccountIDs(nets map[string]decimal.Decimal) []string {
	ids := make([]string, 0, len(nets))
	for id := range nets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func applyBalanceDeltas(ctx context.Context, tx pgx.Tx, nets map[string]decimal.Decimal, accountIDs []string) error {
	for _, accountID := range accountIDs {
		_, err := tx.Exec(ctx, `
			UPDATE accounts SET current_balance = current_balance + $2 WHERE id = $1
		`, accountID, nets[accountID].String())
		if err != nil {
			return fmt.Errorf("failed to update account balance: %w", err)
		}
	}
	return nil
}

const entryColumns = `
	id, organization_id, entry_number, date, description, status,
	COALESCE(reference_type, ''), COALESCE(reference_id, ''), created_at
`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.OrganizationID, &e.EntryNumber, &e.Date, &e.Description,
		&e.Status, &e.ReferenceType, &e.ReferenceID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) loadLines(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, entryID string) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, account_id, debit::text, credit::text, description
		FROM journal_entry_lines WHERE entry_id = $1 ORDER BY position
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		var debit, credit string
		if err := rows.Scan(&l.ID, &l.AccountID, &debit, &credit, &l.Description); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		if l.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("failed to parse debit: %w", err)
		}
		if l.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("failed to parse credit: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetEntry implements Store.
func (s *PostgresStore) GetEntry(ctx context.Context, orgID, entryID string) (*Entry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	e, err := scanEntry(s.Pool.QueryRow(queryCtx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 AND organization_id = $2`,
		entryID, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	if e.Lines, err = s.loadLines(queryCtx, s.Pool, entryID); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntries implements Store.
func (s *PostgresStore) ListEntries(ctx context.Context, orgID string, f EntryFilter) ([]*Entry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE organization_id = $1`
	args := []any{orgID}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.ReferenceType != "" {
		args = append(args, f.ReferenceType)
		query += fmt.Sprintf(" AND reference_type = $%d", len(args))
	}
	if f.ReferenceID != "" {
		args = append(args, f.ReferenceID)
		query += fmt.Sprintf(" AND reference_id = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY entry_number DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.Pool.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Lines, err = s.loadLines(queryCtx, s.Pool, e.ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// PostDraftEntry implements Store.
func (s *PostgresStore) PostDraftEntry(ctx context.Context, orgID, entryID string) (*Entry, error) {
	var posted *Entry
	err := s.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		e, err := scanEntry(tx.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
			entryID, orgID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("failed to lock entry: %w", err)
		}
		if e.Status != StatusDraft {
			return ErrNotDraft
		}
		if e.Lines, err = s.loadLines(ctx, tx, entryID); err != nil {
			return err
		}
		if err := CheckBalanced(e.Lines); err != nil {
			return err
		}

		nets := lineAccountNets(e)
		accountIDs := sortedAccountIDs(nets)
		for _, accountID := range accountIDs {
			var ownerOrg string
			err := tx.QueryRow(ctx,
				`SELECT organization_id FROM accounts WHERE id = $1 FOR UPDATE`,
				accountID).Scan(&ownerOrg)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return &AccountNotFoundError{AccountID: accountID}
				}
				return fmt.Errorf("failed to lock account: %w", err)
			}
			if ownerOrg != orgID {
				return &CrossOrganizationAccountError{AccountID: accountID, OrganizationID: orgID}
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE journal_entries SET status = $2 WHERE id = $1`, entryID, StatusPosted); err != nil {
			return fmt.Errorf("failed to update entry status: %w", err)
		}
		if err := applyBalanceDeltas(ctx, tx, nets, accountIDs); err != nil {
			return err
		}

		e.Status = StatusPosted
		posted = e
		return nil
	})
	return posted, err
}

// DeleteDraftEntry implements Store.
func (s *PostgresStore) DeleteDraftEntry(ctx context.Context, orgID, entryID string) error {
	return s.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		status, err := s.lockEntryStatus(ctx, tx, orgID, entryID)
		if err != nil {
			return err
		}
		if status != StatusDraft {
			return ErrNotDraft
		}
		// Lines cascade with the entry.
		if _, err := tx.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, entryID); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		return nil
	})
}

// ArchiveDraftEntry implements Store.
func (s *PostgresStore) ArchiveDraftEntry(ctx context.Context, orgID, entryID string) error {
	return s.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		status, err := s.lockEntryStatus(ctx, tx, orgID, entryID)
		if err != nil {
			return err
		}
		if status != StatusDraft {
			return ErrNotDraft
		}
		if _, err := tx.Exec(ctx,
			`UPDATE journal_entries SET status = $2 WHERE id = $1`, entryID, StatusArchived); err != nil {
			return fmt.Errorf("failed to archive entry: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) lockEntryStatus(ctx context.Context, tx pgx.Tx, orgID, entryID string) (EntryStatus, error) {
	var status EntryStatus
	err := tx.QueryRow(ctx, `
		SELECT status FROM journal_entries WHERE id = $1 AND organization_id = $2 FOR UPDATE
	`, entryID, orgID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrEntryNotFound
		}
		return "", fmt.Errorf("failed to lock entry: %w", err)
	}
	return status, nil
}

// EntriesTouchingAccount implements Store.
func (s *PostgresStore) EntriesTouchingAccount(ctx context.Context, orgID, accountID string, from, to time.Time) ([]*Entry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, `
		SELECT DISTINCT `+entryColumns+`
		FROM journal_entries e
		WHERE e.organization_id = $1
		  AND e.status = 'POSTED'
		  AND e.date BETWEEN $2 AND $3
		  AND EXISTS (
			SELECT 1 FROM journal_entry_lines l
			WHERE l.entry_id = e.id AND l.account_id = $4
		  )
		ORDER BY date DESC, entry_number DESC
	`, orgID, from, to, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Lines, err = s.loadLines(queryCtx, s.Pool, e.ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// PostedLineTotals implements Store.
func (s *PostgresStore) PostedLineTotals(ctx context.Context, orgID string) (map[string]decimal.Decimal, error) {
	queryCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	rows, err := s.Pool.Query(queryCtx, `
		SELECT l.account_id, COALESCE(SUM(l.debit - l.credit), 0)::text
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.organization_id = $1 AND e.status = 'POSTED'
		GROUP BY l.account_id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var accountID, sum string
		if err := rows.Scan(&accountID, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan line total: %w", err)
		}
		d, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("failed to parse line total: %w", err)
		}
		totals[accountID] = d
	}
	return totals, rows.Err()
}
