package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openbooks-dev/openbooks/internal/ledger"
	"github.com/openbooks-dev/openbooks/internal/money"
)

// matchWindowDays bounds the candidate search to entries dated within
// this many days of the statement line on either side.
const matchWindowDays = 7

// Service drives statement import and matching.
type Service struct {
	store  Store
	ledger Ledger
	logger *slog.Logger
}

// NewService creates a new reconciliation service.
func NewService(store Store, ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ledger: ledger, logger: logger}
}

// ImportStatement parses a CSV statement and stores its lines as
// UNMATCHED transactions against the given bank account. The import is
// all-or-nothing: the first unusable row abandons the whole file. Rows
// whose external ID is already present on the account are re-imports
// and are skipped; rows without an external ID cannot be deduplicated.
func (s *Service) ImportStatement(ctx context.Context, orgID, accountID string, r io.Reader) ([]*BankTransaction, error) {
	if _, err := s.ledger.GetAccount(ctx, orgID, accountID); err != nil {
		return nil, err
	}

	rows, err := parseStatement(r)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.List(ctx, orgID, TxFilter{AccountID: accountID})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, tx := range existing {
		if tx.ExternalID != "" {
			seen[tx.ExternalID] = true
		}
	}

	now := time.Now().UTC()
	txs := make([]*BankTransaction, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if row.ExternalID != "" {
			if seen[row.ExternalID] {
				skipped++
				continue
			}
			seen[row.ExternalID] = true
		}
		txs = append(txs, &BankTransaction{
			ID:             uuid.NewString(),
			OrganizationID: orgID,
			AccountID:      accountID,
			Date:           row.Date,
			Amount:         row.Amount,
			Description:    row.Description,
			ExternalID:     row.ExternalID,
			Status:         StatusUnmatched,
			CreatedAt:      now,
		})
	}

	if err := s.store.CreateBatch(ctx, txs); err != nil {
		return nil, err
	}
	s.logger.Info("statement imported",
		"organization_id", orgID,
		"account_id", accountID,
		"transactions", len(txs),
		"duplicates_skipped", skipped,
	)
	return txs, nil
}

// FindCandidates returns posted entries that could explain the
// transaction: dated within the match window, touching the bank
// account with a net effect equal to the statement amount within
// tolerance, and not already claimed by another transaction. Results
// are ordered most recent first.
func (s *Service) FindCandidates(ctx context.Context, orgID, txID string) ([]*ledger.Entry, error) {
	tx, err := s.store.Get(ctx, orgID, txID)
	if err != nil {
		return nil, err
	}

	from := tx.Date.AddDate(0, 0, -matchWindowDays)
	to := tx.Date.AddDate(0, 0, matchWindowDays)
	entries, err := s.ledger.EntriesTouchingAccount(ctx, orgID, tx.AccountID, from, to)
	if err != nil {
		return nil, err
	}

	claimed, err := s.claimedEntryIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var candidates []*ledger.Entry
	for _, e := range entries {
		if claimed[e.ID] {
			continue
		}
		if money.Equal(e.NetOnAccount(tx.AccountID), tx.Amount) {
			candidates = append(candidates, e)
		}
	}
	return candidates, nil
}

// Match links an UNMATCHED transaction to a posted entry. The amount is
// deliberately not verified: a manual match is a looser override for
// callers who know better than FindCandidates. Matching is idempotent
// in effect: re-matching a matched transaction fails with
// AlreadyMatchedError and changes nothing.
func (s *Service) Match(ctx context.Context, orgID, txID, entryID string) (*BankTransaction, error) {
	tx, err := s.matchableTx(ctx, orgID, txID)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.GetEntry(ctx, orgID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != ledger.StatusPosted {
		return nil, ErrEntryNotPosted
	}

	tx.Status = StatusMatched
	tx.MatchedJournalEntryID = entry.ID
	if err := s.store.Apply(ctx, tx, nil); err != nil {
		return nil, err
	}
	s.logger.Info("bank transaction matched",
		"organization_id", orgID,
		"transaction_id", tx.ID,
		"journal_entry_id", entry.ID,
	)
	return tx, nil
}

// CreateAndMatch posts a new two-line entry explaining the transaction
// and matches it in the same transaction. Money in debits the bank
// account against the contra account; money out credits it.
func (s *Service) CreateAndMatch(ctx context.Context, orgID, txID, contraAccountID, description string) (*BankTransaction, error) {
	tx, err := s.matchableTx(ctx, orgID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Amount.IsZero() {
		return nil, fmt.Errorf("cannot create an entry for a zero-amount transaction")
	}

	if description == "" {
		description = tx.Description
	}
	amount := tx.Amount.Abs()
	var lines []ledger.Line
	if tx.Amount.IsPositive() {
		lines = []ledger.Line{
			{ID: uuid.NewString(), AccountID: tx.AccountID, Debit: amount},
			{ID: uuid.NewString(), AccountID: contraAccountID, Credit: amount},
		}
	} else {
		lines = []ledger.Line{
			{ID: uuid.NewString(), AccountID: contraAccountID, Debit: amount},
			{ID: uuid.NewString(), AccountID: tx.AccountID, Credit: amount},
		}
	}

	entry := &ledger.Entry{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Date:           tx.Date,
		Description:    description,
		Status:         ledger.StatusPosted,
		ReferenceType:  ledger.RefBankTx,
		ReferenceID:    tx.ID,
		Lines:          lines,
		CreatedAt:      time.Now().UTC(),
	}

	tx.Status = StatusMatched
	tx.MatchedJournalEntryID = entry.ID
	if err := s.store.Apply(ctx, tx, entry); err != nil {
		return nil, err
	}
	s.logger.Info("bank transaction matched to new entry",
		"organization_id", orgID,
		"transaction_id", tx.ID,
		"journal_entry_id", entry.ID,
	)
	return tx, nil
}

// Exclude removes an UNMATCHED transaction from reconciliation without
// deleting it (bank fees already booked, duplicates, noise).
func (s *Service) Exclude(ctx context.Context, orgID, txID string) (*BankTransaction, error) {
	tx, err := s.matchableTx(ctx, orgID, txID)
	if err != nil {
		return nil, err
	}
	tx.Status = StatusExcluded
	if err := s.store.Apply(ctx, tx, nil); err != nil {
		return nil, err
	}
	return tx, nil
}

// Delete removes an UNMATCHED or EXCLUDED transaction. Matched
// transactions are frozen: they document a reconciliation decision.
func (s *Service) Delete(ctx context.Context, orgID, txID string) error {
	tx, err := s.store.Get(ctx, orgID, txID)
	if err != nil {
		return err
	}
	if tx.Status == StatusMatched {
		return ErrMatchedTxFrozen
	}
	return s.store.Delete(ctx, orgID, txID)
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, orgID, txID string) (*BankTransaction, error) {
	return s.store.Get(ctx, orgID, txID)
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f TxFilter) ([]*BankTransaction, error) {
	return s.store.List(ctx, orgID, f)
}

func (s *Service) matchableTx(ctx context.Context, orgID, txID string) (*BankTransaction, error) {
	tx, err := s.store.Get(ctx, orgID, txID)
	if err != nil {
		return nil, err
	}
	switch tx.Status {
	case StatusMatched:
		return nil, &AlreadyMatchedError{TransactionID: tx.ID, JournalEntryID: tx.MatchedJournalEntryID}
	case StatusExcluded:
		return nil, ErrTxExcluded
	}
	return tx, nil
}

func (s *Service) claimedEntryIDs(ctx context.Context, orgID string) (map[string]bool, error) {
	matched, err := s.store.List(ctx, orgID, TxFilter{Status: StatusMatched})
	if err != nil {
		return nil, err
	}
	claimed := make(map[string]bool, len(matched))
	for _, tx := range matched {
		claimed[tx.MatchedJournalEntryID] = true
	}
	return claimed, nil
}
