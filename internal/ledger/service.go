package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/money"
)

// Service provides the high-level API for double-entry bookkeeping. It
// validates every entry before handing it to the store and is the
// single source of truth for "is this entry valid".
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new ledger service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// PostEntryRequest carries the inputs for posting a journal entry.
type PostEntryRequest struct {
	OrganizationID string      `json:"organization_id"`
	Date           time.Time   `json:"date"`
	Description    string      `json:"description"`
	Status         EntryStatus `json:"status"`
	ReferenceType  string      `json:"reference_type"`
	ReferenceID    string      `json:"reference_id"`
	Lines          []Line      `json:"lines"`
}

// PostEntry validates and records a journal entry. A POSTED entry must
// balance within the shared tolerance; a DRAFT entry may be unbalanced
// but is held to the same per-line rules. On success the entry carries
// its assigned entry number; on any failure no partial state is
// visible.
func (s *Service) PostEntry(ctx context.Context, req PostEntryRequest) (*Entry, error) {
	status := req.Status
	if status == "" {
		status = StatusPosted
	}
	if status != StatusDraft && status != StatusPosted {
		return nil, ErrInvalidStatus
	}
	if req.Date.IsZero() {
		return nil, ErrInvalidDate
	}
	if err := ValidateLines(req.Lines); err != nil {
		return nil, err
	}
	if status == StatusPosted {
		if err := CheckBalanced(req.Lines); err != nil {
			return nil, err
		}
	}

	entry := &Entry{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Date:           req.Date.Truncate(24 * time.Hour),
		Description:    req.Description,
		Status:         status,
		ReferenceType:  req.ReferenceType,
		ReferenceID:    req.ReferenceID,
		Lines:          req.Lines,
		CreatedAt:      time.Now().UTC(),
	}
	for i := range entry.Lines {
		if entry.Lines[i].ID == "" {
			entry.Lines[i].ID = uuid.NewString()
		}
	}

	if err := s.store.ApplyEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// PostDraft transitions a DRAFT entry to POSTED. The balance invariant
// is enforced inside the store transaction that applies the deltas.
func (s *Service) PostDraft(ctx context.Context, orgID, entryID string) (*Entry, error) {
	return s.store.PostDraftEntry(ctx, orgID, entryID)
}

// DeleteDraft removes a DRAFT entry and its lines.
func (s *Service) DeleteDraft(ctx context.Context, orgID, entryID string) error {
	return s.store.DeleteDraftEntry(ctx, orgID, entryID)
}

// ArchiveDraft retires a DRAFT entry without posting it. ARCHIVED is
// reachable only from DRAFT; posted entries are immutable.
func (s *Service) ArchiveDraft(ctx context.Context, orgID, entryID string) error {
	return s.store.ArchiveDraftEntry(ctx, orgID, entryID)
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, orgID, entryID string) (*Entry, error) {
	return s.store.GetEntry(ctx, orgID, entryID)
}

// ListEntries returns entries matching the filter.
func (s *Service) ListEntries(ctx context.Context, orgID string, f EntryFilter) ([]*Entry, error) {
	return s.store.ListEntries(ctx, orgID, f)
}

// CreateAccountRequest carries the inputs for creating an account.
type CreateAccountRequest struct {
	OrganizationID  string      `json:"organization_id"`
	Name            string      `json:"name"`
	Type            AccountType `json:"type"`
	ParentAccountID string      `json:"parent_account_id"`
}

// CreateAccount creates a user account with the next code in its
// type's numbering range.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if req.Name == "" {
		return nil, errors.New("account name is required")
	}
	if !req.Type.Valid() {
		return nil, errors.New("invalid account type: " + string(req.Type))
	}

	account := &Account{
		ID:              uuid.NewString(),
		OrganizationID:  req.OrganizationID,
		Name:            req.Name,
		Type:            req.Type,
		ParentAccountID: req.ParentAccountID,
		CurrentBalance:  decimal.Zero,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount returns an account scoped to the organization.
func (s *Service) GetAccount(ctx context.Context, orgID, accountID string) (*Account, error) {
	return s.store.GetAccount(ctx, orgID, accountID)
}

// ListAccounts returns the organization's chart of accounts ordered by
// code.
func (s *Service) ListAccounts(ctx context.Context, orgID string) ([]*Account, error) {
	return s.store.ListAccounts(ctx, orgID)
}

// DeleteAccount removes an account. Seed accounts and accounts with
// posted activity are protected.
func (s *Service) DeleteAccount(ctx context.Context, orgID, accountID string) error {
	return s.store.DeleteAccount(ctx, orgID, accountID)
}

// BalanceDrift describes one account whose cached balance disagrees
// with its summed posted lines.
type BalanceDrift struct {
	AccountID string          `json:"account_id"`
	Code      string          `json:"code"`
	Cached    decimal.Decimal `json:"cached_balance"`
	Expected  decimal.Decimal `json:"expected_balance"`
}

// CheckBalanceConsistency recomputes every account's balance from its
// posted lines and compares it against the denormalized cache. Drift
// means a posting bug or out-of-band mutation; it is logged as an
// integrity alert and reported, never silently corrected.
func (s *Service) CheckBalanceConsistency(ctx context.Context, orgID string) ([]BalanceDrift, error) {
	accounts, err := s.store.ListAccounts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.PostedLineTotals(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var drifts []BalanceDrift
	for _, a := range accounts {
		expected := totals[a.ID]
		if !money.Equal(a.CurrentBalance, expected) {
			drifts = append(drifts, BalanceDrift{
				AccountID: a.ID,
				Code:      a.Code,
				Cached:    a.CurrentBalance,
				Expected:  expected,
			})
		}
	}
	if len(drifts) > 0 {
		s.logger.Error("account balance drift detected",
			"organization_id", orgID,
			"accounts", len(drifts),
		)
	}
	return drifts, nil
}
