package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EntryFilter narrows ListEntries results.
type EntryFilter struct {
	Status        EntryStatus
	ReferenceType string
	ReferenceID   string
	From          *time.Time
	To            *time.Time
	Limit         int
}

// Store is the persistence contract for the ledger core. Every
// multi-row mutation is atomic: either all of its effects are visible
// or none are. Implementations must keep entry-number assignment
// race-free under concurrent posting for the same organization and
// must serialize balance updates against the same account.
type Store interface {
	// CreateAccount persists a new account. When a.Code is empty the
	// store assigns the next code in the account type's numbering
	// range. Returns ErrDuplicateAccount on a code collision.
	CreateAccount(ctx context.Context, a *Account) error

	// GetAccount returns the account scoped to the organization. An
	// account that exists under a different organization yields a
	// CrossOrganizationAccountError, never the account itself.
	GetAccount(ctx context.Context, orgID, accountID string) (*Account, error)

	GetAccountByCode(ctx context.Context, orgID, code string) (*Account, error)
	ListAccounts(ctx context.Context, orgID string) ([]*Account, error)

	// DeleteAccount removes an account unless it is a system account
	// (ErrSystemAccount) or referenced by any journal line
	// (ErrAccountInUse).
	DeleteAccount(ctx context.Context, orgID, accountID string) error

	// ApplyEntry atomically assigns the next per-organization entry
	// number, inserts the entry with its lines, and, when the entry is
	// POSTED, adjusts each line account's cached balance by the
	// uniform debit - credit delta. Account references are verified
	// inside the same transaction.
	ApplyEntry(ctx context.Context, e *Entry) error

	GetEntry(ctx context.Context, orgID, entryID string) (*Entry, error)
	ListEntries(ctx context.Context, orgID string, f EntryFilter) ([]*Entry, error)

	// PostDraftEntry transitions a DRAFT entry to POSTED, re-checking
	// the balance invariant and applying balance deltas inside the
	// same transaction.
	PostDraftEntry(ctx context.Context, orgID, entryID string) (*Entry, error)

	// DeleteDraftEntry removes a DRAFT entry and its lines. POSTED
	// entries are immutable and yield ErrNotDraft.
	DeleteDraftEntry(ctx context.Context, orgID, entryID string) error

	// ArchiveDraftEntry transitions DRAFT to ARCHIVED.
	ArchiveDraftEntry(ctx context.Context, orgID, entryID string) error

	// EntriesTouchingAccount returns POSTED entries dated within
	// [from, to] that have at least one line against the account,
	// ordered most recent first with higher entry numbers breaking
	// ties.
	EntriesTouchingAccount(ctx context.Context, orgID, accountID string, from, to time.Time) ([]*Entry, error)

	// PostedLineTotals returns each account's summed debit - credit
	// over all POSTED lines, keyed by account ID. Used by the balance
	// consistency safety net.
	PostedLineTotals(ctx context.Context, orgID string) (map[string]decimal.Decimal, error)
}
