package documents

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// Filter narrows List results.
type Filter struct {
	Kind   Kind
	Status Status
	Limit  int
}

// Expect pins the document state a mutation was computed from. Apply
// re-checks it against the stored row inside the write transaction, so
// a mutation built on a stale read cannot land.
type Expect struct {
	Status     Status
	AmountPaid decimal.Decimal
}

// Store is the persistence contract for documents. Apply is the single
// write path: it writes the document with its lines and, when entry is
// non-nil, records the journal entry in the same transaction, so a
// failed posting never leaves a half-updated document. A nil expect
// inserts a new document; otherwise the stored row must still carry
// expect's status and amount paid or Apply fails with
// ErrConcurrentUpdate without touching the books.
type Store interface {
	Apply(ctx context.Context, d *Document, expect *Expect, entry *ledger.Entry) error
	Get(ctx context.Context, orgID, docID string) (*Document, error)
	List(ctx context.Context, orgID string, f Filter) ([]*Document, error)

	// Delete removes a document and its lines. Callers enforce the
	// DRAFT-only rule before calling.
	Delete(ctx context.Context, orgID, docID string) error
}

// Ledger is the slice of the ledger the document service reads from:
// account lookups for building postings and entry lookups for building
// reversals.
type Ledger interface {
	GetAccountByCode(ctx context.Context, orgID, code string) (*ledger.Account, error)
	GetEntry(ctx context.Context, orgID, entryID string) (*ledger.Entry, error)
}
