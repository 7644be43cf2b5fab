package reconcile

import (
	"context"
	"time"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// TxFilter narrows List results.
type TxFilter struct {
	AccountID string
	Status    TxStatus
	Limit     int
}

// Store is the persistence contract for bank transactions.
type Store interface {
	// CreateBatch inserts a set of transactions atomically: a failure
	// on any row leaves none of them persisted.
	CreateBatch(ctx context.Context, txs []*BankTransaction) error

	// Apply persists a transaction mutation and, when entry is non-nil,
	// records the journal entry in the same transaction. The stored row
	// must still be UNMATCHED: the guard runs inside the write
	// transaction, so two concurrent callers cannot both claim one
	// statement line. A row already MATCHED fails with
	// AlreadyMatchedError, an EXCLUDED one with ErrTxExcluded.
	Apply(ctx context.Context, tx *BankTransaction, entry *ledger.Entry) error

	Get(ctx context.Context, orgID, txID string) (*BankTransaction, error)
	List(ctx context.Context, orgID string, f TxFilter) ([]*BankTransaction, error)

	// Delete removes a transaction. Callers enforce the not-MATCHED
	// rule before calling.
	Delete(ctx context.Context, orgID, txID string) error
}

// Ledger is the slice of the ledger the matcher reads from.
type Ledger interface {
	GetAccount(ctx context.Context, orgID, accountID string) (*ledger.Account, error)
	GetEntry(ctx context.Context, orgID, entryID string) (*ledger.Entry, error)
	EntriesTouchingAccount(ctx context.Context, orgID, accountID string, from, to time.Time) ([]*ledger.Entry, error)
}
