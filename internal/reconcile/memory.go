package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// MemoryStore is the in-memory Store implementation backing the
// ephemeral development mode and tests.
type MemoryStore struct {
	mu     sync.Mutex
	txs    map[string]*BankTransaction
	ledger *ledger.MemoryStore
}

// NewMemoryStore creates an empty bank transaction store posting into
// the given ledger store.
func NewMemoryStore(ls *ledger.MemoryStore) *MemoryStore {
	return &MemoryStore{
		txs:    make(map[string]*BankTransaction),
		ledger: ls,
	}
}

func cloneTx(tx *BankTransaction) *BankTransaction {
	c := *tx
	return &c
}

// CreateBatch implements Store.
func (m *MemoryStore) CreateBatch(ctx context.Context, txs []*BankTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.txs[tx.ID] = cloneTx(tx)
	}
	return nil
}

// Apply implements Store. The UNMATCHED re-check happens under the
// store lock, mirroring the row lock the Postgres implementation takes.
func (m *MemoryStore) Apply(ctx context.Context, tx *BankTransaction, entry *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.txs[tx.ID]
	if !ok || current.OrganizationID != tx.OrganizationID {
		return ErrBankTxNotFound
	}
	switch current.Status {
	case StatusMatched:
		return &AlreadyMatchedError{TransactionID: current.ID, JournalEntryID: current.MatchedJournalEntryID}
	case StatusExcluded:
		return ErrTxExcluded
	}

	if entry != nil {
		if err := m.ledger.ApplyEntry(ctx, entry); err != nil {
			return err
		}
	}
	m.txs[tx.ID] = cloneTx(tx)
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, orgID, txID string) (*BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[txID]
	if !ok || tx.OrganizationID != orgID {
		return nil, ErrBankTxNotFound
	}
	return cloneTx(tx), nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, orgID string, f TxFilter) ([]*BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var txs []*BankTransaction
	for _, tx := range m.txs {
		if tx.OrganizationID != orgID {
			continue
		}
		if f.AccountID != "" && tx.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && tx.Status != f.Status {
			continue
		}
		txs = append(txs, cloneTx(tx))
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
	if f.Limit > 0 && len(txs) > f.Limit {
		txs = txs[:f.Limit]
	}
	return txs, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, orgID, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[txID]
	if !ok || tx.OrganizationID != orgID {
		return ErrBankTxNotFound
	}
	delete(m.txs, txID)
	return nil
}
