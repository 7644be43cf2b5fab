package documents

import (
	"context"
	"sort"
	"sync"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// MemoryStore is the in-memory Store implementation backing the
// ephemeral development mode and the tests of packages built on the
// document lifecycle. Entries are applied through the shared in-memory
// ledger before the document mutation becomes visible, which preserves
// the all-or-nothing contract of Apply.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]*Document
	ledger *ledger.MemoryStore
}

// NewMemoryStore creates an empty document store posting into the given
// ledger store.
func NewMemoryStore(ls *ledger.MemoryStore) *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]*Document),
		ledger: ls,
	}
}

func cloneDocument(d *Document) *Document {
	c := *d
	c.Lines = make([]DocLine, len(d.Lines))
	copy(c.Lines, d.Lines)
	return &c
}

// Apply implements Store. The expected-state re-check happens under the
// store lock, mirroring the row lock the Postgres implementation takes.
func (m *MemoryStore) Apply(ctx context.Context, d *Document, expect *Expect, entry *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.docs[d.ID]
	if expect == nil {
		if ok {
			return ErrConcurrentUpdate
		}
	} else {
		if !ok || current.OrganizationID != d.OrganizationID {
			return ErrDocumentNotFound
		}
		if current.Status != expect.Status || !current.AmountPaid.Equal(expect.AmountPaid) {
			return ErrConcurrentUpdate
		}
	}

	if entry != nil {
		if err := m.ledger.ApplyEntry(ctx, entry); err != nil {
			return err
		}
	}
	m.docs[d.ID] = cloneDocument(d)
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, orgID, docID string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[docID]
	if !ok || d.OrganizationID != orgID {
		return nil, ErrDocumentNotFound
	}
	return cloneDocument(d), nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, orgID string, f Filter) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []*Document
	for _, d := range m.docs {
		if d.OrganizationID != orgID {
			continue
		}
		if f.Kind != "" && d.Kind != f.Kind {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		docs = append(docs, cloneDocument(d))
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].Date.Equal(docs[j].Date) {
			return docs[i].Date.After(docs[j].Date)
		}
		return docs[i].ID < docs[j].ID
	})
	if f.Limit > 0 && len(docs) > f.Limit {
		docs = docs[:f.Limit]
	}
	return docs, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, orgID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[docID]
	if !ok || d.OrganizationID != orgID {
		return ErrDocumentNotFound
	}
	delete(m.docs, docID)
	return nil
}
