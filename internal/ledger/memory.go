package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is a complete in-memory Store implementation. It backs
// the ephemeral development mode of the service and the tests of the
// packages built on top of the ledger. All operations are serialized
// behind a single mutex, which trivially satisfies the atomicity and
// isolation requirements of the Store contract.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	entries  map[string]*Entry
	sequence map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		entries:  make(map[string]*Entry),
		sequence: make(map[string]int64),
	}
}

func cloneAccount(a *Account) *Account {
	c := *a
	return &c
}

func cloneEntry(e *Entry) *Entry {
	c := *e
	c.Lines = make([]Line, len(e.Lines))
	copy(c.Lines, e.Lines)
	return &c
}

// CreateAccount implements Store.
func (m *MemoryStore) CreateAccount(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Code == "" {
		a.Code = nextAccountCode(m.lastCodeLocked(a.OrganizationID, a.Type), a.Type)
	}
	for _, existing := range m.accounts {
		if existing.OrganizationID == a.OrganizationID && existing.Code == a.Code {
			return ErrDuplicateAccount
		}
	}
	m.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (m *MemoryStore) lastCodeLocked(orgID string, t AccountType) string {
	last := ""
	for _, a := range m.accounts {
		if a.OrganizationID != orgID || a.Type != t {
			continue
		}
		if last == "" || a.Code > last {
			last = a.Code
		}
	}
	return last
}

func (m *MemoryStore) getAccountLocked(orgID, accountID string) (*Account, error) {
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, &AccountNotFoundError{AccountID: accountID}
	}
	if a.OrganizationID != orgID {
		return nil, &CrossOrganizationAccountError{AccountID: accountID, OrganizationID: orgID}
	}
	return a, nil
}

// GetAccount implements Store.
func (m *MemoryStore) GetAccount(ctx context.Context, orgID, accountID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getAccountLocked(orgID, accountID)
	if err != nil {
		return nil, err
	}
	return cloneAccount(a), nil
}

// GetAccountByCode implements Store.
func (m *MemoryStore) GetAccountByCode(ctx context.Context, orgID, code string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.OrganizationID == orgID && a.Code == code {
			return cloneAccount(a), nil
		}
	}
	return nil, &AccountNotFoundError{AccountID: code}
}

// ListAccounts implements Store.
func (m *MemoryStore) ListAccounts(ctx context.Context, orgID string) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var accounts []*Account
	for _, a := range m.accounts {
		if a.OrganizationID == orgID {
			accounts = append(accounts, cloneAccount(a))
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

// DeleteAccount implements Store.
func (m *MemoryStore) DeleteAccount(ctx context.Context, orgID, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getAccountLocked(orgID, accountID)
	if err != nil {
		return err
	}
	if a.IsSystem {
		return ErrSystemAccount
	}
	for _, e := range m.entries {
		if e.OrganizationID == orgID && e.Status == StatusPosted && e.TouchesAccount(accountID) {
			return ErrAccountInUse
		}
	}
	delete(m.accounts, accountID)
	return nil
}

// ApplyEntry implements Store.
func (m *MemoryStore) ApplyEntry(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range e.Lines {
		if _, err := m.getAccountLocked(e.OrganizationID, l.AccountID); err != nil {
			return err
		}
	}

	m.sequence[e.OrganizationID]++
	e.EntryNumber = m.sequence[e.OrganizationID]
	m.entries[e.ID] = cloneEntry(e)

	if e.Status == StatusPosted {
		m.adjustBalancesLocked(e)
	}
	return nil
}

func (m *MemoryStore) adjustBalancesLocked(e *Entry) {
	for _, l := range e.Lines {
		a := m.accounts[l.AccountID]
		a.CurrentBalance = a.CurrentBalance.Add(l.Debit).Sub(l.Credit)
	}
}

func (m *MemoryStore) getEntryLocked(orgID, entryID string) (*Entry, error) {
	e, ok := m.entries[entryID]
	if !ok || e.OrganizationID != orgID {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

// GetEntry implements Store.
func (m *MemoryStore) GetEntry(ctx context.Context, orgID, entryID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.getEntryLocked(orgID, entryID)
	if err != nil {
		return nil, err
	}
	return cloneEntry(e), nil
}

// ListEntries implements Store.
func (m *MemoryStore) ListEntries(ctx context.Context, orgID string, f EntryFilter) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*Entry
	for _, e := range m.entries {
		if e.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.ReferenceType != "" && e.ReferenceType != f.ReferenceType {
			continue
		}
		if f.ReferenceID != "" && e.ReferenceID != f.ReferenceID {
			continue
		}
		if f.From != nil && e.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && e.Date.After(*f.To) {
			continue
		}
		entries = append(entries, cloneEntry(e))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EntryNumber > entries[j].EntryNumber
	})
	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

// PostDraftEntry implements Store.
func (m *MemoryStore) PostDraftEntry(ctx context.Context, orgID, entryID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.getEntryLocked(orgID, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusDraft {
		return nil, ErrNotDraft
	}
	if err := CheckBalanced(e.Lines); err != nil {
		return nil, err
	}
	for _, l := range e.Lines {
		if _, err := m.getAccountLocked(orgID, l.AccountID); err != nil {
			return nil, err
		}
	}

	e.Status = StatusPosted
	m.adjustBalancesLocked(e)
	return cloneEntry(e), nil
}

// DeleteDraftEntry implements Store.
func (m *MemoryStore) DeleteDraftEntry(ctx context.Context, orgID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.getEntryLocked(orgID, entryID)
	if err != nil {
		return err
	}
	if e.Status != StatusDraft {
		return ErrNotDraft
	}
	delete(m.entries, entryID)
	return nil
}

// ArchiveDraftEntry implements Store.
func (m *MemoryStore) ArchiveDraftEntry(ctx context.Context, orgID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.getEntryLocked(orgID, entryID)
	if err != nil {
		return err
	}
	if e.Status != StatusDraft {
		return ErrNotDraft
	}
	e.Status = StatusArchived
	return nil
}

// EntriesTouchingAccount implements Store.
func (m *MemoryStore) EntriesTouchingAccount(ctx context.Context, orgID, accountID string, from, to time.Time) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*Entry
	for _, e := range m.entries {
		if e.OrganizationID != orgID || e.Status != StatusPosted {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		if !e.TouchesAccount(accountID) {
			continue
		}
		entries = append(entries, cloneEntry(e))
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].EntryNumber > entries[j].EntryNumber
	})
	return entries, nil
}

// PostedLineTotals implements Store.
func (m *MemoryStore) PostedLineTotals(ctx context.Context, orgID string) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := make(map[string]decimal.Decimal)
	for _, e := range m.entries {
		if e.OrganizationID != orgID || e.Status != StatusPosted {
			continue
		}
		for _, l := range e.Lines {
			totals[l.AccountID] = totals[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	return totals, nil
}

// AccountsSnapshot returns copies of all of the organization's
// accounts. Used by read-side adapters layered on the memory store.
func (m *MemoryStore) AccountsSnapshot(orgID string) []*Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	var accounts []*Account
	for _, a := range m.accounts {
		if a.OrganizationID == orgID {
			accounts = append(accounts, cloneAccount(a))
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts
}

// PostedEntriesSnapshot returns copies of all POSTED entries for the
// organization.
func (m *MemoryStore) PostedEntriesSnapshot(orgID string) []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*Entry
	for _, e := range m.entries {
		if e.OrganizationID == orgID && e.Status == StatusPosted {
			entries = append(entries, cloneEntry(e))
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EntryNumber < entries[j].EntryNumber
	})
	return entries
}
