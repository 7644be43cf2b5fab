package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, nil), store
}

func seedOrg(t *testing.T, svc *Service, orgID string) map[string]*Account {
	t.Helper()
	created, err := svc.SeedDefaultAccounts(context.Background(), orgID)
	require.NoError(t, err)
	accounts := make(map[string]*Account)
	for _, a := range created {
		accounts[a.Code] = a
	}
	return accounts
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostEntry_BalancedEntryUpdatesBalances(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")

	cash := accounts["1000"]
	revenue := accounts["4000"]

	entry, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Description:    "Cash sale",
		Lines: []Line{
			{AccountID: cash.ID, Debit: dec("500.00")},
			{AccountID: revenue.ID, Credit: dec("500.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, entry.Status)
	assert.Equal(t, int64(1), entry.EntryNumber)

	got, err := svc.GetAccount(context.Background(), "org-1", cash.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(dec("500.00")), "cash balance = %s", got.CurrentBalance)

	got, err = svc.GetAccount(context.Background(), "org-1", revenue.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(dec("-500.00")), "revenue balance = %s", got.CurrentBalance)
	// Revenue is credit-normal, so it displays positive.
	assert.True(t, got.DisplayBalance().Equal(dec("500.00")))
}

func TestPostEntry_UnbalancedRejectedWithoutSideEffects(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")

	_, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Lines: []Line{
			{AccountID: accounts["1000"].ID, Debit: dec("100.00")},
			{AccountID: accounts["4000"].ID, Credit: dec("90.00")},
		},
	})
	var unbalanced *UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	assert.True(t, unbalanced.Debits.Equal(dec("100.00")))
	assert.True(t, unbalanced.Credits.Equal(dec("90.00")))

	entries, err := svc.ListEntries(context.Background(), "org-1", EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	got, err := svc.GetAccount(context.Background(), "org-1", accounts["1000"].ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.IsZero())
}

func TestPostEntry_ToleranceBoundary(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")

	// 0.005 apart: inside tolerance, accepted.
	_, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Lines: []Line{
			{AccountID: accounts["1000"].ID, Debit: dec("10.005")},
			{AccountID: accounts["4000"].ID, Credit: dec("10.00")},
		},
	})
	assert.NoError(t, err)

	// Exactly 0.01 apart: rejected.
	_, err = svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Lines: []Line{
			{AccountID: accounts["1000"].ID, Debit: dec("10.01")},
			{AccountID: accounts["4000"].ID, Credit: dec("10.00")},
		},
	})
	var unbalanced *UnbalancedEntryError
	assert.ErrorAs(t, err, &unbalanced)
}

func TestPostEntry_LineValidation(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")
	cash := accounts["1000"].ID
	revenue := accounts["4000"].ID

	tests := []struct {
		name  string
		lines []Line
		want  error
	}{
		{
			name:  "single line",
			lines: []Line{{AccountID: cash, Debit: dec("10")}},
			want:  ErrInsufficientLines,
		},
		{
			name: "negative amount",
			lines: []Line{
				{AccountID: cash, Debit: dec("-10")},
				{AccountID: revenue, Credit: dec("-10")},
			},
			want: ErrNegativeAmount,
		},
		{
			name: "zero on both sides",
			lines: []Line{
				{AccountID: cash, Debit: dec("10")},
				{AccountID: revenue},
			},
			want: ErrZeroLine,
		},
		{
			name: "debit and credit on one line",
			lines: []Line{
				{AccountID: cash, Debit: dec("10"), Credit: dec("10")},
				{AccountID: revenue, Credit: dec("10")},
			},
			want: ErrTwoSidedLine,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.PostEntry(context.Background(), PostEntryRequest{
				OrganizationID: "org-1",
				Date:           time.Now(),
				Lines:          test.lines,
			})
			assert.ErrorIs(t, err, test.want)
		})
	}
}

func TestPostEntry_UnknownAndForeignAccounts(t *testing.T) {
	svc, _ := newTestService(t)
	orgA := seedOrg(t, svc, "org-a")
	orgB := seedOrg(t, svc, "org-b")

	_, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-a",
		Date:           time.Now(),
		Lines: []Line{
			{AccountID: "missing", Debit: dec("10")},
			{AccountID: orgA["4000"].ID, Credit: dec("10")},
		},
	})
	var notFound *AccountNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.AccountID)

	// A line against another tenant's account is rejected, and the
	// other tenant's balance is untouched.
	_, err = svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-a",
		Date:           time.Now(),
		Lines: []Line{
			{AccountID: orgB["1000"].ID, Debit: dec("10")},
			{AccountID: orgA["4000"].ID, Credit: dec("10")},
		},
	})
	var cross *CrossOrganizationAccountError
	require.ErrorAs(t, err, &cross)

	got, err := svc.GetAccount(context.Background(), "org-b", orgB["1000"].ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.IsZero())
}

func TestPostEntry_SequencePerOrganization(t *testing.T) {
	svc, _ := newTestService(t)
	orgA := seedOrg(t, svc, "org-a")
	orgB := seedOrg(t, svc, "org-b")

	post := func(orgID string, accounts map[string]*Account) *Entry {
		e, err := svc.PostEntry(context.Background(), PostEntryRequest{
			OrganizationID: orgID,
			Date:           time.Now(),
			Lines: []Line{
				{AccountID: accounts["1000"].ID, Debit: dec("1")},
				{AccountID: accounts["4000"].ID, Credit: dec("1")},
			},
		})
		require.NoError(t, err)
		return e
	}

	assert.Equal(t, int64(1), post("org-a", orgA).EntryNumber)
	assert.Equal(t, int64(2), post("org-a", orgA).EntryNumber)
	assert.Equal(t, int64(1), post("org-b", orgB).EntryNumber)
}

func TestDraftLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")
	cash := accounts["1000"]

	// An unbalanced DRAFT is accepted and leaves balances untouched.
	draft, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Status:         StatusDraft,
		Lines: []Line{
			{AccountID: cash.ID, Debit: dec("100")},
			{AccountID: accounts["4000"].ID, Credit: dec("60")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, draft.Status)

	got, err := svc.GetAccount(context.Background(), "org-1", cash.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.IsZero())

	// Posting the unbalanced draft fails.
	_, err = svc.PostDraft(context.Background(), "org-1", draft.ID)
	var unbalanced *UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)

	// A balanced draft posts and applies deltas.
	balanced, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Status:         StatusDraft,
		Lines: []Line{
			{AccountID: cash.ID, Debit: dec("100")},
			{AccountID: accounts["4000"].ID, Credit: dec("100")},
		},
	})
	require.NoError(t, err)

	posted, err := svc.PostDraft(context.Background(), "org-1", balanced.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, posted.Status)

	got, err = svc.GetAccount(context.Background(), "org-1", cash.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(dec("100")))

	// Posted entries cannot be posted again, deleted, or archived.
	_, err = svc.PostDraft(context.Background(), "org-1", balanced.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
	assert.ErrorIs(t, svc.DeleteDraft(context.Background(), "org-1", balanced.ID), ErrNotDraft)
	assert.ErrorIs(t, svc.ArchiveDraft(context.Background(), "org-1", balanced.ID), ErrNotDraft)

	// Drafts can be archived, after which they are no longer drafts.
	require.NoError(t, svc.ArchiveDraft(context.Background(), "org-1", draft.ID))
	archived, err := svc.GetEntry(context.Background(), "org-1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)
	_, err = svc.PostDraft(context.Background(), "org-1", draft.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestDeleteDraft(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")

	draft, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Status:         StatusDraft,
		Lines: []Line{
			{AccountID: accounts["1000"].ID, Debit: dec("10")},
			{AccountID: accounts["4000"].ID, Credit: dec("10")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDraft(context.Background(), "org-1", draft.ID))
	_, err = svc.GetEntry(context.Background(), "org-1", draft.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestListEntries_FilterAndOrder(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")

	for i := 0; i < 3; i++ {
		_, err := svc.PostEntry(context.Background(), PostEntryRequest{
			OrganizationID: "org-1",
			Date:           time.Date(2026, 1, 10+i, 0, 0, 0, 0, time.UTC),
			ReferenceType:  RefManual,
			Lines: []Line{
				{AccountID: accounts["1000"].ID, Debit: dec("10")},
				{AccountID: accounts["4000"].ID, Credit: dec("10")},
			},
		})
		require.NoError(t, err)
	}
	_, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		Status:         StatusDraft,
		Lines: []Line{
			{AccountID: accounts["1000"].ID, Debit: dec("10")},
			{AccountID: accounts["4000"].ID, Credit: dec("10")},
		},
	})
	require.NoError(t, err)

	all, err := svc.ListEntries(context.Background(), "org-1", EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Most recent entry number first.
	assert.Equal(t, int64(4), all[0].EntryNumber)

	posted, err := svc.ListEntries(context.Background(), "org-1", EntryFilter{Status: StatusPosted})
	require.NoError(t, err)
	assert.Len(t, posted, 3)

	from := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	window, err := svc.ListEntries(context.Background(), "org-1", EntryFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, window, 2)

	limited, err := svc.ListEntries(context.Background(), "org-1", EntryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestCreateAccount_CodeGeneration(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-1", Name: "Petty Cash", Type: TypeAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", first.Code)

	second, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-1", Name: "Inventory", Type: TypeAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, "1001", second.Code)

	liability, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-1", Name: "Credit Card", Type: TypeLiability,
	})
	require.NoError(t, err)
	assert.Equal(t, "2000", liability.Code)

	// Another organization starts its own numbering.
	other, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-2", Name: "Cash", Type: TypeAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", other.Code)
}

func TestCreateAccount_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-1", Type: TypeAsset,
	})
	assert.Error(t, err)

	_, err = svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-1", Name: "Bad", Type: "SAVINGS",
	})
	assert.Error(t, err)
}

func TestSeedDefaultAccounts_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.SeedDefaultAccounts(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Len(t, first, len(defaultChart))
	for _, a := range first {
		assert.True(t, a.IsSystem)
	}

	second, err := svc.SeedDefaultAccounts(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, second)

	accounts, err := svc.ListAccounts(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Len(t, accounts, len(defaultChart))
}

func TestDeleteAccount_Guards(t *testing.T) {
	svc, _ := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")

	// System accounts are protected.
	err := svc.DeleteAccount(context.Background(), "org-1", accounts["1000"].ID)
	assert.ErrorIs(t, err, ErrSystemAccount)

	// Accounts with posted lines are protected.
	custom, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-1", Name: "Consulting Revenue", Type: TypeRevenue,
	})
	require.NoError(t, err)
	_, err = svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Lines: []Line{
			{AccountID: accounts["1000"].ID, Debit: dec("10")},
			{AccountID: custom.ID, Credit: dec("10")},
		},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteAccount(context.Background(), "org-1", custom.ID), ErrAccountInUse)

	// Unused user accounts delete cleanly.
	unused, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		OrganizationID: "org-1", Name: "Unused", Type: TypeExpense,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(context.Background(), "org-1", unused.ID))
	_, err = svc.GetAccount(context.Background(), "org-1", unused.ID)
	var notFound *AccountNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCheckBalanceConsistency(t *testing.T) {
	svc, store := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")

	_, err := svc.PostEntry(context.Background(), PostEntryRequest{
		OrganizationID: "org-1",
		Date:           time.Now(),
		Lines: []Line{
			{AccountID: accounts["1000"].ID, Debit: dec("250")},
			{AccountID: accounts["4000"].ID, Credit: dec("250")},
		},
	})
	require.NoError(t, err)

	drifts, err := svc.CheckBalanceConsistency(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// Corrupt a cached balance out of band and confirm the check
	// reports it instead of correcting it.
	store.mu.Lock()
	store.accounts[accounts["1000"].ID].CurrentBalance = dec("999")
	store.mu.Unlock()

	drifts, err = svc.CheckBalanceConsistency(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "1000", drifts[0].Code)
	assert.True(t, drifts[0].Cached.Equal(dec("999")))
	assert.True(t, drifts[0].Expected.Equal(dec("250")))

	got, err := svc.GetAccount(context.Background(), "org-1", accounts["1000"].ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(dec("999")), "check must not mutate balances")
}

func TestEntriesTouchingAccount_WindowAndOrder(t *testing.T) {
	svc, store := newTestService(t)
	accounts := seedOrg(t, svc, "org-1")
	cash := accounts["1000"].ID

	dates := []time.Time{
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		_, err := svc.PostEntry(context.Background(), PostEntryRequest{
			OrganizationID: "org-1",
			Date:           d,
			Lines: []Line{
				{AccountID: cash, Debit: dec("10")},
				{AccountID: accounts["4000"].ID, Credit: dec("10")},
			},
		})
		require.NoError(t, err)
	}

	from := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	entries, err := store.EntriesTouchingAccount(context.Background(), "org-1", cash, from, to)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Date.After(entries[1].Date), "most recent first")
}

func TestEntryNetOnAccount(t *testing.T) {
	e := &Entry{Lines: []Line{
		{AccountID: "a", Debit: dec("100")},
		{AccountID: "b", Credit: dec("60")},
		{AccountID: "a", Credit: dec("40")},
	}}
	assert.True(t, e.NetOnAccount("a").Equal(dec("60")))
	assert.True(t, e.NetOnAccount("b").Equal(dec("-60")))
	assert.True(t, e.NetOnAccount("c").IsZero())
	assert.True(t, e.TouchesAccount("b"))
	assert.False(t, e.TouchesAccount("c"))
}

func TestNextAccountCode(t *testing.T) {
	assert.Equal(t, "1000", nextAccountCode("", TypeAsset))
	assert.Equal(t, "1001", nextAccountCode("1000", TypeAsset))
	assert.Equal(t, "5101", nextAccountCode("5100", TypeExpense))
	assert.Equal(t, "4000", nextAccountCode("", TypeRevenue))
}
