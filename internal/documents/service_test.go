package documents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

type fixture struct {
	docs        *Service
	books       *ledger.Service
	ledgerStore *ledger.MemoryStore
	store       *MemoryStore
	accounts    map[string]*ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ls := ledger.NewMemoryStore()
	store := NewMemoryStore(ls)
	books := ledger.NewService(ls, nil)
	created, err := books.SeedDefaultAccounts(context.Background(), "org-1")
	require.NoError(t, err)

	accounts := make(map[string]*ledger.Account)
	for _, a := range created {
		accounts[a.Code] = a
	}
	return &fixture{
		docs:        NewService(store, ls, nil),
		books:       books,
		ledgerStore: ls,
		store:       store,
		accounts:    accounts,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	a, err := f.books.GetAccount(context.Background(), "org-1", f.accounts[code].ID)
	require.NoError(t, err)
	return a.CurrentBalance
}

func (f *fixture) draftInvoice(t *testing.T) *Document {
	t.Helper()
	doc, err := f.docs.SaveDraft(context.Background(), SaveDraftRequest{
		OrganizationID: "org-1",
		Kind:           KindInvoice,
		Counterparty:   "Acme Corp",
		Number:         "INV-001",
		Date:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Lines: []DocLine{
			{AccountID: f.accounts["4000"].ID, Description: "Widgets", Quantity: dec("3"), UnitPrice: dec("100.00")},
			{AccountID: f.accounts["4000"].ID, Description: "Shipping", Quantity: dec("1"), UnitPrice: dec("50.00")},
		},
	})
	require.NoError(t, err)
	return doc
}

func TestInvoiceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.draftInvoice(t)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.True(t, doc.TotalAmount.Equal(dec("350.00")), "total = %s", doc.TotalAmount)

	// Drafts post nothing.
	assert.True(t, f.balance(t, "1100").IsZero())

	// Approve: AR up, revenue up (credit-normal, stored negative).
	doc, err := f.docs.Approve(ctx, "org-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, doc.Status)
	require.NotEmpty(t, doc.JournalEntryID)
	assert.True(t, f.balance(t, "1100").Equal(dec("350.00")))
	assert.True(t, f.balance(t, "4000").Equal(dec("-350.00")))

	entry, err := f.books.GetEntry(ctx, "org-1", doc.JournalEntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RefInvoice, entry.ReferenceType)
	assert.Equal(t, doc.ID, entry.ReferenceID)

	// Partial payment: cash up, AR down, status PARTIAL.
	doc, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("200.00")})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, doc.Status)
	assert.True(t, doc.Balance().Equal(dec("150.00")))
	assert.True(t, f.balance(t, "1000").Equal(dec("200.00")))
	assert.True(t, f.balance(t, "1100").Equal(dec("150.00")))

	// Settling payment: PAID, AR back to zero.
	doc, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("150.00")})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, doc.Status)
	assert.True(t, f.balance(t, "1100").IsZero())
	assert.True(t, f.balance(t, "1000").Equal(dec("350.00")))

	// PAID is terminal.
	_, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("1.00")})
	assert.ErrorIs(t, err, ErrNotPayable)
	_, err = f.docs.Void(ctx, "org-1", doc.ID)
	var invalid *InvalidStateTransitionError
	assert.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, f.docs.Delete(ctx, "org-1", doc.ID), ErrNotDraftDocument)
}

func TestBillLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.docs.SaveDraft(ctx, SaveDraftRequest{
		OrganizationID: "org-1",
		Kind:           KindBill,
		Counterparty:   "Office Supply Co",
		Number:         "BILL-7",
		Date:           time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Lines: []DocLine{
			{AccountID: f.accounts["5000"].ID, Description: "Supplies", Quantity: dec("10"), UnitPrice: dec("12.50")},
		},
	})
	require.NoError(t, err)
	assert.True(t, doc.TotalAmount.Equal(dec("125.00")))

	// Approve: expense up, AP up (credit-normal, stored negative).
	doc, err = f.docs.Approve(ctx, "org-1", doc.ID)
	require.NoError(t, err)
	assert.True(t, f.balance(t, "5000").Equal(dec("125.00")))
	assert.True(t, f.balance(t, "2000").Equal(dec("-125.00")))

	// Pay in full: AP cleared, cash down.
	doc, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("125.00")})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, doc.Status)
	assert.True(t, f.balance(t, "2000").IsZero())
	assert.True(t, f.balance(t, "1000").Equal(dec("-125.00")))
}

func TestRecordPayment_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.draftInvoice(t)

	// Drafts are not payable.
	_, err := f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("10")})
	assert.ErrorIs(t, err, ErrNotPayable)

	doc, err = f.docs.Approve(ctx, "org-1", doc.ID)
	require.NoError(t, err)

	_, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("0")})
	assert.ErrorIs(t, err, ErrNonPositivePayment)
	_, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("-5")})
	assert.ErrorIs(t, err, ErrNonPositivePayment)

	// Overpayment is rejected and leaves the books untouched.
	_, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("350.01")})
	assert.ErrorIs(t, err, ErrOverpayment)
	assert.True(t, f.balance(t, "1000").IsZero())

	// A payment within tolerance of the balance settles the document.
	doc, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("350.005")})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, doc.Status)
}

func TestSaveDraft_EditResetsToDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.draftInvoice(t)
	doc, err := f.docs.Approve(ctx, "org-1", doc.ID)
	require.NoError(t, err)
	require.True(t, f.balance(t, "1100").Equal(dec("350.00")))

	// Editing the SENT invoice reverses its accrual and recomputes the
	// total from the new lines.
	edited, err := f.docs.SaveDraft(ctx, SaveDraftRequest{
		ID:             doc.ID,
		OrganizationID: "org-1",
		Kind:           KindInvoice,
		Counterparty:   "Acme Corp",
		Number:         "INV-001",
		Date:           doc.Date,
		Lines: []DocLine{
			{AccountID: f.accounts["4000"].ID, Description: "Widgets", Quantity: dec("2"), UnitPrice: dec("100.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, edited.Status)
	assert.Empty(t, edited.JournalEntryID)
	assert.True(t, edited.TotalAmount.Equal(dec("200.00")))
	assert.True(t, f.balance(t, "1100").IsZero(), "reversal must back out the accrual")
	assert.True(t, f.balance(t, "4000").IsZero())

	// Re-approving posts a fresh entry for the new total.
	edited, err = f.docs.Approve(ctx, "org-1", edited.ID)
	require.NoError(t, err)
	assert.True(t, f.balance(t, "1100").Equal(dec("200.00")))

	// Once a payment lands, editing is no longer possible.
	_, err = f.docs.RecordPayment(ctx, "org-1", edited.ID, PaymentRequest{Amount: dec("50")})
	require.NoError(t, err)
	_, err = f.docs.SaveDraft(ctx, SaveDraftRequest{
		ID:             edited.ID,
		OrganizationID: "org-1",
		Kind:           KindInvoice,
		Date:           edited.Date,
		Lines: []DocLine{
			{AccountID: f.accounts["4000"].ID, Quantity: dec("1"), UnitPrice: dec("1")},
		},
	})
	var invalid *InvalidStateTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusPartial, invalid.From)
}

func TestVoid_ReversesApprovalEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.draftInvoice(t)
	doc, err := f.docs.Approve(ctx, "org-1", doc.ID)
	require.NoError(t, err)

	doc, err = f.docs.Void(ctx, "org-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusVoid, doc.Status)
	assert.True(t, f.balance(t, "1100").IsZero())
	assert.True(t, f.balance(t, "4000").IsZero())

	// Voiding an unapproved draft posts nothing.
	draft := f.draftInvoice(t)
	entriesBefore, err := f.books.ListEntries(ctx, "org-1", ledger.EntryFilter{})
	require.NoError(t, err)
	_, err = f.docs.Void(ctx, "org-1", draft.ID)
	require.NoError(t, err)
	entriesAfter, err := f.books.ListEntries(ctx, "org-1", ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, len(entriesBefore), len(entriesAfter))
}

func TestDelete_DraftOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.draftInvoice(t)
	require.NoError(t, f.docs.Delete(ctx, "org-1", doc.ID))
	_, err := f.docs.Get(ctx, "org-1", doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	approved := f.draftInvoice(t)
	_, err = f.docs.Approve(ctx, "org-1", approved.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.docs.Delete(ctx, "org-1", approved.ID), ErrNotDraftDocument)
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := f.draftInvoice(t)
	_, err := f.docs.Approve(ctx, "org-1", due.ID)
	require.NoError(t, err)

	// A second invoice that is not due yet.
	notDue, err := f.docs.SaveDraft(ctx, SaveDraftRequest{
		OrganizationID: "org-1",
		Kind:           KindInvoice,
		Date:           time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Lines: []DocLine{
			{AccountID: f.accounts["4000"].ID, Quantity: dec("1"), UnitPrice: dec("10")},
		},
	})
	require.NoError(t, err)
	_, err = f.docs.Approve(ctx, "org-1", notDue.ID)
	require.NoError(t, err)

	// An overdue bill, which an invoice sweep must not touch.
	bill, err := f.docs.SaveDraft(ctx, SaveDraftRequest{
		OrganizationID: "org-1",
		Kind:           KindBill,
		Date:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines: []DocLine{
			{AccountID: f.accounts["5000"].ID, Quantity: dec("1"), UnitPrice: dec("20")},
		},
	})
	require.NoError(t, err)
	_, err = f.docs.Approve(ctx, "org-1", bill.ID)
	require.NoError(t, err)

	updated, err := f.docs.MarkOverdue(ctx, "org-1", KindInvoice, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, due.ID, updated[0].ID)
	assert.Equal(t, StatusOverdue, updated[0].Status)

	got, err := f.docs.Get(ctx, "org-1", bill.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, got.Status, "bills are swept separately from invoices")

	// Overdue documents remain payable.
	paid, err := f.docs.RecordPayment(ctx, "org-1", due.ID, PaymentRequest{Amount: dec("350.00")})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
}

func TestRecordPayment_ConcurrentFullPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.draftInvoice(t)
	doc, err := f.docs.Approve(ctx, "org-1", doc.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("350.00")})
		}(i)
	}
	wg.Wait()

	// Exactly one payment lands; the loser fails on the in-transaction
	// state re-check or on its own re-read, never silently.
	if errs[0] == nil {
		require.Error(t, errs[1])
	} else {
		require.NoError(t, errs[1])
	}

	got, err := f.docs.Get(ctx, "org-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
	assert.True(t, got.AmountPaid.Equal(dec("350.00")))
	assert.True(t, f.balance(t, "1100").IsZero(), "the receivable settles exactly once")
	assert.True(t, f.balance(t, "1000").Equal(dec("350.00")))
}

func TestApply_StaleSnapshotRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.draftInvoice(t)
	doc, err := f.docs.Approve(ctx, "org-1", doc.ID)
	require.NoError(t, err)

	// Two writers read the same SENT document; the first one pays.
	stale, err := f.store.Get(ctx, "org-1", doc.ID)
	require.NoError(t, err)
	_, err = f.docs.RecordPayment(ctx, "org-1", doc.ID, PaymentRequest{Amount: dec("350.00")})
	require.NoError(t, err)

	// The second write still carries the pre-payment snapshot and must
	// be refused instead of overwriting the paid document.
	stale.AmountPaid = dec("350.00")
	stale.Status = StatusPaid
	err = f.store.Apply(ctx, stale, &Expect{Status: StatusSent, AmountPaid: decimal.Zero}, nil)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestSaveDraft_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.docs.SaveDraft(ctx, SaveDraftRequest{
		OrganizationID: "org-1", Kind: "RECEIPT", Date: time.Now(),
		Lines: []DocLine{{AccountID: "a", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = f.docs.SaveDraft(ctx, SaveDraftRequest{
		OrganizationID: "org-1", Kind: KindInvoice, Date: time.Now(),
	})
	assert.ErrorIs(t, err, ErrNoLines)

	_, err = f.docs.SaveDraft(ctx, SaveDraftRequest{
		OrganizationID: "org-1", Kind: KindInvoice, Date: time.Now(),
		Lines: []DocLine{{AccountID: "a", Quantity: dec("0"), UnitPrice: dec("1")}},
	})
	assert.ErrorIs(t, err, ErrInvalidLine)
}

func TestAllowedTransitions(t *testing.T) {
	allowed := AllowedTransitions()

	assert.ElementsMatch(t, []Status{StatusSent, StatusVoid}, allowed[StatusDraft])
	assert.ElementsMatch(t, []Status{StatusDraft, StatusPartial, StatusPaid, StatusOverdue, StatusVoid}, allowed[StatusSent])
	assert.ElementsMatch(t, []Status{StatusPaid, StatusVoid}, allowed[StatusPartial])
	assert.ElementsMatch(t, []Status{StatusDraft, StatusPartial, StatusPaid, StatusVoid}, allowed[StatusOverdue])
	assert.Empty(t, allowed[StatusPaid])
	assert.Empty(t, allowed[StatusVoid])

	assert.True(t, CanTransition(StatusDraft, StatusSent))
	assert.False(t, CanTransition(StatusDraft, StatusPartial))
	assert.False(t, CanTransition(StatusPaid, StatusDraft))
}
