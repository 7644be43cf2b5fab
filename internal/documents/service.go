package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
	"github.com/openbooks-dev/openbooks/internal/money"
)

// System account codes the lifecycle posts against.
const (
	codeAccountsReceivable = "1100"
	codeAccountsPayable    = "2000"
	codeCash               = "1000"
)

// Service drives the document lifecycle.
type Service struct {
	store  Store
	ledger Ledger
	logger *slog.Logger
}

// NewService creates a new document service.
func NewService(store Store, ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ledger: ledger, logger: logger}
}

// SaveDraftRequest carries the inputs for creating or editing a
// document. When ID is set an existing document is replaced.
type SaveDraftRequest struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Kind           Kind      `json:"kind"`
	Counterparty   string    `json:"counterparty"`
	Number         string    `json:"number"`
	Date           time.Time `json:"date"`
	DueDate        time.Time `json:"due_date"`
	Notes          string    `json:"notes"`
	Lines          []DocLine `json:"lines"`
}

// SaveDraft creates or replaces a document in DRAFT status. The total
// is always recomputed from the lines; any client-supplied total is
// ignored. Editing a SENT or OVERDUE document pulls it back to DRAFT
// and reverses its approval entry; documents with payments recorded
// can no longer be edited.
func (s *Service) SaveDraft(ctx context.Context, req SaveDraftRequest) (*Document, error) {
	if !req.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	if len(req.Lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range req.Lines {
		if !l.Quantity.IsPositive() || l.UnitPrice.IsNegative() {
			return nil, ErrInvalidLine
		}
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("document date is required")
	}

	total := decimal.Zero
	for _, l := range req.Lines {
		total = total.Add(l.Amount())
	}

	now := time.Now().UTC()
	doc := &Document{
		ID:             req.ID,
		OrganizationID: req.OrganizationID,
		Kind:           req.Kind,
		Counterparty:   req.Counterparty,
		Number:         req.Number,
		Date:           req.Date.Truncate(24 * time.Hour),
		DueDate:        req.DueDate.Truncate(24 * time.Hour),
		Status:         StatusDraft,
		TotalAmount:    total,
		AmountPaid:     decimal.Zero,
		Notes:          req.Notes,
		Lines:          req.Lines,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := range doc.Lines {
		if doc.Lines[i].ID == "" {
			doc.Lines[i].ID = uuid.NewString()
		}
	}

	var reversal *ledger.Entry
	var expect *Expect
	if req.ID == "" {
		doc.ID = uuid.NewString()
	} else {
		existing, err := s.store.Get(ctx, req.OrganizationID, req.ID)
		if err != nil {
			return nil, err
		}
		expect = &Expect{Status: existing.Status, AmountPaid: existing.AmountPaid}
		if existing.Status != StatusDraft {
			if err := checkTransition(existing.Status, StatusDraft); err != nil {
				return nil, err
			}
			if existing.JournalEntryID != "" {
				reversal, err = s.buildReversal(ctx, existing, "edited back to draft")
				if err != nil {
					return nil, err
				}
			}
		}
		doc.Kind = existing.Kind
		doc.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Apply(ctx, doc, expect, reversal); err != nil {
		return nil, err
	}
	return doc, nil
}

// Approve moves a DRAFT document to SENT and posts its accrual entry:
// an invoice debits accounts receivable and credits each line's revenue
// account; a bill credits accounts payable and debits each line's
// expense account.
func (s *Service) Approve(ctx context.Context, orgID, docID string) (*Document, error) {
	doc, err := s.store.Get(ctx, orgID, docID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(doc.Status, StatusSent); err != nil {
		return nil, err
	}

	var lines []ledger.Line
	switch doc.Kind {
	case KindInvoice:
		ar, err := s.ledger.GetAccountByCode(ctx, orgID, codeAccountsReceivable)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ledger.Line{
			ID:          uuid.NewString(),
			AccountID:   ar.ID,
			Debit:       doc.TotalAmount,
			Description: doc.Counterparty,
		})
		for _, l := range doc.Lines {
			lines = append(lines, ledger.Line{
				ID:          uuid.NewString(),
				AccountID:   l.AccountID,
				Credit:      l.Amount(),
				Description: l.Description,
			})
		}
	case KindBill:
		ap, err := s.ledger.GetAccountByCode(ctx, orgID, codeAccountsPayable)
		if err != nil {
			return nil, err
		}
		for _, l := range doc.Lines {
			lines = append(lines, ledger.Line{
				ID:          uuid.NewString(),
				AccountID:   l.AccountID,
				Debit:       l.Amount(),
				Description: l.Description,
			})
		}
		lines = append(lines, ledger.Line{
			ID:          uuid.NewString(),
			AccountID:   ap.ID,
			Credit:      doc.TotalAmount,
			Description: doc.Counterparty,
		})
	default:
		return nil, ErrInvalidKind
	}

	entry := s.newEntry(doc, lines, approvalDescription(doc))
	if err := ledger.CheckBalanced(entry.Lines); err != nil {
		return nil, err
	}

	expect := &Expect{Status: doc.Status, AmountPaid: doc.AmountPaid}
	doc.Status = StatusSent
	doc.JournalEntryID = entry.ID
	doc.UpdatedAt = time.Now().UTC()

	if err := s.store.Apply(ctx, doc, expect, entry); err != nil {
		return nil, err
	}
	s.logger.Info("document approved",
		"organization_id", orgID,
		"document_id", doc.ID,
		"kind", doc.Kind,
		"journal_entry_id", entry.ID,
	)
	return doc, nil
}

// PaymentRequest carries the inputs for recording a payment against an
// approved document. AccountID optionally names the cash or bank
// account the money moved through; it defaults to the Cash account.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	AccountID string          `json:"account_id"`
}

// RecordPayment applies a payment to a SENT, PARTIAL or OVERDUE
// document. Paying more than the remaining balance is rejected. The
// document lands on PAID when the remaining balance reaches zero within
// tolerance, otherwise PARTIAL.
func (s *Service) RecordPayment(ctx context.Context, orgID, docID string, req PaymentRequest) (*Document, error) {
	doc, err := s.store.Get(ctx, orgID, docID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case StatusSent, StatusPartial, StatusOverdue:
	default:
		return nil, ErrNotPayable
	}
	if !req.Amount.IsPositive() {
		return nil, ErrNonPositivePayment
	}
	remaining := doc.Balance()
	if req.Amount.GreaterThan(remaining) && !money.Equal(req.Amount, remaining) {
		return nil, ErrOverpayment
	}

	cashCode := codeCash
	var cashAccountID string
	if req.AccountID != "" {
		cashAccountID = req.AccountID
	} else {
		cash, err := s.ledger.GetAccountByCode(ctx, orgID, cashCode)
		if err != nil {
			return nil, err
		}
		cashAccountID = cash.ID
	}

	var lines []ledger.Line
	switch doc.Kind {
	case KindInvoice:
		ar, err := s.ledger.GetAccountByCode(ctx, orgID, codeAccountsReceivable)
		if err != nil {
			return nil, err
		}
		lines = []ledger.Line{
			{ID: uuid.NewString(), AccountID: cashAccountID, Debit: req.Amount},
			{ID: uuid.NewString(), AccountID: ar.ID, Credit: req.Amount},
		}
	case KindBill:
		ap, err := s.ledger.GetAccountByCode(ctx, orgID, codeAccountsPayable)
		if err != nil {
			return nil, err
		}
		lines = []ledger.Line{
			{ID: uuid.NewString(), AccountID: ap.ID, Debit: req.Amount},
			{ID: uuid.NewString(), AccountID: cashAccountID, Credit: req.Amount},
		}
	default:
		return nil, ErrInvalidKind
	}

	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	entry := &ledger.Entry{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Date:           date.Truncate(24 * time.Hour),
		Description:    paymentDescription(doc),
		Status:         ledger.StatusPosted,
		ReferenceType:  referenceType(doc.Kind),
		ReferenceID:    doc.ID,
		Lines:          lines,
		CreatedAt:      time.Now().UTC(),
	}

	newPaid := doc.AmountPaid.Add(req.Amount)
	newStatus := StatusPartial
	if money.IsZeroWithin(doc.TotalAmount.Sub(newPaid)) {
		newStatus = StatusPaid
	}
	if newStatus != doc.Status {
		if err := checkTransition(doc.Status, newStatus); err != nil {
			return nil, err
		}
	}

	expect := &Expect{Status: doc.Status, AmountPaid: doc.AmountPaid}
	doc.AmountPaid = newPaid
	doc.Status = newStatus
	doc.UpdatedAt = time.Now().UTC()

	if err := s.store.Apply(ctx, doc, expect, entry); err != nil {
		return nil, err
	}
	s.logger.Info("payment recorded",
		"organization_id", orgID,
		"document_id", doc.ID,
		"amount", req.Amount.StringFixed(2),
		"status", doc.Status,
	)
	return doc, nil
}

// Void cancels a document. When the document was approved, a reversing
// entry backs its accrual out of the books; payment entries are left in
// place since they record real money movement.
func (s *Service) Void(ctx context.Context, orgID, docID string) (*Document, error) {
	doc, err := s.store.Get(ctx, orgID, docID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(doc.Status, StatusVoid); err != nil {
		return nil, err
	}

	var reversal *ledger.Entry
	if doc.JournalEntryID != "" {
		reversal, err = s.buildReversal(ctx, doc, "voided")
		if err != nil {
			return nil, err
		}
	}

	expect := &Expect{Status: doc.Status, AmountPaid: doc.AmountPaid}
	doc.Status = StatusVoid
	doc.UpdatedAt = time.Now().UTC()
	if err := s.store.Apply(ctx, doc, expect, reversal); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a DRAFT document. Approved documents must be voided
// instead so the audit trail survives.
func (s *Service) Delete(ctx context.Context, orgID, docID string) error {
	doc, err := s.store.Get(ctx, orgID, docID)
	if err != nil {
		return err
	}
	if doc.Status != StatusDraft {
		return ErrNotDraftDocument
	}
	return s.store.Delete(ctx, orgID, docID)
}

// MarkOverdue sweeps SENT documents of the given kind whose due date
// has passed as of the given time and moves them to OVERDUE. Returns
// the documents updated. Documents paid or voided between the listing
// and the write are left alone.
func (s *Service) MarkOverdue(ctx context.Context, orgID string, kind Kind, asOf time.Time) ([]*Document, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	sent, err := s.store.List(ctx, orgID, Filter{Kind: kind, Status: StatusSent})
	if err != nil {
		return nil, err
	}

	var updated []*Document
	for _, doc := range sent {
		if doc.DueDate.IsZero() || !doc.DueDate.Before(asOf) {
			continue
		}
		expect := &Expect{Status: doc.Status, AmountPaid: doc.AmountPaid}
		doc.Status = StatusOverdue
		doc.UpdatedAt = time.Now().UTC()
		if err := s.store.Apply(ctx, doc, expect, nil); err != nil {
			if errors.Is(err, ErrConcurrentUpdate) {
				continue
			}
			return nil, err
		}
		updated = append(updated, doc)
	}
	if len(updated) > 0 {
		s.logger.Info("documents marked overdue", "organization_id", orgID, "count", len(updated))
	}
	return updated, nil
}

// Get returns a document with its lines.
func (s *Service) Get(ctx context.Context, orgID, docID string) (*Document, error) {
	return s.store.Get(ctx, orgID, docID)
}

// List returns documents matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f Filter) ([]*Document, error) {
	return s.store.List(ctx, orgID, f)
}

// buildReversal constructs the entry that backs the document's approval
// entry out of the books by swapping every line's debit and credit.
func (s *Service) buildReversal(ctx context.Context, doc *Document, reason string) (*ledger.Entry, error) {
	original, err := s.ledger.GetEntry(ctx, doc.OrganizationID, doc.JournalEntryID)
	if err != nil {
		return nil, err
	}

	lines := make([]ledger.Line, len(original.Lines))
	for i, l := range original.Lines {
		lines[i] = ledger.Line{
			ID:          uuid.NewString(),
			AccountID:   l.AccountID,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: l.Description,
		}
	}

	entry := s.newEntry(doc, lines,
		fmt.Sprintf("Reverse %s: %s", approvalDescription(doc), reason))
	entry.Date = time.Now().UTC().Truncate(24 * time.Hour)
	doc.JournalEntryID = ""
	return entry, nil
}

func (s *Service) newEntry(doc *Document, lines []ledger.Line, description string) *ledger.Entry {
	return &ledger.Entry{
		ID:             uuid.NewString(),
		OrganizationID: doc.OrganizationID,
		Date:           doc.Date,
		Description:    description,
		Status:         ledger.StatusPosted,
		ReferenceType:  referenceType(doc.Kind),
		ReferenceID:    doc.ID,
		Lines:          lines,
		CreatedAt:      time.Now().UTC(),
	}
}

func referenceType(k Kind) string {
	if k == KindBill {
		return ledger.RefBill
	}
	return ledger.RefInvoice
}

func approvalDescription(doc *Document) string {
	label := "Invoice"
	if doc.Kind == KindBill {
		label = "Bill"
	}
	if doc.Number != "" {
		return fmt.Sprintf("%s %s", label, doc.Number)
	}
	return fmt.Sprintf("%s %s", label, doc.ID)
}

func paymentDescription(doc *Document) string {
	return "Payment for " + approvalDescription(doc)
}
