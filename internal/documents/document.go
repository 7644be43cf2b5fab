// Package documents implements the invoice and bill lifecycle. A
// document moves through a typed state machine; the financially
// significant transitions (approval, payment, void) post journal
// entries through the ledger in the same transaction that updates the
// document row.
package documents

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes receivable documents from payable ones.
type Kind string

const (
	KindInvoice Kind = "INVOICE"
	KindBill    Kind = "BILL"
)

// Valid reports whether k is a known document kind.
func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindBill
}

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft   Status = "DRAFT"
	StatusSent    Status = "SENT"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
	StatusVoid    Status = "VOID"
)

// AllowedTransitions returns the full state machine. SENT and OVERDUE
// may return to DRAFT when the document is edited; PAID and VOID are
// terminal. A document that has received a partial payment can no
// longer be edited, only settled or voided.
func AllowedTransitions() map[Status][]Status {
	return map[Status][]Status{
		StatusDraft:   {StatusSent, StatusVoid},
		StatusSent:    {StatusDraft, StatusPartial, StatusPaid, StatusOverdue, StatusVoid},
		StatusPartial: {StatusPaid, StatusVoid},
		StatusOverdue: {StatusDraft, StatusPartial, StatusPaid, StatusVoid},
		StatusPaid:    {},
		StatusVoid:    {},
	}
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions()[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition returns a typed error when the move is not allowed.
func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidStateTransitionError{From: from, To: to}
	}
	return nil
}

// DocLine is one billable line on a document.
type DocLine struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Amount is the line total, rounded to cents.
func (l DocLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

// Document is an invoice or bill. TotalAmount is always computed
// server-side from the lines; AmountPaid accumulates recorded payments.
type Document struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Kind           Kind            `json:"kind"`
	Counterparty   string          `json:"counterparty"`
	Number         string          `json:"number"`
	Date           time.Time       `json:"date"`
	DueDate        time.Time       `json:"due_date"`
	Status         Status          `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	JournalEntryID string          `json:"journal_entry_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Lines          []DocLine       `json:"lines"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Balance is the amount still owed on the document.
func (d *Document) Balance() decimal.Decimal {
	return d.TotalAmount.Sub(d.AmountPaid)
}
