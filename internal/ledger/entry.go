package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the lifecycle state of a journal entry.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusArchived EntryStatus = "ARCHIVED"
)

// Reference types linking an entry back to its source document.
const (
	RefManual  = "MANUAL"
	RefInvoice = "INVOICE"
	RefBill    = "BILL"
	RefBankTx  = "BANK_TX"
)

// Line is a single debit or credit against an account. Exactly one of
// Debit/Credit is positive; the other is zero.
type Line struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// Entry is a journal entry owning an ordered set of lines. Once POSTED
// an entry is immutable: it can never be edited or deleted.
type Entry struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	EntryNumber    int64       `json:"entry_number"`
	Date           time.Time   `json:"date"`
	Description    string      `json:"description"`
	Status         EntryStatus `json:"status"`
	ReferenceType  string      `json:"reference_type,omitempty"`
	ReferenceID    string      `json:"reference_id,omitempty"`
	Lines          []Line      `json:"lines"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Totals returns the summed debits and credits across all lines.
func (e *Entry) Totals() (debit, credit decimal.Decimal) {
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// NetOnAccount returns the entry's net effect (debit - credit)
// restricted to lines against the given account.
func (e *Entry) NetOnAccount(accountID string) decimal.Decimal {
	net := decimal.Zero
	for _, l := range e.Lines {
		if l.AccountID == accountID {
			net = net.Add(l.Debit).Sub(l.Credit)
		}
	}
	return net
}

// TouchesAccount reports whether any line posts to the given account.
func (e *Entry) TouchesAccount(accountID string) bool {
	for _, l := range e.Lines {
		if l.AccountID == accountID {
			return true
		}
	}
	return false
}
