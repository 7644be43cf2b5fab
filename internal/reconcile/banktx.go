// Package reconcile matches imported bank statement lines against
// posted journal entries. A statement line is matched at most once;
// MATCHED is terminal.
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus is the reconciliation state of a bank transaction.
type TxStatus string

const (
	StatusUnmatched TxStatus = "UNMATCHED"
	StatusMatched   TxStatus = "MATCHED"
	StatusExcluded  TxStatus = "EXCLUDED"
)

// BankTransaction is one imported statement line. Amount is signed from
// the bank account's perspective: positive for money in, negative for
// money out.
type BankTransaction struct {
	ID                    string          `json:"id"`
	OrganizationID        string          `json:"organization_id"`
	AccountID             string          `json:"account_id"`
	Date                  time.Time       `json:"date"`
	Amount                decimal.Decimal `json:"amount"`
	Description           string          `json:"description"`
	ExternalID            string          `json:"external_id,omitempty"`
	Status                TxStatus        `json:"status"`
	MatchedJournalEntryID string          `json:"matched_journal_entry_id,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

var (
	ErrBankTxNotFound  = errors.New("bank transaction not found")
	ErrTxExcluded      = errors.New("bank transaction is excluded from reconciliation")
	ErrMatchedTxFrozen = errors.New("matched bank transactions cannot be modified or deleted")
	ErrEntryNotPosted  = errors.New("only posted journal entries can be matched")
)

// AlreadyMatchedError reports an attempt to act on a transaction that
// is already matched.
type AlreadyMatchedError struct {
	TransactionID  string
	JournalEntryID string
}

func (e *AlreadyMatchedError) Error() string {
	return fmt.Sprintf("bank transaction %s is already matched to journal entry %s",
		e.TransactionID, e.JournalEntryID)
}
