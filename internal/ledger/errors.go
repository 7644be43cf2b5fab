package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors (caller-fixable).
var (
	ErrInsufficientLines = errors.New("journal entry requires at least two lines")
	ErrNegativeAmount    = errors.New("debit and credit amounts must not be negative")
	ErrZeroLine          = errors.New("journal line must carry a debit or a credit")
	ErrTwoSidedLine      = errors.New("journal line must not carry both a debit and a credit")
	ErrInvalidStatus     = errors.New("invalid journal entry status")
	ErrNotDraft          = errors.New("journal entry is not in draft status")
	ErrInvalidDate       = errors.New("journal entry date is required")
)

// Referential and protection errors.
var (
	ErrEntryNotFound    = errors.New("journal entry not found")
	ErrSystemAccount    = errors.New("system accounts cannot be deleted")
	ErrAccountInUse     = errors.New("accounts referenced by journal lines cannot be deleted")
	ErrDuplicateAccount = errors.New("account code already exists for organization")
)

// UnbalancedEntryError reports a posted entry whose debits and credits
// differ by more than the shared tolerance.
type UnbalancedEntryError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("debits (%s) must equal credits (%s)",
		e.Debits.StringFixed(2), e.Credits.StringFixed(2))
}

// AccountNotFoundError reports a line referencing an unknown account.
type AccountNotFoundError struct {
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}

// CrossOrganizationAccountError reports a line referencing an account
// outside the entry's organization. Callers should treat this as a
// possible tenancy probe and log it at warn level.
type CrossOrganizationAccountError struct {
	AccountID      string
	OrganizationID string
}

func (e *CrossOrganizationAccountError) Error() string {
	return fmt.Sprintf("account %s does not belong to organization %s",
		e.AccountID, e.OrganizationID)
}

// IntegrityError reports a system-fault invariant violation, such as a
// cached account balance that disagrees with the summed posted lines.
// This must never happen when posting is implemented correctly; it is
// an alerting condition, never a condition to silently correct.
type IntegrityError struct {
	OrganizationID string
	Detail         string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation for organization %s: %s",
		e.OrganizationID, e.Detail)
}
