package ledger

import "github.com/openbooks-dev/openbooks/internal/money"

// ValidateLines enforces the per-line invariants: at least two lines,
// no negative amounts, and exactly one positive side per line. Lines
// with zero on both sides would be no-op rows and are rejected.
func ValidateLines(lines []Line) error {
	if len(lines) < 2 {
		return ErrInsufficientLines
	}
	for _, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return ErrNegativeAmount
		}
		hasDebit := l.Debit.IsPositive()
		hasCredit := l.Credit.IsPositive()
		if !hasDebit && !hasCredit {
			return ErrZeroLine
		}
		if hasDebit && hasCredit {
			return ErrTwoSidedLine
		}
	}
	return nil
}

// CheckBalanced verifies that total debits equal total credits within
// the shared tolerance. Only POSTED entries must satisfy this; a DRAFT
// entry is exempt while being edited.
func CheckBalanced(lines []Line) error {
	debit, credit := (&Entry{Lines: lines}).Totals()
	if !money.Equal(debit, credit) {
		return &UnbalancedEntryError{Debits: debit, Credits: credit}
	}
	return nil
}
