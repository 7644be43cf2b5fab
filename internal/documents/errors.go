package documents

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidKind        = errors.New("document kind must be INVOICE or BILL")
	ErrNoLines            = errors.New("document requires at least one line")
	ErrInvalidLine        = errors.New("document line requires a positive quantity and a non-negative unit price")
	ErrNotDraftDocument   = errors.New("only draft documents can be deleted")
	ErrNonPositivePayment = errors.New("payment amount must be positive")
	ErrOverpayment        = errors.New("payment exceeds the document's remaining balance")
	ErrNotPayable         = errors.New("document is not in a payable status")
	ErrConcurrentUpdate   = errors.New("document was changed by a concurrent update")
)

// InvalidStateTransitionError reports a disallowed lifecycle move.
type InvalidStateTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid document transition from %s to %s", e.From, e.To)
}
