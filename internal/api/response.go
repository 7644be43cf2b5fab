package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/openbooks-dev/openbooks/internal/documents"
	"github.com/openbooks-dev/openbooks/internal/ledger"
	"github.com/openbooks-dev/openbooks/internal/reconcile"
	"github.com/openbooks-dev/openbooks/internal/security"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	cid := security.CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError translates domain errors into HTTP responses.
// Cross-organization lookups deliberately surface as not found so a
// tenant cannot probe for another tenant's IDs; they are logged at warn
// since a pattern of them suggests someone is probing anyway.
func writeServiceError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var (
		unbalanced *ledger.UnbalancedEntryError
		noAccount  *ledger.AccountNotFoundError
		crossOrg   *ledger.CrossOrganizationAccountError
		integrity  *ledger.IntegrityError
		transition *documents.InvalidStateTransitionError
		matched    *reconcile.AlreadyMatchedError
		importErr  *reconcile.ImportError
	)

	switch {
	case errors.As(err, &crossOrg):
		logger.Warn("cross-organization account reference",
			"cid", security.CorrelationIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"organization_id", crossOrg.OrganizationID,
			"account_id", crossOrg.AccountID,
		)
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")

	case errors.As(err, &noAccount),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, documents.ErrDocumentNotFound),
		errors.Is(err, reconcile.ErrBankTxNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")

	case errors.As(err, &unbalanced),
		errors.As(err, &importErr),
		errors.Is(err, ledger.ErrInsufficientLines),
		errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, ledger.ErrZeroLine),
		errors.Is(err, ledger.ErrTwoSidedLine),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, ledger.ErrInvalidDate),
		errors.Is(err, documents.ErrInvalidKind),
		errors.Is(err, documents.ErrNoLines),
		errors.Is(err, documents.ErrInvalidLine),
		errors.Is(err, documents.ErrNonPositivePayment),
		errors.Is(err, documents.ErrOverpayment):
		security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())

	case errors.As(err, &transition),
		errors.As(err, &matched),
		errors.Is(err, ledger.ErrNotDraft),
		errors.Is(err, ledger.ErrSystemAccount),
		errors.Is(err, ledger.ErrAccountInUse),
		errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, documents.ErrNotDraftDocument),
		errors.Is(err, documents.ErrNotPayable),
		errors.Is(err, documents.ErrConcurrentUpdate),
		errors.Is(err, reconcile.ErrTxExcluded),
		errors.Is(err, reconcile.ErrMatchedTxFrozen),
		errors.Is(err, reconcile.ErrEntryNotPosted):
		security.WriteJSONErrorDetail(w, r, http.StatusConflict, "conflict", err.Error())

	case errors.As(err, &integrity):
		security.WriteJSONError(w, r, http.StatusInternalServerError, "data_integrity_error")

	default:
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
	}
}
