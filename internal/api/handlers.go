package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbooks-dev/openbooks/internal/documents"
	"github.com/openbooks-dev/openbooks/internal/ledger"
	"github.com/openbooks-dev/openbooks/internal/money"
	"github.com/openbooks-dev/openbooks/internal/reconcile"
	"github.com/openbooks-dev/openbooks/internal/security"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return 0
}

// Accounts

type accountResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Account       *ledger.Account `json:"account"`
}

type listAccountsResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Accounts      []*ledger.Account `json:"accounts"`
}

type createAccountRequest struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	ParentAccountID string `json:"parent_account_id"`
}

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := deps.Ledger.ListAccounts(r.Context(), orgIDFromContext(r.Context()))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, listAccountsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Accounts:      accounts,
		})
	}
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		account, err := deps.Ledger.CreateAccount(r.Context(), ledger.CreateAccountRequest{
			OrganizationID:  orgIDFromContext(r.Context()),
			Name:            req.Name,
			Type:            ledger.AccountType(req.Type),
			ParentAccountID: req.ParentAccountID,
		})
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, accountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Account:       account,
		})
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Ledger.GetAccount(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "account_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, accountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Account:       account,
		})
	}
}

func handleDeleteAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Ledger.DeleteAccount(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "account_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSeedAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := orgIDFromContext(r.Context())
		if _, err := deps.Ledger.SeedDefaultAccounts(r.Context(), orgID); err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		accounts, err := deps.Ledger.ListAccounts(r.Context(), orgID)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, listAccountsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Accounts:      accounts,
		})
	}
}

type consistencyResponse struct {
	CorrelationID string                `json:"correlation_id"`
	Consistent    bool                  `json:"consistent"`
	Drifts        []ledger.BalanceDrift `json:"drifts,omitempty"`
}

func handleBalanceConsistency(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drifts, err := deps.Ledger.CheckBalanceConsistency(r.Context(), orgIDFromContext(r.Context()))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, consistencyResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Consistent:    len(drifts) == 0,
			Drifts:        drifts,
		})
	}
}

// Journal

type postEntryRequest struct {
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Lines       []ledger.Line `json:"lines"`
}

type entryResponse struct {
	CorrelationID string        `json:"correlation_id"`
	Entry         *ledger.Entry `json:"entry"`
}

type listEntriesResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Entries       []*ledger.Entry `json:"entries"`
}

func handlePostEntry(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req postEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}

		entry, err := deps.Ledger.PostEntry(r.Context(), ledger.PostEntryRequest{
			OrganizationID: orgIDFromContext(r.Context()),
			Date:           date,
			Description:    req.Description,
			Status:         ledger.EntryStatus(req.Status),
			ReferenceType:  ledger.RefManual,
			Lines:          req.Lines,
		})
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, entryResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Entry:         entry,
		})
	}
}

func handleListEntries(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ledger.EntryFilter{
			Status:        ledger.EntryStatus(q.Get("status")),
			ReferenceType: q.Get("reference_type"),
			ReferenceID:   q.Get("reference_id"),
			Limit:         parseLimit(r),
		}
		if v := q.Get("from"); v != "" {
			t, err := parseDate(v)
			if err != nil {
				security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
				return
			}
			filter.From = &t
		}
		if v := q.Get("to"); v != "" {
			t, err := parseDate(v)
			if err != nil {
				security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
				return
			}
			filter.To = &t
		}

		entries, err := deps.Ledger.ListEntries(r.Context(), orgIDFromContext(r.Context()), filter)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, listEntriesResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Entries:       entries,
		})
	}
}

func handleGetEntry(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := deps.Ledger.GetEntry(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "entry_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, entryResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Entry:         entry,
		})
	}
}

func handlePostDraft(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := deps.Ledger.PostDraft(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "entry_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, entryResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Entry:         entry,
		})
	}
}

func handleArchiveDraft(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Ledger.ArchiveDraft(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "entry_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteDraft(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Ledger.DeleteDraft(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "entry_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Documents

type saveDocumentRequest struct {
	Counterparty string              `json:"counterparty"`
	Number       string              `json:"number"`
	Date         string              `json:"date"`
	DueDate      string              `json:"due_date"`
	Notes        string              `json:"notes"`
	Lines        []documents.DocLine `json:"lines"`
}

type documentResponse struct {
	CorrelationID string              `json:"correlation_id"`
	Document      *documents.Document `json:"document"`
}

type listDocumentsResponse struct {
	CorrelationID string                `json:"correlation_id"`
	Documents     []*documents.Document `json:"documents"`
}

func handleSaveDocument(deps Dependencies, kind documents.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		var dueDate time.Time
		if req.DueDate != "" {
			dueDate, err = parseDate(req.DueDate)
			if err != nil {
				security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
				return
			}
		}

		doc, err := deps.Documents.SaveDraft(r.Context(), documents.SaveDraftRequest{
			ID:             chi.URLParam(r, "document_id"),
			OrganizationID: orgIDFromContext(r.Context()),
			Kind:           kind,
			Counterparty:   req.Counterparty,
			Number:         req.Number,
			Date:           date,
			DueDate:        dueDate,
			Notes:          req.Notes,
			Lines:          req.Lines,
		})
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}

		status := http.StatusOK
		if r.Method == http.MethodPost {
			status = http.StatusCreated
		}
		writeJSON(w, r, status, documentResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Document:      doc,
		})
	}
}

func handleListDocuments(deps Dependencies, kind documents.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := documents.Filter{
			Kind:   kind,
			Status: documents.Status(r.URL.Query().Get("status")),
			Limit:  parseLimit(r),
		}
		docs, err := deps.Documents.List(r.Context(), orgIDFromContext(r.Context()), filter)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, listDocumentsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Documents:     docs,
		})
	}
}

func handleGetDocument(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Documents.Get(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "document_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, documentResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Document:      doc,
		})
	}
}

func handleApproveDocument(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Documents.Approve(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "document_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, documentResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Document:      doc,
		})
	}
}

type recordPaymentRequest struct {
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	AccountID string `json:"account_id"`
}

func handleRecordPayment(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		amount, err := money.ParseAmount(req.Amount)
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		var date time.Time
		if req.Date != "" {
			date, err = parseDate(req.Date)
			if err != nil {
				security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
				return
			}
		}

		doc, err := deps.Documents.RecordPayment(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "document_id"), documents.PaymentRequest{
			Amount:    amount,
			Date:      date,
			AccountID: req.AccountID,
		})
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, documentResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Document:      doc,
		})
	}
}

func handleVoidDocument(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Documents.Void(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "document_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, documentResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Document:      doc,
		})
	}
}

func handleDeleteDocument(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Documents.Delete(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "document_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMarkOverdue(deps Dependencies, kind documents.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf := time.Now().UTC()
		if v := r.URL.Query().Get("as_of"); v != "" {
			t, err := parseDate(v)
			if err != nil {
				security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
				return
			}
			asOf = t
		}
		updated, err := deps.Documents.MarkOverdue(r.Context(), orgIDFromContext(r.Context()), kind, asOf)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, listDocumentsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Documents:     updated,
		})
	}
}

// Reports

func handleTrialBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := reportDate(r, "as_of", time.Now().UTC())
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		tb, err := deps.Reports.TrialBalance(r.Context(), orgIDFromContext(r.Context()), asOf)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, tb)
	}
}

func handleProfitAndLoss(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := reportDate(r, "from", time.Time{})
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		to, err := reportDate(r, "to", time.Now().UTC())
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		pl, err := deps.Reports.ProfitAndLoss(r.Context(), orgIDFromContext(r.Context()), from, to)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, pl)
	}
}

func handleBalanceSheet(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := reportDate(r, "as_of", time.Now().UTC())
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		bs, err := deps.Reports.BalanceSheet(r.Context(), orgIDFromContext(r.Context()), asOf)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, bs)
	}
}

func reportDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return parseDate(v)
}

// Banking

type bankTxResponse struct {
	CorrelationID string                     `json:"correlation_id"`
	Transaction   *reconcile.BankTransaction `json:"transaction"`
}

type listBankTxResponse struct {
	CorrelationID string                       `json:"correlation_id"`
	Transactions  []*reconcile.BankTransaction `json:"transactions"`
}

func handleImportStatement(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := deps.Reconcile.ImportStatement(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "account_id"), r.Body)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, listBankTxResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transactions:  txs,
		})
	}
}

func handleListBankTransactions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := reconcile.TxFilter{
			AccountID: q.Get("account_id"),
			Status:    reconcile.TxStatus(q.Get("status")),
			Limit:     parseLimit(r),
		}
		txs, err := deps.Reconcile.List(r.Context(), orgIDFromContext(r.Context()), filter)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, listBankTxResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transactions:  txs,
		})
	}
}

func handleGetBankTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := deps.Reconcile.Get(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "transaction_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, bankTxResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transaction:   tx,
		})
	}
}

func handleMatchCandidates(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Reconcile.FindCandidates(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "transaction_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, listEntriesResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Entries:       entries,
		})
	}
}

type matchRequest struct {
	JournalEntryID string `json:"journal_entry_id"`
}

func handleMatchTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		tx, err := deps.Reconcile.Match(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "transaction_id"), req.JournalEntryID)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, bankTxResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transaction:   tx,
		})
	}
}

type createAndMatchRequest struct {
	ContraAccountID string `json:"contra_account_id"`
	Description     string `json:"description"`
}

func handleCreateAndMatch(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAndMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		tx, err := deps.Reconcile.CreateAndMatch(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "transaction_id"), req.ContraAccountID, req.Description)
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, bankTxResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transaction:   tx,
		})
	}
}

func handleExcludeTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := deps.Reconcile.Exclude(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "transaction_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, bankTxResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transaction:   tx,
		})
	}
}

func handleDeleteBankTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Reconcile.Delete(r.Context(), orgIDFromContext(r.Context()), chi.URLParam(r, "transaction_id"))
		if err != nil {
			writeServiceError(deps.Logger, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
