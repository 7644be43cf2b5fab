// Package api exposes the accounting services over HTTP. Every /v1
// route is tenant-scoped through the organization header.
package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openbooks-dev/openbooks/internal/documents"
	"github.com/openbooks-dev/openbooks/internal/ledger"
	"github.com/openbooks-dev/openbooks/internal/reconcile"
	"github.com/openbooks-dev/openbooks/internal/reports"
	"github.com/openbooks-dev/openbooks/internal/security"
	"github.com/openbooks-dev/openbooks/pkg/audit"
)

type Auditor interface {
	Append(payload string) *audit.LogEntry
}

type Dependencies struct {
	Logger *slog.Logger

	Ledger    *ledger.Service
	Documents *documents.Service
	Reports   *reports.Service
	Reconcile *reconcile.Service

	Auditor      Auditor
	RateLimiter  *security.RedisTokenBucket
	IPAllowlist  []*net.IPNet
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	postEntryV, err := security.NewJSONSchemaValidator(postEntrySchema)
	if err != nil {
		return nil, err
	}
	createAccountV, err := security.NewJSONSchemaValidator(createAccountSchema)
	if err != nil {
		return nil, err
	}
	saveDocumentV, err := security.NewJSONSchemaValidator(saveDocumentSchema)
	if err != nil {
		return nil, err
	}
	paymentV, err := security.NewJSONSchemaValidator(recordPaymentSchema)
	if err != nil {
		return nil, err
	}
	matchV, err := security.NewJSONSchemaValidator(matchSchema)
	if err != nil {
		return nil, err
	}
	createAndMatchV, err := security.NewJSONSchemaValidator(createAndMatchSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireOrganization)
		if deps.Auditor != nil {
			r.Use(AuditMiddleware(deps.Auditor))
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", handleListAccounts(deps))
			r.With(createAccountV.Middleware).Post("/", handleCreateAccount(deps))
			r.Post("/seed", handleSeedAccounts(deps))
			r.Get("/consistency", handleBalanceConsistency(deps))
			r.Get("/{account_id}", handleGetAccount(deps))
			r.Delete("/{account_id}", handleDeleteAccount(deps))
		})

		r.Route("/journal", func(r chi.Router) {
			r.Get("/", handleListEntries(deps))
			r.With(postEntryV.Middleware).Post("/", handlePostEntry(deps))
			r.Get("/{entry_id}", handleGetEntry(deps))
			r.Post("/{entry_id}/post", handlePostDraft(deps))
			r.Post("/{entry_id}/archive", handleArchiveDraft(deps))
			r.Delete("/{entry_id}", handleDeleteDraft(deps))
		})

		r.Route("/invoices", func(r chi.Router) {
			mountDocumentRoutes(r, deps, documents.KindInvoice, saveDocumentV, paymentV)
		})
		r.Route("/bills", func(r chi.Router) {
			mountDocumentRoutes(r, deps, documents.KindBill, saveDocumentV, paymentV)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", handleTrialBalance(deps))
			r.Get("/profit-and-loss", handleProfitAndLoss(deps))
			r.Get("/balance-sheet", handleBalanceSheet(deps))
		})

		r.Route("/banking", func(r chi.Router) {
			r.Post("/accounts/{account_id}/import", handleImportStatement(deps))
			r.Get("/transactions", handleListBankTransactions(deps))
			r.Get("/transactions/{transaction_id}", handleGetBankTransaction(deps))
			r.Get("/transactions/{transaction_id}/candidates", handleMatchCandidates(deps))
			r.With(matchV.Middleware).Post("/transactions/{transaction_id}/match", handleMatchTransaction(deps))
			r.With(createAndMatchV.Middleware).Post("/transactions/{transaction_id}/create-and-match", handleCreateAndMatch(deps))
			r.Post("/transactions/{transaction_id}/exclude", handleExcludeTransaction(deps))
			r.Delete("/transactions/{transaction_id}", handleDeleteBankTransaction(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}

func mountDocumentRoutes(r chi.Router, deps Dependencies, kind documents.Kind, saveV, paymentV *security.JSONSchemaValidator) {
	r.Get("/", handleListDocuments(deps, kind))
	r.With(saveV.Middleware).Post("/", handleSaveDocument(deps, kind))
	r.With(saveV.Middleware).Put("/{document_id}", handleSaveDocument(deps, kind))
	r.Post("/mark-overdue", handleMarkOverdue(deps, kind))
	r.Get("/{document_id}", handleGetDocument(deps))
	r.Post("/{document_id}/approve", handleApproveDocument(deps))
	r.With(paymentV.Middleware).Post("/{document_id}/payments", handleRecordPayment(deps))
	r.Post("/{document_id}/void", handleVoidDocument(deps))
	r.Delete("/{document_id}", handleDeleteDocument(deps))
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
