package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"budgeting/internal/core"
	"budgeting/internal/log"
)

type transactionResponse struct {
	Transaction core.Transaction `json:"transaction"`
	Position    int              `json:"position"`
}

type summaryResponse struct {
	Summary    core.Summary          `json:"summary"`
	ByCategory []core.CategoryAmount `json:"by_category"`
	Revision   uint64                `json:"revision"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if n, err := s.ledger.Len(ctx); err != nil {
		checks["ledger"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = fmt.Sprintf("ok (%d transactions)", n)
	}

	if err := s.ready(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.exporter != nil {
		checks["sheets"] = "configured"
	} else {
		checks["sheets"] = "not_configured"
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"checks":    checks,
		"revision":  s.ledger.Revision(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := s.views.Stats()

	var b []byte
	metric := func(name, kind, help string, value any) {
		b = fmt.Appendf(b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	// An unreadable ledger drops the count rather than reporting zero.
	if count, err := s.ledger.Len(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Ledger unavailable for metrics", log.FieldError, err)
		metric("ledger_up", "gauge", "Whether the ledger can be read", 0)
	} else {
		metric("ledger_up", "gauge", "Whether the ledger can be read", 1)
		metric("ledger_transactions", "gauge", "Transactions currently in the ledger", count)
	}
	metric("ledger_revision", "counter", "Committed ledger mutations", s.ledger.Revision())
	metric("view_cache_entries", "gauge", "Memoised views", s.views.Size())
	metric("view_cache_hits_total", "counter", "View cache hits", stats.Hits)
	metric("view_cache_misses_total", "counter", "View cache misses", stats.Misses)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", atomic.LoadInt64(&s.security.rateLimitHits))
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", s.rateLimiter.activeClients())
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", atomic.LoadInt64(&s.security.suspiciousRequests))
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))

	NewResponse().Body("text/plain; charset=utf-8", b).Write(w)
}

// handleListTransactions returns the filtered transactions with their totals.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	v, err := s.view(r.Context(), c)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(v).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	v, err := s.view(r.Context(), c)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(summaryResponse{
		Summary:    v.Summary,
		ByCategory: v.ByCategory,
		Revision:   v.Revision,
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := NewRequestBodyParser(w, r).Transaction()
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	added, err := s.ledger.Add(r.Context(), t)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).WithTransaction(added).ToSlice()...)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+string(added.ID)).
		JSON(added).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, pos, err := s.ledger.Get(r.Context(), core.ID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(transactionResponse{Transaction: t, Position: pos}).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := core.ID(chi.URLParam(r, "id"))
	t, err := NewRequestBodyParser(w, r).Transaction()
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.ledger.Update(r.Context(), id, t)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction updated",
		log.NewFields().WithOperation(log.OpUpdate).WithTransaction(updated).ToSlice()...)

	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ledger.Delete(r.Context(), core.ID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.NewFields().WithOperation(log.OpDelete).WithTransaction(removed).ToSlice()...)

	NewResponse().JSON(removed).Write(w)
}

// fail logs err at a level matching its response class and writes the
// mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithOperation(op).WithError(err).ToSlice()
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields...)
	}
	resp.Write(w)
}
