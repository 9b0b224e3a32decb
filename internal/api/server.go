// Package api exposes the entitlement state over a read-only HTTP surface.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/entitle/internal/model"
)

// Querier is the read side of the engine. *app.Service implements it.
type Querier interface {
	IsPurchased(productID string) bool
	CurrentEntitlements() []model.Transaction
	PurchasedProductIDs() []string
	FindTransaction(id string) (model.Transaction, bool)
	Status(productID, group string) *model.SubscriptionStatus
	GroupStatuses(groupID string) []model.SubscriptionStatus
	CurrentPlan(groupID string) (model.Transaction, bool)
}

// Server serves Querier results as JSON.
type Server struct {
	q        Querier
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer mounts /metrics for g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a Server.
func NewServer(q Querier, opts ...Option) *Server {
	s := &Server{q: q, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/entitlements", s.handleEntitlements)
		r.Get("/products/{id}/purchased", s.handlePurchased)
		r.Get("/products/{id}/status", s.handleStatus)
		r.Get("/groups/{id}/statuses", s.handleGroupStatuses)
		r.Get("/groups/{id}/plan", s.handleCurrentPlan)
		r.Get("/transactions/{id}", s.handleTransaction)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type entitlementsResponse struct {
	Purchased    []string            `json:"purchased"`
	Transactions []model.Transaction `json:"transactions"`
}

// handleEntitlements handles GET /v1/entitlements.
func (s *Server) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	resp := entitlementsResponse{
		Purchased:    s.q.PurchasedProductIDs(),
		Transactions: s.q.CurrentEntitlements(),
	}
	if resp.Purchased == nil {
		resp.Purchased = []string{}
	}
	if resp.Transactions == nil {
		resp.Transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePurchased handles GET /v1/products/{id}/purchased.
func (s *Server) handlePurchased(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": id,
		"purchased":  s.q.IsPurchased(id),
	})
}

// handleStatus handles GET /v1/products/{id}/status. The optional group
// query parameter restricts the projection to one subscription group.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st := s.q.Status(id, r.URL.Query().Get("group"))
	if st == nil {
		writeError(w, http.StatusNotFound, "no transactions for product "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGroupStatuses handles GET /v1/groups/{id}/statuses.
func (s *Server) handleGroupStatuses(w http.ResponseWriter, r *http.Request) {
	statuses := s.q.GroupStatuses(chi.URLParam(r, "id"))
	if statuses == nil {
		statuses = []model.SubscriptionStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleCurrentPlan handles GET /v1/groups/{id}/plan.
func (s *Server) handleCurrentPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, ok := s.q.CurrentPlan(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no active plan in group "+id)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleTransaction handles GET /v1/transactions/{id}.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, ok := s.q.FindTransaction(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown transaction "+id)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
