// Package api provides the HTTP server for the crediário ledger. It
// exposes the credit account and payment operations under /api/credit
// and the customer directory under /api/customers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rmachado/crediario/internal/app/ledger"
	"github.com/rmachado/crediario/internal/app/reconcile"
	"github.com/rmachado/crediario/internal/domain"
	"github.com/rmachado/crediario/internal/infra/sqlite"
)

// Server is the crediário HTTP API server.
type Server struct {
	ledger         *ledger.Service
	db             *sqlite.DB
	reconciler     *reconcile.Reconciler // nil if reconciliation is disabled
	log            *logrus.Logger        // nil disables request logging
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(svc *ledger.Service, db *sqlite.DB) *Server {
	return &Server{ledger: svc, db: db}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetReconciler enables the on-demand reconciliation endpoint.
func (s *Server) SetReconciler(r *reconcile.Reconciler) { s.reconciler = r }

// SetLogger enables per-request logging.
func (s *Server) SetLogger(log *logrus.Logger) { s.log = log }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if s.log != nil {
		r.Use(s.requestLogger)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api/credit", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.handleOpenAccount)
			r.Get("/", s.handleListAccounts)
			r.Get("/{id}", s.handleGetAccount)
			r.Patch("/{id}", s.handleCorrectAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
			r.Post("/{id}/payments", s.handleRecordPayment)
			r.Get("/{id}/payments", s.handleListPayments)
		})
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", s.handleRecordPaymentByBody)
			r.Get("/{id}", s.handleGetPayment)
			r.Delete("/{id}", s.handleReversePayment)
		})
		r.Get("/reports/outstanding", s.handleOutstanding)
	})

	r.Route("/api/customers", func(r chi.Router) {
		r.Post("/", s.handleCreateCustomer)
		r.Get("/", s.handleListCustomers)
		r.Get("/{id}", s.handleGetCustomer)
	})

	if s.reconciler != nil {
		r.Post("/api/credit/reconcile", s.handleReconcile)
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// requestLogger logs each request at Debug with its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a domain error onto an HTTP status: validation
// failures are the client's fault, missing entities are 404, and state
// conflicts (closed account, overpayment, lost version race) are 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case domain.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
