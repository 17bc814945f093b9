// Package http exposes the tracker as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"gastos/internal/auth"
	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/services"
)

type ctxKey int

const identityKey ctxKey = iota

// identityFrom returns the authenticated identity stored by withAuth.
func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// cachedReport is one rendered report body kept in the LRU.
type cachedReport struct {
	FamilyCode string
	Body       []byte
}

// idempotentResponse replays a previously completed POST.
type idempotentResponse struct {
	Status int
	Body   []byte
}

type Server struct {
	http.Server
	auth    *auth.Service
	tracker *services.TrackerService
	backups *services.BackupService
	logger  *log.Logger

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	reportCache      *cache.LRUCache[cachedReport]
	idempotencyCache *cache.LRUCache[idempotentResponse]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, authSvc *auth.Service, tracker *services.TrackerService, backups *services.BackupService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		auth:             authSvc,
		tracker:          tracker,
		backups:          backups,
		logger:           log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentHTTP}),
		rateLimiter:      newRateLimiter(),
		metrics:          &securityMetrics{},
		reportCache:      cache.NewLRUCache[cachedReport](200, 5*time.Minute),
		idempotencyCache: cache.NewLRUCache[idempotentResponse](500, 10*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/signup", s.public(s.handleSignUp))
	mux.HandleFunc("POST /api/auth/signin", s.public(s.handleSignIn))
	mux.HandleFunc("GET /api/auth/me", s.protected(s.handleMe))

	mux.HandleFunc("GET /api/snapshot", s.protected(s.handleSnapshot))

	s.mountTransactionRoutes(mux, "expenses", core.Expense)
	s.mountTransactionRoutes(mux, "incomes", core.Income)
	s.mountCategoryRoutes(mux, "expense-categories", core.Expense)
	s.mountCategoryRoutes(mux, "income-categories", core.Income)

	mux.HandleFunc("GET /api/budgets", s.protected(s.handleListBudgets))
	mux.HandleFunc("PUT /api/budgets", s.protected(s.handleSetBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.protected(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/reports/summary", s.protected(s.handleSummaryReport))
	mux.HandleFunc("GET /api/reports/categories", s.protected(s.handleCategoryReport))
	mux.HandleFunc("GET /api/reports/budgets", s.protected(s.handleBudgetReport))

	mux.HandleFunc("GET /api/backup/export", s.protected(s.handleBackupExport))
	mux.HandleFunc("POST /api/backup/restore", s.protected(s.handleBackupRestore))

	return s
}

func (s *Server) mountTransactionRoutes(mux *http.ServeMux, path string, kind core.TransactionKind) {
	mux.HandleFunc("GET /api/"+path, s.protected(s.handleListTransactions(kind)))
	mux.HandleFunc("POST /api/"+path, s.protected(s.handleCreateTransaction(kind)))
	mux.HandleFunc("PUT /api/"+path+"/{id}", s.protected(s.handleUpdateTransaction(kind)))
	mux.HandleFunc("DELETE /api/"+path+"/{id}", s.protected(s.handleDeleteTransaction(kind)))
}

func (s *Server) mountCategoryRoutes(mux *http.ServeMux, path string, kind core.TransactionKind) {
	mux.HandleFunc("GET /api/"+path, s.protected(s.handleListCategories(kind)))
	mux.HandleFunc("POST /api/"+path, s.protected(s.handleCreateCategory(kind)))
	mux.HandleFunc("DELETE /api/"+path+"/{id}", s.protected(s.handleDeleteCategory(kind)))
}

// public wraps a handler with security headers, rate limiting and
// request logging.
func (s *Server) public(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r, s.metrics)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), "request_id", requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		setSecurityHeaders(w)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// protected additionally requires a valid Bearer token and stores the
// resolved identity in the request context.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return s.public(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		identity, err := s.auth.Verify(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// startCacheCleanup runs periodic cleanup for both caches.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reportsCleaned := s.reportCache.CleanExpired()
			keysCleaned := s.idempotencyCache.CleanExpired()
			if reportsCleaned > 0 || keysCleaned > 0 {
				s.logger.Debug("Cache cleanup completed",
					"report_entries_removed", reportsCleaned,
					"idempotency_entries_removed", keysCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidateReports drops cached reports after any mutation. The cache
// is small and short-lived, so clearing it wholesale is simpler than
// tracking per-family keys.
func (s *Server) invalidateReports() {
	s.reportCache.Clear()
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
