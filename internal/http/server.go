// Package http exposes the ledger over a JSON API: boards, expenses,
// obligations, settlements, and the summary views.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/zivstay/Homis-sub000/internal/cache"
	applog "github.com/zivstay/Homis-sub000/internal/log"
	"github.com/zivstay/Homis-sub000/internal/services"
)

type Server struct {
	http.Server
	engine      *services.Engine
	aggregator  *services.Aggregator
	rateLimiter *rateLimiter

	// Summary views are cached briefly and purged on every mutation, so a
	// reader never sees a summary older than the last write it raced with.
	debtCache    *cache.LRU[services.DebtSummary]
	expenseCache *cache.LRU[services.ExpenseSummary]
	caches       *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run http.Server.
func NewServer(addr string, engine *services.Engine, aggregator *services.Aggregator) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.RequestLogger(mux),
		},
		engine:       engine,
		aggregator:   aggregator,
		rateLimiter:  newRateLimiter(),
		debtCache:    cache.NewLRU[services.DebtSummary](200, 2*time.Minute),
		expenseCache: cache.NewLRU[services.ExpenseSummary](200, 2*time.Minute),
		caches:       cache.NewManager(),
	}

	s.caches.Register(s.debtCache)
	s.caches.Register(s.expenseCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/boards", s.withSecurityHeaders(s.handleBoards))
	mux.HandleFunc("/api/expenses", s.withSecurityHeaders(s.handleCreateExpense))
	mux.HandleFunc("/api/obligations/paid", s.withSecurityHeaders(s.handleMarkPaid))
	mux.HandleFunc("/api/settlements", s.withSecurityHeaders(s.handleSettle))
	mux.HandleFunc("/api/summary/debts", s.withSecurityHeaders(s.handleDebtSummary))
	mux.HandleFunc("/api/summary/expenses", s.withSecurityHeaders(s.handleExpenseSummary))

	return s
}

// withSecurityHeaders adds security headers and rate limiting.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := applog.ClientIP(r)

		// Mutations are rate limited per client; reads are not.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:   "rate_limited",
				Message: "rate limit exceeded, try again later",
			})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		next(w, r)
	}
}

// invalidateSummaries drops all cached summary views after a mutation.
func (s *Server) invalidateSummaries() {
	s.debtCache.Purge()
	s.expenseCache.Purge()
}

// Shutdown stops background cleanup goroutines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Simple in-memory rate limiter keyed by client IP.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes.
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed.
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute.
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}
