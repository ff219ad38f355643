package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"fintrack/internal/log"
	"fintrack/internal/manager"
)

// Server exposes the local JSON dashboard over the manager's state. It
// binds to localhost; there is no authentication layer of its own, the
// backend credentials never pass through it.
type Server struct {
	http.Server
	manager     *manager.Manager
	logger      *log.Logger
	rateLimiter *ipRateLimiter

	shutdownOnce sync.Once
}

// ipRateLimiter keeps one token bucket per client IP and evicts stale
// entries periodically.
type ipRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter

	limit rate.Limit
	burst int

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perMinute int) *ipRateLimiter {
	rl := &ipRateLimiter{
		clients:     make(map[string]*clientLimiter),
		limit:       rate.Limit(float64(perMinute) / 60.0),
		burst:       perMinute,
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *ipRateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, exists := rl.clients[clientIP]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientIP] = client
	}
	client.lastSeen = time.Now()
	return client.limiter.Allow()
}

func (rl *ipRateLimiter) startCleanup() {
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

// cleanupStaleEntries removes clients idle for more than 10 minutes.
func (rl *ipRateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *ipRateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, m *manager.Manager, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		manager:     m,
		logger:      logger.WithComponent(log.ComponentServer),
		rateLimiter: newIPRateLimiter(60),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("GET /api/view", s.wrap(s.handleView))
	mux.HandleFunc("GET /api/summary", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /api/wallets", s.wrap(s.handleListWallets))
	mux.HandleFunc("POST /api/wallets", s.wrap(s.handleCreateWallet))
	mux.HandleFunc("DELETE /api/wallets/{id}", s.wrap(s.handleDeleteWallet))
	mux.HandleFunc("POST /api/wallets/select", s.wrap(s.handleSelectWallet))
	mux.HandleFunc("POST /api/page", s.wrap(s.handleChangePage))
	mux.HandleFunc("POST /api/rows", s.wrap(s.handleChangeRows))
	mux.HandleFunc("GET /api/stats", s.wrap(s.handleSelectedStats))
	mux.HandleFunc("GET /api/stats/{walletID}", s.wrap(s.handleWalletStats))
	mux.HandleFunc("GET /api/assets", s.wrap(s.handleAssets))
	mux.HandleFunc("POST /api/assets/values", s.wrap(s.handleSetAssetValue))
	mux.HandleFunc("DELETE /api/assets/values/{name}", s.wrap(s.handleDeleteAssetValue))
	mux.HandleFunc("GET /api/growth", s.wrap(s.handleGrowth))
	mux.HandleFunc("POST /api/upload", s.wrap(s.handleUpload))
	mux.HandleFunc("POST /api/detect-currency", s.wrap(s.handleDetectCurrency))
	mux.HandleFunc("GET /api/errors", s.wrap(s.handleTransactionErrors))
	mux.HandleFunc("GET /api/funds", s.wrap(s.handleFunds))
	mux.HandleFunc("GET /api/funds/{id}/values", s.wrap(s.handleFundValues))
	mux.HandleFunc("POST /api/funds/{id}/values", s.wrap(s.handleAddFundValue))
	mux.HandleFunc("POST /api/refresh", s.wrap(s.handleRefresh))
	mux.HandleFunc("POST /api/errors/dismiss", s.wrap(s.handleDismissError))

	return s
}

// wrap adds security headers, rate limiting on mutating methods, a request
// id and request logging.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(r.Context(), "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the HTTP server and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready only when the remote backend answers its health
// probe; the dashboard is useless without it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.manager.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "backend unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
