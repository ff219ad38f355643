package log

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one log record in the wire shape the remote sink expects.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	UserID    string         `json:"user_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Sink ships a batch of entries to wherever remote logs go.
type Sink interface {
	Ship(ctx context.Context, entries []Entry) error
}

// ShipperConfig controls batching behavior.
type ShipperConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultShipperConfig mirrors the original client defaults: batches of 10,
// flushed every 5 seconds.
func DefaultShipperConfig() ShipperConfig {
	return ShipperConfig{BatchSize: 10, FlushInterval: 5 * time.Second}
}

// Shipper queues entries and sends them to the sink in batches: when the
// queue reaches the batch size, on a timer, and once more on shutdown.
// Shipping failures are logged locally and the batch is dropped; remote
// logging must never take the application down with it.
type Shipper struct {
	mu     sync.Mutex
	queue  []Entry
	userID string

	sink   Sink
	config ShipperConfig
	local  *slog.Logger
}

// NewShipper builds a shipper. local is used for the shipper's own
// diagnostics and must not itself route through this shipper.
func NewShipper(sink Sink, config ShipperConfig, local *slog.Logger) *Shipper {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultShipperConfig().BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultShipperConfig().FlushInterval
	}
	if local == nil {
		local = slog.Default()
	}
	return &Shipper{
		sink:   sink,
		config: config,
		local:  local,
	}
}

// SetUser attaches a user id to subsequently queued entries. Called after
// login; cleared with an empty id on logout.
func (s *Shipper) SetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// Enqueue adds an entry, flushing asynchronously when the batch is full.
func (s *Shipper) Enqueue(e Entry) {
	s.mu.Lock()
	if e.UserID == "" {
		e.UserID = s.userID
	}
	s.queue = append(s.queue, e)
	full := len(s.queue) >= s.config.BatchSize
	s.mu.Unlock()

	if full {
		go s.Flush(context.Background())
	}
}

// Flush sends everything currently queued. Safe to call concurrently; a
// failed batch is dropped after logging.
func (s *Shipper) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.sink.Ship(ctx, batch); err != nil {
		s.local.Warn("Failed to ship log batch", FieldComponent, ComponentShipper,
			"entries", len(batch), FieldError, err.Error())
	}
}

// Run flushes on an interval until the context is canceled, then performs a
// final flush so shutdown does not lose queued entries.
func (s *Shipper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush(ctx)
		case <-ctx.Done():
			s.Flush(context.Background())
			return
		}
	}
}

// Pending returns the number of queued entries.
func (s *Shipper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ShippingHandler is a slog.Handler decorator that mirrors every record to a
// Shipper in addition to the wrapped handler.
type ShippingHandler struct {
	inner   slog.Handler
	shipper *Shipper
}

func NewShippingHandler(inner slog.Handler, shipper *Shipper) *ShippingHandler {
	return &ShippingHandler{inner: inner, shipper: shipper}
}

func (h *ShippingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ShippingHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})
	h.shipper.Enqueue(Entry{
		Timestamp: r.Time.UTC().Format(time.RFC3339),
		Level:     r.Level.String(),
		Source:    "client",
		Message:   r.Message,
		Context:   fields,
	})
	return h.inner.Handle(ctx, r)
}

func (h *ShippingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ShippingHandler{inner: h.inner.WithAttrs(attrs), shipper: h.shipper}
}

func (h *ShippingHandler) WithGroup(name string) slog.Handler {
	return &ShippingHandler{inner: h.inner.WithGroup(name), shipper: h.shipper}
}
