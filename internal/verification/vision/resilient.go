package vision

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docverify/internal/platform/logger"
	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/ports"
	"docverify/pkg/platform/circuit"
)

// Operation labels used in logs, metrics and error messages.
const (
	OpClassify      = "classify"
	OpExtract       = "extract"
	OpAssessQuality = "assess_quality"
)

// Defaults applied when the corresponding option is not given.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultBackoff  = 250 * time.Millisecond
	DefaultCooldown = 30 * time.Second
)

// Resilient decorates a VisionPort with a per-call timeout, bounded retries
// for retryable errors and a circuit breaker. While the breaker is open,
// calls fail fast with ErrorProviderOutage until the cooldown elapses; the
// next call is then let through as a probe.
type Resilient struct {
	next       ports.VisionPort
	providerID string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	cooldown   time.Duration
	breaker    *circuit.Breaker
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	openedAt time.Time
}

// Option configures Resilient.
type Option func(*Resilient)

func WithTimeout(d time.Duration) Option {
	return func(r *Resilient) { r.timeout = d }
}

// WithRetries sets how many times a retryable failure is retried.
func WithRetries(n int, backoff time.Duration) Option {
	return func(r *Resilient) {
		r.maxRetries = n
		r.backoff = backoff
	}
}

func WithBreaker(b *circuit.Breaker, cooldown time.Duration) Option {
	return func(r *Resilient) {
		r.breaker = b
		r.cooldown = cooldown
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resilient) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resilient) { r.metrics = m }
}

// WithClock overrides time for tests: now drives the breaker cooldown and
// sleep replaces the retry backoff wait.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resilient) {
		r.now = now
		r.sleep = sleep
	}
}

// NewResilient wraps next. providerID names the backend in errors and logs.
func NewResilient(next ports.VisionPort, providerID string, opts ...Option) *Resilient {
	r := &Resilient{
		next:       next,
		providerID: providerID,
		timeout:    DefaultTimeout,
		backoff:    DefaultBackoff,
		cooldown:   DefaultCooldown,
		logger:     logger.Discard(),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.breaker == nil {
		r.breaker = circuit.New("vision:" + providerID)
	}
	return r
}

func (r *Resilient) Classify(ctx context.Context, image []byte) (string, error) {
	return call(ctx, r, OpClassify, func(ctx context.Context) (string, error) {
		return r.next.Classify(ctx, image)
	})
}

func (r *Resilient) Extract(ctx context.Context, image []byte, instruction string) (ports.Extraction, error) {
	return call(ctx, r, OpExtract, func(ctx context.Context) (ports.Extraction, error) {
		return r.next.Extract(ctx, image, instruction)
	})
}

func (r *Resilient) AssessQuality(ctx context.Context, image []byte) (quality.Assessment, error) {
	return call(ctx, r, OpAssessQuality, func(ctx context.Context) (quality.Assessment, error) {
		return r.next.AssessQuality(ctx, image)
	})
}

func call[T any](ctx context.Context, r *Resilient, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !r.allow() {
		r.metrics.IncrementCapabilityError(op, string(ErrorProviderOutage))
		return zero, NewProviderError(ErrorProviderOutage, r.providerID, op+" short-circuited", ErrCircuitOpen)
	}

	var lastErr *ProviderError
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, time.Duration(attempt)*r.backoff); err != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		out, err := fn(callCtx)
		cancel()
		if err == nil {
			r.recordSuccess(ctx)
			return out, nil
		}

		lastErr = Classify(r.providerID, op, err)
		r.metrics.IncrementCapabilityError(op, string(lastErr.Category))
		r.logger.WarnContext(ctx, "vision call failed",
			"operation", op,
			"attempt", attempt+1,
			"category", lastErr.Category,
			"error", err,
		)
		if !lastErr.Retryable || ctx.Err() != nil {
			break
		}
	}

	r.recordFailure(ctx, lastErr)
	return zero, lastErr
}

// allow reports whether a call may go through. An open breaker admits a
// probe once the cooldown since it opened has elapsed.
func (r *Resilient) allow() bool {
	if !r.breaker.IsOpen() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Sub(r.openedAt) >= r.cooldown
}

func (r *Resilient) recordSuccess(ctx context.Context) {
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.metrics.IncrementBreakerTransition(circuit.StateClosed.String())
		r.logger.InfoContext(ctx, "vision circuit closed", "breaker", r.breaker.Name())
	}
}

// recordFailure counts failures that say something about the backend.
// Caller cancellations and malformed requests do not move the breaker.
func (r *Resilient) recordFailure(ctx context.Context, err *ProviderError) {
	if err == nil || err.Category == ErrorCanceled || err.Category == ErrorBadData {
		return
	}
	wasOpen := r.breaker.IsOpen()
	_, change := r.breaker.RecordFailure()
	if change.Opened || wasOpen {
		// A failed probe restarts the cooldown.
		r.mu.Lock()
		r.openedAt = r.now()
		r.mu.Unlock()
	}
	if change.Opened {
		r.metrics.IncrementBreakerTransition(circuit.StateOpen.String())
		r.logger.WarnContext(ctx, "vision circuit opened",
			"breaker", r.breaker.Name(),
			"category", err.Category,
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
