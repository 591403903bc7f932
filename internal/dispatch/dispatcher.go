package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Sessions is the part of the session manager the dispatcher relies on.
type Sessions interface {
	EnsureValid(ctx context.Context) (domain.SessionToken, error)
	MarkBanned(reason string)
	MarkExpired(token domain.SessionToken)
	IsBanned() bool
	Generation() uint64
}

// Proxies is the part of the proxy pool the dispatcher relies on.
type Proxies interface {
	Select() (domain.ProxyEndpoint, error)
	Report(address string, outcome domain.CallOutcome)
}

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RateLimitFloor is the minimum wait after a rate-limit response, whatever Retry-After says.
	RateLimitFloor     time.Duration
	ExhaustedBackoff   time.Duration
	ExhaustedMaxWait   time.Duration
	DefaultCallTimeout time.Duration
	// RequestsPerSecond paces transport attempts for one account. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		InitialBackoff:     500 * time.Millisecond,
		MaxBackoff:         10 * time.Second,
		RateLimitFloor:     2 * time.Second,
		ExhaustedBackoff:   time.Second,
		ExhaustedMaxWait:   15 * time.Second,
		DefaultCallTimeout: time.Minute,
		RequestsPerSecond:  2,
		Burst:              2,
	}
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// WithSleep replaces the backoff wait. The function must return early with ctx.Err() when ctx ends.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// Dispatcher executes single calls under a valid session through a selected proxy.
type Dispatcher struct {
	sessions  Sessions
	proxies   Proxies
	transport ports.Transport
	clock     ports.Clock
	cfg       Config
	limiter   *rate.Limiter
	logger    *slog.Logger
	metrics   *Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(sessions Sessions, proxies Proxies, transport ports.Transport, clock ports.Clock, cfg Config, opts ...Option) *Dispatcher {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.DefaultCallTimeout <= 0 {
		cfg.DefaultCallTimeout = DefaultConfig().DefaultCallTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	d := &Dispatcher{
		sessions:  sessions,
		proxies:   proxies,
		transport: transport,
		clock:     clock,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    slog.Default(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs call to completion and always returns a classified outcome.
func (d *Dispatcher) Execute(ctx context.Context, call domain.Call) domain.CallOutcome {
	timeout := call.Timeout
	if timeout <= 0 {
		timeout = d.cfg.DefaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	generation := d.sessions.Generation()
	token, err := d.sessions.EnsureValid(ctx)
	if err != nil {
		return sessionOutcome(err)
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = d.cfg.InitialBackoff
	retry.MaxInterval = d.cfg.MaxBackoff
	retry.MaxElapsedTime = 0
	retry.Reset()

	attempts := 0
	for {
		if attempts > 0 && d.sessions.IsBanned() {
			return withAttempts(domain.Fatal(domain.ClassAuth, "session banned"), attempts)
		}

		endpoint, err := d.selectEndpoint(ctx)
		if err != nil {
			return withAttempts(contextOutcome(ctx, domain.Fatal(domain.ClassProxy, err.Error())), attempts)
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return withAttempts(contextOutcome(ctx, domain.Retryable(domain.ClassTimeout, "rate limiter wait exceeded call deadline")), attempts)
		}

		attempts++
		started := d.clock.Now()
		raw := d.transport.Do(ctx, endpoint, token, call.Request)
		outcome := Classify(raw, d.clock.Now())
		if !outcome.OK() && errors.Is(ctx.Err(), context.DeadlineExceeded) && outcome.Class == domain.ClassTransientNetwork {
			outcome = domain.Retryable(domain.ClassTimeout, "call deadline exceeded")
		}
		outcome.Attempts = attempts
		outcome.Endpoint = endpoint.Address
		d.metrics.observe(outcome, d.clock.Now().Sub(started).Seconds())

		d.proxies.Report(endpoint.Address, outcome)

		if d.sessions.Generation() != generation {
			// A ban outlives the session it was observed on.
			if outcome.Kind == domain.OutcomeBanDetected {
				d.sessions.MarkBanned(outcome.Reason)
				return outcome
			}
			d.metrics.discarded()
			d.logger.Debug("discarding outcome of stale session", "target", call.Target, "outcome", outcome.String())
			discarded := domain.Fatal(domain.ClassDiscarded, "session changed while the call was in flight")
			discarded.Attempts = attempts
			discarded.Endpoint = endpoint.Address
			return discarded
		}

		switch outcome.Kind {
		case domain.OutcomeSuccess:
			return outcome
		case domain.OutcomeBanDetected:
			d.sessions.MarkBanned(outcome.Reason)
			return outcome
		case domain.OutcomeFatal:
			if outcome.Class == domain.ClassAuth {
				d.sessions.MarkExpired(token)
			}
			return outcome
		}

		if !call.Idempotent || attempts > d.cfg.MaxRetries {
			return outcome
		}

		wait := retry.NextBackOff()
		if outcome.Class == domain.ClassRateLimited {
			wait = max(wait, outcome.RetryAfter, d.cfg.RateLimitFloor)
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return outcome
		}

		d.logger.Debug("retrying call",
			"target", call.Target,
			"attempt", attempts,
			"wait", wait,
			"outcome", outcome.String(),
			"proxy", domain.RedactProxyAddress(endpoint.Address),
		)
		if err := d.sleep(ctx, wait); err != nil {
			return outcome
		}
		d.metrics.retry()
	}
}

// selectEndpoint waits with backoff while the pool is exhausted, up to the call deadline.
func (d *Dispatcher) selectEndpoint(ctx context.Context) (domain.ProxyEndpoint, error) {
	var wait *backoff.ExponentialBackOff
	for {
		endpoint, err := d.proxies.Select()
		if err == nil {
			return endpoint, nil
		}
		if !errors.Is(err, domain.ErrProxyExhausted) {
			return domain.ProxyEndpoint{}, fmt.Errorf("select proxy: %w", err)
		}
		d.metrics.exhausted()

		if wait == nil {
			wait = backoff.NewExponentialBackOff()
			wait.InitialInterval = d.cfg.ExhaustedBackoff
			wait.MaxInterval = d.cfg.ExhaustedMaxWait
			wait.MaxElapsedTime = 0
			wait.Reset()
		}
		if err := d.sleep(ctx, wait.NextBackOff()); err != nil {
			return domain.ProxyEndpoint{}, fmt.Errorf("%w before call deadline", domain.ErrProxyExhausted)
		}
	}
}

func sessionOutcome(err error) domain.CallOutcome {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.Fatal(domain.ClassCanceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Retryable(domain.ClassTimeout, err.Error())
	case errors.Is(err, domain.ErrBanned):
		return domain.Fatal(domain.ClassAuth, "session banned")
	default:
		return domain.Fatal(domain.ClassAuth, err.Error())
	}
}

// contextOutcome prefers the caller's cancellation over fallback when ctx is done.
func contextOutcome(ctx context.Context, fallback domain.CallOutcome) domain.CallOutcome {
	if errors.Is(ctx.Err(), context.Canceled) {
		return domain.Fatal(domain.ClassCanceled, ctx.Err().Error())
	}
	return fallback
}

func withAttempts(outcome domain.CallOutcome, attempts int) domain.CallOutcome {
	outcome.Attempts = attempts
	return outcome
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
