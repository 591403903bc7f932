package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
	"golang.org/x/sync/semaphore"
)

const sessionBannedReason = "session banned"

// Executor runs one call to completion. The dispatcher satisfies it.
type Executor interface {
	Execute(ctx context.Context, call domain.Call) domain.CallOutcome
}

type ExecutorFunc func(ctx context.Context, call domain.Call) domain.CallOutcome

func (f ExecutorFunc) Execute(ctx context.Context, call domain.Call) domain.CallOutcome {
	return f(ctx, call)
}

// BanState reports whether the session behind the executor is banned.
type BanState interface {
	IsBanned() bool
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithResultHook registers fn to be called once per target as soon as its outcome is final.
func WithResultHook(fn func(domain.TargetID, domain.CallOutcome)) Option {
	return func(c *Coordinator) {
		c.onResult = fn
	}
}

// Coordinator fans a batch out through an executor and accounts for every target.
type Coordinator struct {
	exec     Executor
	bans     BanState
	clock    ports.Clock
	logger   *slog.Logger
	metrics  *Metrics
	onResult func(domain.TargetID, domain.CallOutcome)
}

func New(exec Executor, bans BanState, clock ports.Clock, opts ...Option) *Coordinator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	c := &Coordinator{
		exec:   exec,
		bans:   bans,
		clock:  clock,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type completion struct {
	target  domain.TargetID
	outcome domain.CallOutcome
}

// Run executes batch and returns one outcome per target. The error is reserved for malformed batches.
func (c *Coordinator) Run(ctx context.Context, batch domain.OperationBatch) (domain.BatchResult, error) {
	if err := batch.Validate(); err != nil {
		return domain.BatchResult{}, fmt.Errorf("run batch: %w", err)
	}

	started := c.clock.Now()
	result := domain.NewBatchResult(batch.Items)

	// The batch deadline stops dispatch and waiting; issued calls keep the caller's context.
	dispatchCtx := ctx
	if batch.Deadline > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, batch.Deadline)
		defer cancel()
	}

	sem := semaphore.NewWeighted(int64(batch.Concurrency))
	completions := make(chan completion, len(batch.Items))
	inFlight := make(map[domain.TargetID]domain.BatchItem, batch.Concurrency)

	record := func(target domain.TargetID, outcome domain.CallOutcome) {
		if !result.Record(target, outcome) {
			return
		}
		if outcome.Kind == domain.OutcomeBanDetected {
			result.Halted = true
		}
		c.metrics.observe(outcome)
		if c.onResult != nil {
			c.onResult(target, outcome)
		}
	}
	drain := func() {
		for {
			select {
			case done := <-completions:
				delete(inFlight, done.target)
				record(done.target, done.outcome)
			default:
				return
			}
		}
	}
	banned := func() bool {
		if !result.Halted && c.bans != nil && c.bans.IsBanned() {
			result.Halted = true
		}
		return result.Halted
	}

	next := 0
	for ; next < len(batch.Items); next++ {
		drain()
		if banned() {
			break
		}
		if err := sem.Acquire(dispatchCtx, 1); err != nil {
			break
		}
		drain()
		if banned() {
			sem.Release(1)
			break
		}

		item := batch.Items[next]
		inFlight[item.Target] = item
		go func(item domain.BatchItem) {
			defer sem.Release(1)
			call := item.Call
			call.Target = item.Target
			completions <- completion{target: item.Target, outcome: c.exec.Execute(ctx, call)}
		}(item)
	}

wait:
	for len(inFlight) > 0 {
		select {
		case done := <-completions:
			delete(inFlight, done.target)
			record(done.target, done.outcome)
		case <-dispatchCtx.Done():
			break wait
		}
	}

	// Anything still in flight is abandoned. Only idempotent calls are safe to report as retryable.
	for _, item := range batch.Items {
		if _, ok := inFlight[item.Target]; !ok {
			continue
		}
		record(item.Target, abandoned(ctx, item.Call.Idempotent))
	}

	for _, item := range batch.Items[next:] {
		record(item.Target, undispatched(ctx, result.Halted))
	}

	result.Duration = c.clock.Now().Sub(started)
	c.metrics.batch(result)
	c.logger.Info("batch finished",
		"targets", result.Counts.Total,
		"succeeded", result.Counts.Succeeded,
		"failed", result.Counts.Failed(),
		"timed_out", result.Counts.TimedOut,
		"halted", result.Halted,
		"duration", result.Duration,
	)
	return result, nil
}

func abandoned(ctx context.Context, idempotent bool) domain.CallOutcome {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return domain.Fatal(domain.ClassCanceled, "batch canceled while call in flight; outcome unknown")
	case idempotent:
		return domain.Retryable(domain.ClassTimeout, "batch deadline exceeded while call in flight")
	default:
		return domain.Fatal(domain.ClassTimeout, "batch deadline exceeded while call in flight; outcome unknown")
	}
}

func undispatched(ctx context.Context, halted bool) domain.CallOutcome {
	switch {
	case halted:
		return domain.Fatal(domain.ClassAuth, sessionBannedReason)
	case errors.Is(ctx.Err(), context.Canceled):
		return domain.Fatal(domain.ClassCanceled, "batch canceled before dispatch")
	default:
		return domain.Retryable(domain.ClassTimeout, "batch deadline exceeded before dispatch")
	}
}
