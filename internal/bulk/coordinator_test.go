package bulk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type banFlag struct {
	banned atomic.Bool
}

func (b *banFlag) IsBanned() bool {
	return b.banned.Load()
}

func batchOf(n int, concurrency int, idempotent bool) domain.OperationBatch {
	items := make([]domain.BatchItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, domain.BatchItem{
			Target: domain.TargetID(fmt.Sprintf("t%d", i)),
			Call:   domain.Call{Idempotent: idempotent},
		})
	}
	return domain.OperationBatch{Items: items, Concurrency: concurrency}
}

func TestRunRejectsInvalidBatch(t *testing.T) {
	t.Parallel()

	c := New(ExecutorFunc(func(context.Context, domain.Call) domain.CallOutcome {
		t.Fatal("no call may run for an invalid batch")
		return domain.CallOutcome{}
	}), nil, nil)

	_, err := c.Run(context.Background(), batchOf(2, 0, true))
	assert.ErrorIs(t, err, domain.ErrInvalidBatch)
}

func TestRunAccountsForEveryTarget(t *testing.T) {
	t.Parallel()

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	exec := ExecutorFunc(func(_ context.Context, call domain.Call) domain.CallOutcome {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)

		var idx int
		_, _ = fmt.Sscanf(string(call.Target), "t%d", &idx)
		switch idx % 3 {
		case 0:
			return domain.Success(nil)
		case 1:
			return domain.Retryable(domain.ClassTransientNetwork, "reset")
		default:
			return domain.Fatal(domain.ClassFatalCall, "400")
		}
	})

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	var hooked atomic.Int32
	c := New(exec, &banFlag{}, nil, WithMetrics(metrics), WithResultHook(func(domain.TargetID, domain.CallOutcome) {
		hooked.Add(1)
	}))

	const k = 50
	result, err := c.Run(context.Background(), batchOf(k, 4, true))
	require.NoError(t, err)

	assert.Len(t, result.Outcomes, k)
	assert.Equal(t, k, result.Counts.Total)
	assert.Equal(t, k, result.Counts.Succeeded+result.Counts.Failed())
	assert.Equal(t, 16, result.Counts.Succeeded)
	assert.Equal(t, 17, result.Counts.Retryable)
	assert.Equal(t, 17, result.Counts.Fatal)
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Equal(t, int32(k), hooked.Load())
	assert.Equal(t, 16.0, testutil.ToFloat64(metrics.Targets.WithLabelValues("success")))
	assert.False(t, result.Halted)
}

func TestRunRecordsTimeoutsWithoutWaitingForAbandonedCalls(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	exec := ExecutorFunc(func(_ context.Context, call domain.Call) domain.CallOutcome {
		if call.Target == "fast" {
			return domain.Success(nil)
		}
		<-release
		return domain.Success(nil)
	})

	batch := domain.OperationBatch{
		Concurrency: 3,
		Deadline:    30 * time.Millisecond,
		Items: []domain.BatchItem{
			{Target: "fast", Call: domain.Call{Idempotent: true}},
			{Target: "slow-get", Call: domain.Call{Idempotent: true}},
			{Target: "slow-send", Call: domain.Call{Idempotent: false}},
			{Target: "slow-later", Call: domain.Call{Idempotent: true}},
			{Target: "never", Call: domain.Call{Idempotent: false}},
		},
	}

	started := time.Now()
	result, err := New(exec, &banFlag{}, nil).Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Less(t, time.Since(started), time.Second)

	require.Len(t, result.Outcomes, 5)
	assert.True(t, result.Outcomes["fast"].OK())

	assert.Equal(t, domain.OutcomeRetryable, result.Outcomes["slow-get"].Kind)
	assert.Equal(t, domain.ClassTimeout, result.Outcomes["slow-get"].Class)
	assert.Equal(t, domain.OutcomeFatal, result.Outcomes["slow-send"].Kind, "an abandoned side-effecting call has an unknown outcome")
	assert.Equal(t, domain.ClassTimeout, result.Outcomes["slow-send"].Class)

	for _, target := range []domain.TargetID{"slow-later", "never"} {
		outcome := result.Outcomes[target]
		assert.Equal(t, domain.ClassTimeout, outcome.Class, target)
	}
	assert.Equal(t, 4, result.Counts.TimedOut)
	assert.Equal(t, 5, result.Counts.Succeeded+result.Counts.Failed())
}

func TestRunStopsDispatchWhenBanned(t *testing.T) {
	t.Parallel()

	bans := &banFlag{}
	var calls atomic.Int32
	exec := ExecutorFunc(func(_ context.Context, call domain.Call) domain.CallOutcome {
		calls.Add(1)
		if call.Target == "t2" {
			bans.banned.Store(true)
			return domain.BanDetected("account restricted")
		}
		return domain.Success(nil)
	})

	result, err := New(exec, bans, nil).Run(context.Background(), batchOf(5, 1, false))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, result.Halted)
	assert.True(t, result.Outcomes["t1"].OK())
	assert.Equal(t, domain.OutcomeBanDetected, result.Outcomes["t2"].Kind)
	for _, target := range []domain.TargetID{"t3", "t4", "t5"} {
		assert.Equal(t, domain.OutcomeFatal, result.Outcomes[target].Kind)
		assert.Equal(t, "session banned", result.Outcomes[target].Reason)
	}
	assert.Equal(t, []domain.TargetID{"t1"}, result.Succeeded())
}

func TestRunOnBannedSessionDispatchesNothing(t *testing.T) {
	t.Parallel()

	bans := &banFlag{}
	bans.banned.Store(true)
	exec := ExecutorFunc(func(context.Context, domain.Call) domain.CallOutcome {
		t.Fatal("banned session must not dispatch")
		return domain.CallOutcome{}
	})

	result, err := New(exec, bans, nil).Run(context.Background(), batchOf(3, 2, true))
	require.NoError(t, err)
	assert.True(t, result.Halted)
	assert.Equal(t, 3, result.Counts.Fatal)
}

func TestRunCanceledBeforeDispatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var mu sync.Mutex
	dispatched := 0
	exec := ExecutorFunc(func(context.Context, domain.Call) domain.CallOutcome {
		mu.Lock()
		dispatched++
		mu.Unlock()
		return domain.Success(nil)
	})

	result, err := New(exec, &banFlag{}, nil).Run(ctx, batchOf(4, 2, true))
	require.NoError(t, err)

	assert.Len(t, result.Outcomes, 4)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, result.Counts.Succeeded+result.Counts.Failed())
	assert.Equal(t, dispatched, result.Counts.Succeeded)
}

func TestRunCanceledWhileCallInFlight(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	exec := ExecutorFunc(func(context.Context, domain.Call) domain.CallOutcome {
		close(started)
		<-release
		return domain.Success(nil)
	})
	go func() {
		<-started
		cancel()
	}()

	result, err := New(exec, &banFlag{}, nil).Run(ctx, batchOf(1, 1, true))
	require.NoError(t, err)

	outcome := result.Outcomes["t1"]
	assert.Equal(t, domain.OutcomeFatal, outcome.Kind)
	assert.Equal(t, domain.ClassCanceled, outcome.Class)
	assert.Contains(t, outcome.Reason, "canceled")
	assert.Equal(t, 1, result.Counts.Total)
}
