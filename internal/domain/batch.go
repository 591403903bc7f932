package domain

import (
	"fmt"
	"strings"
	"time"
)

type TargetID string

type BatchItem struct {
	Target TargetID
	Call   Call
}

// OperationBatch is an ordered list of per-target calls with a concurrency bound and a total deadline.
type OperationBatch struct {
	Items       []BatchItem
	Concurrency int
	// Deadline bounds the whole batch. Zero means no batch-level deadline.
	Deadline time.Duration
}

func (b OperationBatch) Validate() error {
	if b.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidBatch, b.Concurrency)
	}
	if b.Deadline < 0 {
		return fmt.Errorf("%w: deadline must not be negative", ErrInvalidBatch)
	}
	seen := make(map[TargetID]struct{}, len(b.Items))
	for i, item := range b.Items {
		if strings.TrimSpace(string(item.Target)) == "" {
			return fmt.Errorf("%w: item %d has an empty target id", ErrInvalidBatch, i)
		}
		if _, ok := seen[item.Target]; ok {
			return fmt.Errorf("%w: duplicate target id %q", ErrInvalidBatch, item.Target)
		}
		seen[item.Target] = struct{}{}
	}
	return nil
}

type BatchCounts struct {
	Total     int
	Succeeded int
	Retryable int
	Fatal     int
	Banned    int
	TimedOut  int
}

// Failed counts every non-success outcome regardless of classification.
func (c BatchCounts) Failed() int {
	return c.Retryable + c.Fatal + c.Banned
}

// BatchResult holds exactly one outcome per batch target.
type BatchResult struct {
	Outcomes map[TargetID]CallOutcome
	// Order lists target ids in batch order.
	Order    []TargetID
	Counts   BatchCounts
	Duration time.Duration
	// Halted is set when dispatch stopped early because the session was banned.
	Halted bool
}

func NewBatchResult(items []BatchItem) BatchResult {
	order := make([]TargetID, 0, len(items))
	for _, item := range items {
		order = append(order, item.Target)
	}
	return BatchResult{
		Outcomes: make(map[TargetID]CallOutcome, len(items)),
		Order:    order,
	}
}

// Record stores the outcome for target unless one was already recorded.
func (r *BatchResult) Record(target TargetID, outcome CallOutcome) bool {
	if _, ok := r.Outcomes[target]; ok {
		return false
	}
	r.Outcomes[target] = outcome
	r.Counts.Total++
	switch outcome.Kind {
	case OutcomeSuccess:
		r.Counts.Succeeded++
	case OutcomeRetryable:
		r.Counts.Retryable++
	case OutcomeFatal:
		r.Counts.Fatal++
	case OutcomeBanDetected:
		r.Counts.Banned++
	}
	if outcome.Class == ClassTimeout {
		r.Counts.TimedOut++
	}
	return true
}

// Succeeded lists targets with a successful outcome in batch order.
func (r BatchResult) Succeeded() []TargetID {
	targets := make([]TargetID, 0, r.Counts.Succeeded)
	for _, target := range r.Order {
		if r.Outcomes[target].OK() {
			targets = append(targets, target)
		}
	}
	return targets
}

// Failed lists targets with a non-success outcome in batch order.
func (r BatchResult) Failed() []TargetID {
	targets := make([]TargetID, 0, r.Counts.Failed())
	for _, target := range r.Order {
		if outcome, ok := r.Outcomes[target]; ok && !outcome.OK() {
			targets = append(targets, target)
		}
	}
	return targets
}
