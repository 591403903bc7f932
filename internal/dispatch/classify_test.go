package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyDecisionTable(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		raw       domain.RawResult
		wantKind  domain.OutcomeKind
		wantClass domain.ErrorClass
	}{
		{name: "restricted wins over status", raw: domain.RawResult{StatusCode: http.StatusOK, Restricted: true}, wantKind: domain.OutcomeBanDetected, wantClass: domain.ClassBan},
		{name: "proxy dial failure", raw: domain.RawResult{ProxyErr: errors.New("dial tcp: refused")}, wantKind: domain.OutcomeRetryable, wantClass: domain.ClassProxy},
		{name: "proxy refused egress", raw: domain.RawResult{ProxyErr: fmt.Errorf("connect: %w", domain.ErrProxyBlocked)}, wantKind: domain.OutcomeRetryable, wantClass: domain.ClassProxyBlocked},
		{name: "proxy auth required", raw: domain.RawResult{StatusCode: http.StatusProxyAuthRequired}, wantKind: domain.OutcomeRetryable, wantClass: domain.ClassProxyBlocked},
		{name: "canceled", raw: domain.RawResult{Err: fmt.Errorf("do: %w", context.Canceled)}, wantKind: domain.OutcomeFatal, wantClass: domain.ClassCanceled},
		{name: "network error", raw: domain.RawResult{Err: errors.New("unexpected EOF")}, wantKind: domain.OutcomeRetryable, wantClass: domain.ClassTransientNetwork},
		{name: "ok", raw: domain.RawResult{StatusCode: http.StatusNoContent}, wantKind: domain.OutcomeSuccess, wantClass: domain.ClassNone},
		{name: "rate limited", raw: domain.RawResult{StatusCode: http.StatusTooManyRequests}, wantKind: domain.OutcomeRetryable, wantClass: domain.ClassRateLimited},
		{name: "unauthorized", raw: domain.RawResult{StatusCode: http.StatusUnauthorized}, wantKind: domain.OutcomeFatal, wantClass: domain.ClassAuth},
		{name: "request timeout", raw: domain.RawResult{StatusCode: http.StatusRequestTimeout}, wantKind: domain.OutcomeRetryable, wantClass: domain.ClassTransientNetwork},
		{name: "server error", raw: domain.RawResult{StatusCode: http.StatusInternalServerError}, wantKind: domain.OutcomeRetryable, wantClass: domain.ClassTransientNetwork},
		{name: "bad request", raw: domain.RawResult{StatusCode: http.StatusBadRequest}, wantKind: domain.OutcomeFatal, wantClass: domain.ClassFatalCall},
		{name: "not found", raw: domain.RawResult{StatusCode: http.StatusNotFound}, wantKind: domain.OutcomeFatal, wantClass: domain.ClassFatalCall},
		{name: "redirect is unexpected", raw: domain.RawResult{StatusCode: http.StatusFound}, wantKind: domain.OutcomeFatal, wantClass: domain.ClassFatalCall},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(tc.raw, now)
			assert.Equal(t, tc.wantKind, got.Kind)
			assert.Equal(t, tc.wantClass, got.Class)
			assert.Equal(t, tc.raw.StatusCode, got.StatusCode)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	header := func(v string) http.Header {
		h := http.Header{}
		h.Set("Retry-After", v)
		return h
	}

	assert.Equal(t, 30*time.Second, parseRetryAfter(header("30"), now))
	assert.Equal(t, 2*time.Minute, parseRetryAfter(header(now.Add(2*time.Minute).Format(http.TimeFormat)), now))
	assert.Zero(t, parseRetryAfter(header("-5"), now))
	assert.Zero(t, parseRetryAfter(header("soon"), now))
	assert.Zero(t, parseRetryAfter(http.Header{}, now))
}

func TestClassifyTruncatesLongBodies(t *testing.T) {
	t.Parallel()

	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	got := Classify(domain.RawResult{StatusCode: http.StatusBadRequest, Body: body}, time.Now())
	assert.Less(t, len(got.Reason), 260)
	assert.Contains(t, got.Reason, "http 400")
}
