package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/nearby-cli/internal/domain"
)

const maxReasonBody = 200

// Classify maps a raw transport result onto the outcome taxonomy. The order of checks is the policy.
func Classify(raw domain.RawResult, now time.Time) domain.CallOutcome {
	outcome := classify(raw, now)
	outcome.StatusCode = raw.StatusCode
	return outcome
}

func classify(raw domain.RawResult, now time.Time) domain.CallOutcome {
	if raw.Restricted {
		return domain.BanDetected(reasonFromBody("account restricted", raw.Body))
	}

	if raw.ProxyErr != nil {
		if errors.Is(raw.ProxyErr, domain.ErrProxyBlocked) {
			return domain.Retryable(domain.ClassProxyBlocked, raw.ProxyErr.Error())
		}
		return domain.Retryable(domain.ClassProxy, raw.ProxyErr.Error())
	}
	if raw.Err == nil && raw.StatusCode == http.StatusProxyAuthRequired {
		return domain.Retryable(domain.ClassProxyBlocked, "proxy authentication required")
	}

	if raw.Err != nil {
		if errors.Is(raw.Err, context.Canceled) {
			return domain.Fatal(domain.ClassCanceled, raw.Err.Error())
		}
		return domain.Retryable(domain.ClassTransientNetwork, raw.Err.Error())
	}

	code := raw.StatusCode
	switch {
	case code >= 200 && code < 300:
		return domain.Success(raw.Body)
	case code == http.StatusTooManyRequests:
		outcome := domain.Retryable(domain.ClassRateLimited, reasonFromBody("rate limited", raw.Body))
		outcome.RetryAfter = parseRetryAfter(raw.Header, now)
		return outcome
	case code == http.StatusUnauthorized:
		return domain.Fatal(domain.ClassAuth, reasonFromBody("session token rejected", raw.Body))
	case code == http.StatusRequestTimeout || code >= 500:
		return domain.Retryable(domain.ClassTransientNetwork, reasonFromBody(fmt.Sprintf("http %d", code), raw.Body))
	default:
		return domain.Fatal(domain.ClassFatalCall, reasonFromBody(fmt.Sprintf("http %d", code), raw.Body))
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(header http.Header, now time.Time) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func reasonFromBody(prefix string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return prefix
	}
	if len(text) > maxReasonBody {
		text = text[:maxReasonBody] + "..."
	}
	return prefix + ": " + text
}
