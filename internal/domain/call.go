package domain

import (
	"net/http"
	"net/url"
	"time"
)

// Request is the opaque payload of a call. Only the transport interprets it.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Call is one unit of work executed through a proxy under a valid session.
type Call struct {
	// Target correlates the call inside a batch; it is never interpreted.
	Target     TargetID
	Idempotent bool
	Request    Request
	// Timeout bounds the call including retries and proxy exhaustion waits. Zero uses the dispatcher default.
	Timeout time.Duration
}

// RawResult is what the transport hands back before classification.
type RawResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Err is a network-level failure; StatusCode is meaningless when set.
	Err error
	// ProxyErr is set when the failure happened between the client and the proxy.
	ProxyErr error
	// Restricted is the platform's account-restricted signal.
	Restricted bool
	Latency    time.Duration
}
