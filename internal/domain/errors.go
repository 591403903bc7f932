package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrSecretNotFound  = errors.New("secret not found")
	ErrSessionNotFound = errors.New("session not found")

	ErrAuth             = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not logged in")
	ErrBanned           = errors.New("account banned")
	ErrProxy            = errors.New("proxy failure")
	ErrProxyExhausted   = errors.New("no eligible proxy endpoint")
	ErrProxyBlocked     = errors.New("proxy refused egress")
	ErrRateLimited      = errors.New("rate limited")
	ErrTransientNetwork = errors.New("transient network failure")
	ErrFatalCall        = errors.New("call rejected")
	ErrTimeout          = errors.New("call timed out")
	ErrDiscarded        = errors.New("call outcome discarded")
	ErrCanceled         = errors.New("call canceled")
	ErrInvalidBatch     = errors.New("invalid batch")
)
