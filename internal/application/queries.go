package application

import "github.com/bnema/nearby-cli/internal/domain"

// AccountStatus is what status views render for one account.
type AccountStatus struct {
	Account    domain.Account
	LoggedIn   bool
	Message    string
	Session    domain.Session
	Connection domain.ConnectionStatus
	Proxies    domain.ProxyStats
}

// BulkReport is a batch result keyed back to the caller's inputs.
type BulkReport struct {
	Result domain.BatchResult
	// Labels maps batch targets to what the caller passed in, such as file names.
	Labels map[domain.TargetID]string
}
