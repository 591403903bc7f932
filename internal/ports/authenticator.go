package ports

import (
	"context"

	"github.com/bnema/nearby-cli/internal/domain"
)

// Authenticator talks to the platform's auth endpoints. Implementations return an error wrapping
// domain.ErrBanned when the platform refuses the account outright.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.AuthGrant, error)
	Refresh(ctx context.Context, session domain.Session) (domain.AuthGrant, error)
	Logout(ctx context.Context, session domain.Session) error
}
