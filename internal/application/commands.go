package application

import "github.com/bnema/nearby-cli/internal/domain"

type AddAccountCommand struct {
	ID               domain.AccountID
	Name             string
	Username         string
	ThirdPartyUserID string
	// Password is stored in the secret store, never in accounts.toml. Empty keeps the current one.
	Password string
	Proxies  []string
	Location *domain.Location
}

// NearbyQuery filters profile discovery. Zero values fall back to the platform defaults.
type NearbyQuery struct {
	DistanceLimit int
	Limit         int
	OnlineOnly    bool
	FavoritesOnly bool
}

const (
	DefaultNearbyDistance = 5000
	DefaultNearbyLimit    = 100
	DefaultMessageLimit   = 50
)

func (q NearbyQuery) withDefaults() NearbyQuery {
	if q.DistanceLimit <= 0 {
		q.DistanceLimit = DefaultNearbyDistance
	}
	if q.Limit <= 0 {
		q.Limit = DefaultNearbyLimit
	}
	return q
}

// ImageUpload is one image handed to the platform as-is.
type ImageUpload struct {
	Name        string
	ContentType string
	Data        []byte
}
