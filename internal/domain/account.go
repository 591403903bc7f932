package domain

import (
	"fmt"
	"strings"
)

type AccountID string

type Account struct {
	ID               AccountID
	Name             string
	Username         string
	ThirdPartyUserID string
	// PasswordRef points to a secret-store entry holding the account password.
	PasswordRef string
	// SessionRef points to a secret-store entry holding the last issued session.
	SessionRef string
	Proxies    []string
	Location   *Location
}

func (a Account) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// DisplayName falls back to the account ID when no name was configured.
func (a Account) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return string(a.ID)
}

const secretKeyPrefix = "nearby/accounts/"

// PasswordSecretKey is the secret-store key holding the account password.
func PasswordSecretKey(id AccountID) string {
	return secretKeyPrefix + string(id) + "/password"
}

// SessionSecretKey is the secret-store key holding the persisted session.
func SessionSecretKey(id AccountID) string {
	return secretKeyPrefix + string(id) + "/session"
}

func (a Account) Credentials(password string) Credentials {
	return Credentials{
		Username:         a.Username,
		Password:         password,
		ThirdPartyUserID: a.ThirdPartyUserID,
	}
}
