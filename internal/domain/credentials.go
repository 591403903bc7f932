package domain

import (
	"fmt"
	"strings"
)

// Credentials are handed to the session manager for a single login attempt and never mutated.
type Credentials struct {
	Username         string
	Password         string
	ThirdPartyUserID string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if c.Password == "" && strings.TrimSpace(c.ThirdPartyUserID) == "" {
		return fmt.Errorf("password or third-party user id is required")
	}
	return nil
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username:%q}", c.Username)
}
