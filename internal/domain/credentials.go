package domain

import "strings"

// Credentials are the exchange API key pair.
// Loaded once at startup and never mutated afterwards.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Validate fails closed when either half of the key pair is blank
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.APISecret) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// String keeps secrets out of logs
func (c Credentials) String() string {
	return "Credentials{APIKey:" + mask(c.APIKey) + ", APISecret:***}"
}

func mask(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "***"
}
