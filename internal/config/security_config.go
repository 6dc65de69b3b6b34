package config

import "time"

type SecurityConfig interface {
	GetAPIKeyHash() string
	GetOIDCIssuer() string
	GetOIDCAudience() string
	GetMaxSessionAge() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetAPIKeyHash returns the bcrypt hash requests must match via X-Api-Key.
// Empty disables the check.
func (Security) GetAPIKeyHash() string {
	return GetEnv("API_KEY_BCRYPT_HASH", "")
}

// GetOIDCIssuer returns the issuer URL for bearer-token verification.
// Empty disables bearer auth.
func (Security) GetOIDCIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Security) GetOIDCAudience() string {
	return GetEnv("OIDC_AUDIENCE", "")
}

func (Security) GetMaxSessionAge() time.Duration {
	return 30 * time.Minute // Link sessions are swept after 30 minutes
}
