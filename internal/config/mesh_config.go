package config

import "time"

type MeshConfig interface {
	GetMeshClientID() string
	GetMeshClientSecret() string
	GetMeshAPIBase() string
	GetMeshTokenURL() string
	GetLinkTokenTTL() time.Duration
	GetSandboxSigningKey() string
	GetDefaultProducts() []string
}

type Mesh struct{}

var _ MeshConfig = Mesh{}

func (Mesh) GetMeshClientID() string {
	return GetEnv("MESH_CLIENT_ID", "")
}

func (Mesh) GetMeshClientSecret() string {
	return GetEnv("MESH_CLIENT_SECRET", "")
}

// GetMeshAPIBase returns the vendor aggregation API origin. The sandbox
// environment is the default so a misconfigured deployment never touches
// production accounts.
func (Mesh) GetMeshAPIBase() string {
	return GetEnv("MESH_API_BASE", "https://sandbox-integration-api.meshconnect.com")
}

func (Mesh) GetMeshTokenURL() string {
	return GetEnv("MESH_TOKEN_URL", "")
}

// Link tokens are single-use and short lived
func (Mesh) GetLinkTokenTTL() time.Duration {
	return 15 * time.Minute
}

// GetSandboxSigningKey returns the HMAC key used to mint local link tokens
// when no vendor credentials are configured. Empty disables sandbox mode.
func (Mesh) GetSandboxSigningKey() string {
	return GetEnv("SANDBOX_SIGNING_KEY", "")
}

func (Mesh) GetDefaultProducts() []string {
	return []string{"connect"}
}
