package config

type Config interface {
	EnvConfig
	CorsConfig
	MeshConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Mesh
	Security
}

func New() Config {
	return mainConfig{}
}
