package config

type Config interface {
	EnvConfig
	AuthServiceConfig
	FlowConfig
	ValidationConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type mainConfig struct {
	EnvVars
	AuthService
	Flow
	Validation
	Storage
}

func New() Config {
	return mainConfig{}
}
