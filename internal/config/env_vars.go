package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelVar    = "LOG_LEVEL"
	metricsAddrVar = "METRICS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Auth Session")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetMetricsAddr returns the listen address for the prometheus endpoint. Empty disables it.
func (EnvVars) GetMetricsAddr() string {
	return GetEnv(metricsAddrVar, "")
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("var", envVar).Str("value", value).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func GetBool(envVar string, defaultValue bool) bool {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("Invalid boolean, using default")
		return defaultValue
	}
	return b
}

func GetInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("Invalid integer, using default")
		return defaultValue
	}
	return i
}
