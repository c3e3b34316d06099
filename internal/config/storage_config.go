package config

import (
	"os"
	"path/filepath"
)

type StorageConfig interface {
	GetStoreDir() string
	GetStorePassphrase() string
	GetSecretKey() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStoreDir returns the directory holding the encrypted secret files.
func (Storage) GetStoreDir() string {
	if dir := GetEnv("SESSION_STORE_DIR", ""); dir != "" {
		return dir
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", ".go-auth-session")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "go-auth-session")
}

func (Storage) GetStorePassphrase() string {
	return GetEnv("SESSION_STORE_PASSPHRASE", "")
}

// GetSecretKey returns the secret-store key the session registry is saved under.
func (Storage) GetSecretKey() string {
	return GetEnv("SESSION_SECRET_KEY", "sessions")
}
