// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyStatus(&cfg.Status); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	return verifyStorage(&cfg.Storage)
}

func verifyStatus(cfg *StatusSection) error {
	if cfg.Addr == "" {
		return errors.New("status.addr is required")
	}
	if cfg.RateLimitPerSecond < 0 || cfg.RateLimitBurst < 0 {
		return errors.New("status rate limits must not be negative")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.SizeLimit < 0 {
		return errors.New("session.size_limit must not be negative")
	}
	if cfg.AutoResetThreshold < 0 {
		return errors.New("session.auto_reset_threshold must not be negative")
	}
	if cfg.Workers < 0 {
		return errors.New("session.workers must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case "memory":
		return nil
	case "badger":
	default:
		return fmt.Errorf("storage.backend %q is not supported", cfg.Backend)
	}

	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) != 32 {
		return errors.New("storage.encryption_key must be exactly 32 bytes")
	}
	if cfg.GCInterval != "" {
		if _, err := time.ParseDuration(cfg.GCInterval); err != nil {
			return fmt.Errorf("storage.gc_interval: %w", err)
		}
	}
	return nil
}
