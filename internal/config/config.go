package config

import (
	"encoding/json"
	"fmt"
	"os"

	"netchatbridge/internal/constants"
	"netchatbridge/internal/models"
	"netchatbridge/internal/security"
)

var (
	ErrMissingNetChatURL    = models.ConfigError{Message: "missing NetChat base URL"}
	ErrMissingHomeserverURL = models.ConfigError{Message: "missing Matrix homeserver URL"}
	ErrMissingUsername      = models.ConfigError{Message: "missing Matrix username"}
	ErrMissingPassword      = models.ConfigError{Message: "missing Matrix password"}
)

// LoadConfig reads the configuration file, fills in defaults and applies
// environment overrides. A missing file is an error; use Default and
// WriteDefault for first-time setup.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnvironmentOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadSecrets reads the Matrix credentials file and applies environment
// overrides.
func LoadSecrets(path string) (*models.Secrets, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid secrets path: %w", err)
	}

	var secrets models.Secrets
	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// Credentials may be supplied entirely through the environment.
	} else if err := json.Unmarshal(file, &secrets); err != nil {
		return nil, err
	}

	if v := os.Getenv("NETCHAT_BRIDGE_HOMESERVER_URL"); v != "" {
		secrets.HomeserverURL = v
	}
	if v := os.Getenv("NETCHAT_BRIDGE_USERNAME"); v != "" {
		secrets.Username = v
	}
	if v := os.Getenv("NETCHAT_BRIDGE_PASSWORD"); v != "" {
		secrets.Password = v
	}

	if secrets.HomeserverURL == "" {
		return nil, ErrMissingHomeserverURL
	}
	if secrets.Username == "" {
		return nil, ErrMissingUsername
	}
	if secrets.Password == "" {
		return nil, ErrMissingPassword
	}

	return &secrets, nil
}

// Default returns the configuration the bridge runs with when nothing is
// customized.
func Default() *models.Config {
	cfg := &models.Config{}
	applyDefaults(cfg)
	return cfg
}

// WriteDefault writes the default configuration as indented JSON,
// backing the -generate-config flag.
func WriteDefault(path string) error {
	if err := security.ValidateFilePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func applyDefaults(cfg *models.Config) {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = constants.DefaultCommandPrefix
	}
	if cfg.RefreshIntervalSec <= 0 {
		cfg.RefreshIntervalSec = constants.DefaultRefreshIntervalSec
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = constants.DefaultRequestTimeoutSec
	}
	if cfg.JoinInitialBackoffSec <= 0 {
		cfg.JoinInitialBackoffSec = constants.DefaultJoinInitialBackoffSec
	}
	if cfg.JoinMaxBackoffSec <= 0 {
		cfg.JoinMaxBackoffSec = constants.DefaultJoinMaxBackoffSec
	}
	if cfg.JoinBackoffMultiplier <= 1 {
		cfg.JoinBackoffMultiplier = constants.DefaultJoinBackoffMultiplier
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = constants.DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = constants.DefaultServerPort
	}
	if cfg.Tracing.SampleRate <= 0 {
		cfg.Tracing.SampleRate = 1.0
	}
}

func applyEnvironmentOverrides(cfg *models.Config) {
	if v := os.Getenv("NETCHAT_BRIDGE_NETCHAT_BASE_URL"); v != "" {
		cfg.NetChatBaseURL = v
	}
	if v := os.Getenv("NETCHAT_BRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func validate(cfg *models.Config) error {
	if cfg.NetChatBaseURL == "" {
		return ErrMissingNetChatURL
	}
	if len(cfg.CommandPrefix) != 1 {
		return models.ConfigError{Message: fmt.Sprintf("command prefix must be a single character, got %q", cfg.CommandPrefix)}
	}
	if cfg.JoinMaxBackoffSec < cfg.JoinInitialBackoffSec {
		return models.ConfigError{Message: "join_max_backoff_sec must be >= join_initial_backoff_sec"}
	}
	return nil
}
