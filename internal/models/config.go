package models

// Config holds the runtime configuration of the bridge, loaded from a
// JSON file with environment overrides applied on top.
type Config struct {
	CommandPrefix         string        `json:"command_prefix"`
	RefreshIntervalSec    int           `json:"refresh_interval_sec"`
	RequestTimeoutSec     int           `json:"request_timeout_sec"`
	NetChatBaseURL        string        `json:"netchat_base_url"`
	JoinInitialBackoffSec int           `json:"join_initial_backoff_sec"`
	JoinMaxBackoffSec     int           `json:"join_max_backoff_sec"`
	JoinBackoffMultiplier float64       `json:"join_backoff_multiplier"`
	LogLevel              string        `json:"log_level"`
	Server                ServerConfig  `json:"server"`
	Tracing               TracingConfig `json:"tracing"`
}

// ServerConfig configures the optional operational HTTP endpoint.
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// TracingConfig configures the optional OpenTelemetry exporter.
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	UseStdout    bool    `json:"use_stdout"`
	SampleRate   float64 `json:"sample_rate"`
	Environment  string  `json:"environment"`
}

// Secrets holds the Matrix account credentials. Kept in a separate file
// from the configuration so the configuration file stays shareable.
type Secrets struct {
	HomeserverURL string `json:"homeserver_url"`
	Username      string `json:"username"`
	Password      string `json:"password"`
}

// ConfigError indicates an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
