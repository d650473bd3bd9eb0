package constants

const (
	// Command handling
	DefaultCommandPrefix = "!"

	// Poll-diff engine
	DefaultRefreshIntervalSec = 5
	DefaultRequestTimeoutSec  = 30

	// Room join backoff
	DefaultJoinInitialBackoffSec = 2
	DefaultJoinMaxBackoffSec     = 3600
	DefaultJoinBackoffMultiplier = 2.0

	// Forwarder queues. Channels are buffered rather than unbounded; at
	// bridge volumes the buffer never fills, and enqueue blocking briefly
	// under pathological load is acceptable back-pressure.
	ForwardQueueSize = 256

	// Operational HTTP server
	DefaultServerHost          = "127.0.0.1"
	DefaultServerPort          = 8797
	DefaultGracefulShutdownSec = 10
	ServerErrorChannelSize     = 1

	// Store
	DefaultStoreRetryAttempts  = 3
	DefaultStoreBackoffMs      = 250
	DefaultStoreMaxBackoffMs   = 2000
	EncryptionNonceSize        = 12
	EncryptionKeyIterations    = 100000
	EncryptionKeyLen           = 32
	EncryptionSecretEnvVar     = "NETCHAT_BRIDGE_ENCRYPTION_SECRET"
	MinimumEncryptionSecretLen = 16

	// NetChat message lines open with a fixed-width timestamp, e.g.
	// "[1970-01-01 00:00:00]". The inbound formatter bolds exactly that
	// span.
	TimestampPrefixLen = len("[1970-01-01 00:00:00]")

	// Matrix device identity
	MatrixDeviceID          = "NETCHATBRIDGE"
	MatrixDeviceDisplayName = "NetChat Bridge"

	// Outbound request tagging
	SessionTagLen = 12
)
