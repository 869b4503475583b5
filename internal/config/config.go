package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Publisher PublisherConfig `mapstructure:"publisher" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings for the API plus the key used
// to unseal stored platform tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes is how long issued API tokens stay valid.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lte=10080"`

	// TokenSealKey is the hex-encoded 32-byte key that decrypts platform
	// access tokens at publish time.
	TokenSealKey string `mapstructure:"token_seal_key" validate:"required,len=64,hexadecimal"`
}

// PublisherConfig bounds the publishing engine: the execution worker pool,
// the network retry policy, and the async media poll loop.
type PublisherConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0,lte=64"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`

	// JobMaxRetries bounds requeues of one execution after transient
	// persistence failures.
	JobMaxRetries int `mapstructure:"job_max_retries" validate:"gte=0,lte=10"`

	// NetworkMaxRetries bounds per-call retries inside the adapters.
	NetworkMaxRetries int `mapstructure:"network_max_retries" validate:"gte=0,lte=10"`

	// HTTPTimeoutSeconds bounds each external HTTP call.
	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds" validate:"required,gt=0,lte=300"`

	// MediaPollBudgetSeconds is the wall-clock limit for one async media
	// container's polling phase.
	MediaPollBudgetSeconds int `mapstructure:"media_poll_budget_seconds" validate:"required,gt=0,lte=3600"`
}

// SchedulerConfig controls the due-task scan.
type SchedulerConfig struct {
	// CronSpec is the scan cadence in cron syntax.
	CronSpec string `mapstructure:"cron_spec" validate:"required"`

	// BatchSize caps tasks dispatched per scan.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0,lte=1000"`
}
