package config

import "time"

// Jobs backend type constants
const (
	// JobsBackendRedis stores queues in Redis
	JobsBackendRedis = "redis"
	// JobsBackendMemory keeps queues in process memory (tests, local development)
	JobsBackendMemory = "memory"
)

// Email provider constants
const (
	EmailProviderSMTP    = "smtp"
	EmailProviderSES     = "ses"
	EmailProviderMailgun = "mailgun"
	// EmailProviderLog writes messages to the log instead of sending them
	EmailProviderLog = "log"
)

// Config is the root configuration of the learnhub service.
type Config struct {
	Service       ServiceConfig
	HTTP          HTTPConfig
	Management    ManagementConfig
	Observability ObservabilityConfig
	Redis         RedisConfig
	Jobs          JobsConfig
	OTP           OTPConfig `mapstructure:"otp"`
	Email         EmailConfig
	ObjectStorage ObjectStorageConfig `mapstructure:"object_storage"`
	MongoDB       MongoDBConfig       `mapstructure:"mongodb"`
	Auth          AuthConfig
	Realtime      RealtimeConfig
	Instructor    InstructorConfig
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
	UploadDir       string        `mapstructure:"upload_dir"`
}

// ManagementConfig configures the management server (/metrics, /healthz, /readyz)
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // json, text
	ServiceName       string  `mapstructure:"service_name"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
}

// RedisConfig configures the shared Redis client used by the OTP store and the jobs backend.
type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// JobsConfig configures the background job queues.
type JobsConfig struct {
	Backend string `mapstructure:"backend"` // redis, memory
	// EmbeddedWorker runs the job workers inside the serve command.
	EmbeddedWorker   bool               `mapstructure:"embedded_worker"`
	Prefix           string             `mapstructure:"prefix"`
	OperationTimeout time.Duration      `mapstructure:"operation_timeout"`
	Worker           JobsWorkerConfig   `mapstructure:"worker"`
	Defaults         JobsDefaultsConfig `mapstructure:"defaults"`
}

// JobsWorkerConfig configures each queue's worker.
type JobsWorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	LeaseTTL       time.Duration `mapstructure:"lease_ttl"`
	ReserveTimeout time.Duration `mapstructure:"reserve_timeout"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// JobsDefaultsConfig holds the options applied to every enqueued job.
type JobsDefaultsConfig struct {
	Attempts      int           `mapstructure:"attempts"`
	BackoffDelay  time.Duration `mapstructure:"backoff_delay"`
	KeepCompleted int           `mapstructure:"keep_completed"`
	KeepFailed    int           `mapstructure:"keep_failed"`
}

// OTPConfig configures one-time codes and pending registration data.
type OTPConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	TempDataTTL time.Duration `mapstructure:"temp_data_ttl"`
	CodeDigits  int           `mapstructure:"code_digits"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	Subject     string        `mapstructure:"subject"`
}

// EmailConfig configures the transactional email transport.
type EmailConfig struct {
	Provider       string                    `mapstructure:"provider"` // smtp, ses, mailgun, log
	SMTP           EmailSMTPConfig           `mapstructure:"smtp"`
	SES            EmailSESConfig            `mapstructure:"ses"`
	Mailgun        EmailMailgunConfig        `mapstructure:"mailgun"`
	CircuitBreaker EmailCircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// EmailSMTPConfig configures the SMTP provider.
type EmailSMTPConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	From               string        `mapstructure:"from"`
	EnableTLS          bool          `mapstructure:"enable_tls"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout"`
}

// EmailSESConfig configures the Amazon SES provider.
type EmailSESConfig struct {
	Region           string        `mapstructure:"region"`
	Endpoint         string        `mapstructure:"endpoint"`
	AccessKeyID      string        `mapstructure:"access_key_id"`
	SecretAccessKey  string        `mapstructure:"secret_access_key"`
	SessionToken     string        `mapstructure:"session_token"`
	From             string        `mapstructure:"from"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// EmailMailgunConfig configures the Mailgun provider.
type EmailMailgunConfig struct {
	Token            string        `mapstructure:"token"`
	Domain           string        `mapstructure:"domain"`
	From             string        `mapstructure:"from"`
	BaseURL          string        `mapstructure:"base_url"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// EmailCircuitBreakerConfig guards the provider against a failing upstream.
type EmailCircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// ObjectStorageConfig configures resume storage.
type ObjectStorageConfig struct {
	S3           ObjectStorageS3Config `mapstructure:"s3"`
	ResumeFolder string                `mapstructure:"resume_folder"`
}

// ObjectStorageS3Config configures the S3 bucket.
type ObjectStorageS3Config struct {
	Bucket           string        `mapstructure:"bucket"`
	Region           string        `mapstructure:"region"`
	Endpoint         string        `mapstructure:"endpoint"`
	AccessKeyID      string        `mapstructure:"access_key_id"`
	SecretAccessKey  string        `mapstructure:"secret_access_key"`
	SessionToken     string        `mapstructure:"session_token"`
	UsePathStyle     bool          `mapstructure:"use_path_style"`
	PublicBaseURL    string        `mapstructure:"public_base_url"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// MongoDBConfig configures the document store.
type MongoDBConfig struct {
	URL            string        `mapstructure:"url"`
	Database       string        `mapstructure:"database"`
	MaxPoolSize    int           `mapstructure:"max_pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

// AuthConfig configures access token verification.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// RealtimeConfig configures the live notification channel.
type RealtimeConfig struct {
	JoinTimeout     time.Duration `mapstructure:"join_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	MaxConnsPerUser int           `mapstructure:"max_conns_per_user"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
}

// InstructorConfig configures the instructor review flow.
type InstructorConfig struct {
	// DeclineGracePeriod is how long a declined instructor is kept before deletion.
	DeclineGracePeriod time.Duration `mapstructure:"decline_grace_period"`
}

// RateLimitConfig configures the per-client limiter on the OTP routes.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "learnhub",
			Environment: "production",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxRequestSize:  10 << 20,
			UploadDir:       "uploads",
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			ServiceName:       "learnhub",
			TracingSampleRate: 0.1,
			TracingEndpoint:   "localhost:4317",
		},
		Redis: RedisConfig{
			URL:              "redis://localhost:6379/0",
			MaxConns:         10,
			OperationTimeout: 5 * time.Second,
		},
		Jobs: JobsConfig{
			Backend:          JobsBackendRedis,
			EmbeddedWorker:   true,
			Prefix:           "learnhub:jobs",
			OperationTimeout: 5 * time.Second,
			Worker: JobsWorkerConfig{
				Concurrency:    4,
				LeaseTTL:       30 * time.Second,
				ReserveTimeout: time.Second,
				StopTimeout:    10 * time.Second,
				AttemptTimeout: 60 * time.Second,
				MaxBackoff:     10 * time.Minute,
			},
			Defaults: JobsDefaultsConfig{
				Attempts:      3,
				BackoffDelay:  2 * time.Second,
				KeepCompleted: 50,
				KeepFailed:    10,
			},
		},
		OTP: OTPConfig{
			TTL:         120 * time.Second,
			TempDataTTL: 6 * time.Minute,
			CodeDigits:  4,
			KeyPrefix:   "learnhub:otp",
			Subject:     "Verify your email",
		},
		Email: EmailConfig{
			Provider: EmailProviderSMTP,
			SMTP: EmailSMTPConfig{
				Port:             587,
				EnableTLS:        true,
				OperationTimeout: 10 * time.Second,
			},
			SES: EmailSESConfig{
				OperationTimeout: 10 * time.Second,
			},
			Mailgun: EmailMailgunConfig{
				OperationTimeout: 10 * time.Second,
			},
			CircuitBreaker: EmailCircuitBreakerConfig{
				Enabled:      true,
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
		},
		ObjectStorage: ObjectStorageConfig{
			S3: ObjectStorageS3Config{
				Region:           "us-east-1",
				OperationTimeout: 30 * time.Second,
			},
			ResumeFolder: "resumes",
		},
		MongoDB: MongoDBConfig{
			URL:            "mongodb://localhost:27017",
			Database:       "learnhub",
			MaxPoolSize:    20,
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   5 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:   "learnhub",
			TokenTTL: 24 * time.Hour,
		},
		Realtime: RealtimeConfig{
			JoinTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Second,
			PingInterval:    30 * time.Second,
			SendBuffer:      16,
			MaxConnsPerUser: 5,
			MaxMessageSize:  4096,
		},
		Instructor: InstructorConfig{
			DeclineGracePeriod: 72 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             5,
			IdleTTL:           10 * time.Minute,
		},
	}
}
