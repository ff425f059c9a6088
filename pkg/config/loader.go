package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix is the environment variable prefix used when none is given.
const DefaultEnvPrefix = "LEARNHUB"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string

	v       *viper.Viper
	secrets map[string]interface{}
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "LEARNHUB")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: strings.TrimSpace(configFile),
		envPrefix:  envPrefix,
	}
}

// ConfigFile returns the configured file path, or empty string if none.
func (l *ViperLoader) ConfigFile() string {
	return l.configFile
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	return l.load(false)
}

// LoadWithSecrets behaves like Load but also merges the secrets file found by
// discoverSecretsFile. Precedence: ENV > secrets file > config file > defaults
func (l *ViperLoader) LoadWithSecrets() (*Config, error) {
	return l.load(true)
}

// AllSettings returns the effective merged settings of the last load.
func (l *ViperLoader) AllSettings() map[string]interface{} {
	if l == nil || l.v == nil {
		return map[string]interface{}{}
	}
	return l.v.AllSettings()
}

// SecretSettings returns the raw settings read from the secrets file, nil when none was loaded.
func (l *ViperLoader) SecretSettings() map[string]interface{} {
	if l == nil {
		return nil
	}
	return l.secrets
}

func (l *ViperLoader) load(withSecrets bool) (*Config, error) {
	v := viper.New()
	l.v = v
	l.secrets = nil

	// Start with defaults
	l.setDefaults(v, DefaultConfig())

	// Read config file if provided
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified but couldn't be read
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	if withSecrets {
		secretsFile, _, err := l.discoverSecretsFile()
		if err != nil {
			return nil, err
		}
		if secretsFile != "" {
			secretsViper := viper.New()
			secretsViper.SetConfigFile(secretsFile)
			if err := secretsViper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
			}
			l.secrets = secretsViper.AllSettings()
			if err := v.MergeConfigMap(l.secrets); err != nil {
				return nil, fmt.Errorf("failed to merge secrets: %w", err)
			}
		}
	}

	// Environment variables override file config through explicit bindings.
	v.SetEnvPrefix(l.prefix())
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	// Service
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"), "PORT")
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.shutdown_timeout", l.prefixedEnv("HTTP_SHUTDOWN_TIMEOUT"))
	v.BindEnv("http.max_request_size", l.prefixedEnv("HTTP_MAX_REQUEST_SIZE"))
	v.BindEnv("http.upload_dir", l.prefixedEnv("HTTP_UPLOAD_DIR"))

	// Management
	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))
	v.BindEnv("management.read_timeout", l.prefixedEnv("MGMT_READ_TIMEOUT"))
	v.BindEnv("management.write_timeout", l.prefixedEnv("MGMT_WRITE_TIMEOUT"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.service_name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))

	// Redis
	v.BindEnv("redis.url", l.prefixedEnv("REDIS_URL"))
	v.BindEnv("redis.max_conns", l.prefixedEnv("REDIS_MAX_CONNS"))
	v.BindEnv("redis.operation_timeout", l.prefixedEnv("REDIS_OPERATION_TIMEOUT"))

	// Jobs
	v.BindEnv("jobs.backend", l.prefixedEnv("JOBS_BACKEND"))
	v.BindEnv("jobs.embedded_worker", l.prefixedEnv("JOBS_EMBEDDED_WORKER"))
	v.BindEnv("jobs.prefix", l.prefixedEnv("JOBS_PREFIX"))
	v.BindEnv("jobs.operation_timeout", l.prefixedEnv("JOBS_OPERATION_TIMEOUT"))
	v.BindEnv("jobs.worker.concurrency", l.prefixedEnv("JOBS_WORKER_CONCURRENCY"))
	v.BindEnv("jobs.worker.lease_ttl", l.prefixedEnv("JOBS_WORKER_LEASE_TTL"))
	v.BindEnv("jobs.worker.reserve_timeout", l.prefixedEnv("JOBS_WORKER_RESERVE_TIMEOUT"))
	v.BindEnv("jobs.worker.stop_timeout", l.prefixedEnv("JOBS_WORKER_STOP_TIMEOUT"))
	v.BindEnv("jobs.worker.attempt_timeout", l.prefixedEnv("JOBS_WORKER_ATTEMPT_TIMEOUT"))
	v.BindEnv("jobs.worker.max_backoff", l.prefixedEnv("JOBS_WORKER_MAX_BACKOFF"))
	v.BindEnv("jobs.defaults.attempts", l.prefixedEnv("JOBS_DEFAULT_ATTEMPTS"))
	v.BindEnv("jobs.defaults.backoff_delay", l.prefixedEnv("JOBS_DEFAULT_BACKOFF_DELAY"))
	v.BindEnv("jobs.defaults.keep_completed", l.prefixedEnv("JOBS_DEFAULT_KEEP_COMPLETED"))
	v.BindEnv("jobs.defaults.keep_failed", l.prefixedEnv("JOBS_DEFAULT_KEEP_FAILED"))

	// OTP
	v.BindEnv("otp.ttl", l.prefixedEnv("OTP_TTL"))
	v.BindEnv("otp.temp_data_ttl", l.prefixedEnv("OTP_TEMP_DATA_TTL"))
	v.BindEnv("otp.code_digits", l.prefixedEnv("OTP_CODE_DIGITS"))
	v.BindEnv("otp.key_prefix", l.prefixedEnv("OTP_KEY_PREFIX"))
	v.BindEnv("otp.subject", l.prefixedEnv("OTP_SUBJECT"))

	// Email
	v.BindEnv("email.provider", l.prefixedEnv("EMAIL_PROVIDER"))
	v.BindEnv("email.smtp.host", l.prefixedEnv("EMAIL_SMTP_HOST"))
	v.BindEnv("email.smtp.port", l.prefixedEnv("EMAIL_SMTP_PORT"))
	v.BindEnv("email.smtp.username", l.prefixedEnv("EMAIL_SMTP_USERNAME"))
	v.BindEnv("email.smtp.password", l.prefixedEnv("EMAIL_SMTP_PASSWORD"))
	v.BindEnv("email.smtp.from", l.prefixedEnv("EMAIL_SMTP_FROM"))
	v.BindEnv("email.smtp.enable_tls", l.prefixedEnv("EMAIL_SMTP_ENABLE_TLS"))
	v.BindEnv("email.smtp.insecure_skip_verify", l.prefixedEnv("EMAIL_SMTP_INSECURE_SKIP_VERIFY"))
	v.BindEnv("email.smtp.operation_timeout", l.prefixedEnv("EMAIL_SMTP_OPERATION_TIMEOUT"))
	v.BindEnv("email.ses.region", l.prefixedEnv("EMAIL_SES_REGION"))
	v.BindEnv("email.ses.endpoint", l.prefixedEnv("EMAIL_SES_ENDPOINT"))
	v.BindEnv("email.ses.access_key_id", l.prefixedEnv("EMAIL_SES_ACCESS_KEY_ID"))
	v.BindEnv("email.ses.secret_access_key", l.prefixedEnv("EMAIL_SES_SECRET_ACCESS_KEY"))
	v.BindEnv("email.ses.session_token", l.prefixedEnv("EMAIL_SES_SESSION_TOKEN"))
	v.BindEnv("email.ses.from", l.prefixedEnv("EMAIL_SES_FROM"))
	v.BindEnv("email.ses.operation_timeout", l.prefixedEnv("EMAIL_SES_OPERATION_TIMEOUT"))
	v.BindEnv("email.mailgun.token", l.prefixedEnv("EMAIL_MAILGUN_TOKEN"))
	v.BindEnv("email.mailgun.domain", l.prefixedEnv("EMAIL_MAILGUN_DOMAIN"))
	v.BindEnv("email.mailgun.from", l.prefixedEnv("EMAIL_MAILGUN_FROM"))
	v.BindEnv("email.mailgun.base_url", l.prefixedEnv("EMAIL_MAILGUN_BASE_URL"))
	v.BindEnv("email.mailgun.operation_timeout", l.prefixedEnv("EMAIL_MAILGUN_OPERATION_TIMEOUT"))
	v.BindEnv("email.circuit_breaker.enabled", l.prefixedEnv("EMAIL_CIRCUIT_BREAKER_ENABLED"))
	v.BindEnv("email.circuit_breaker.max_failures", l.prefixedEnv("EMAIL_CIRCUIT_BREAKER_MAX_FAILURES"))
	v.BindEnv("email.circuit_breaker.reset_timeout", l.prefixedEnv("EMAIL_CIRCUIT_BREAKER_RESET_TIMEOUT"))

	// Object storage
	v.BindEnv("object_storage.resume_folder", l.prefixedEnv("OBJECT_STORAGE_RESUME_FOLDER"))
	v.BindEnv("object_storage.s3.bucket", l.prefixedEnv("OBJECT_STORAGE_S3_BUCKET"))
	v.BindEnv("object_storage.s3.region", l.prefixedEnv("OBJECT_STORAGE_S3_REGION"))
	v.BindEnv("object_storage.s3.endpoint", l.prefixedEnv("OBJECT_STORAGE_S3_ENDPOINT"))
	v.BindEnv("object_storage.s3.access_key_id", l.prefixedEnv("OBJECT_STORAGE_S3_ACCESS_KEY_ID"))
	v.BindEnv("object_storage.s3.secret_access_key", l.prefixedEnv("OBJECT_STORAGE_S3_SECRET_ACCESS_KEY"))
	v.BindEnv("object_storage.s3.session_token", l.prefixedEnv("OBJECT_STORAGE_S3_SESSION_TOKEN"))
	v.BindEnv("object_storage.s3.use_path_style", l.prefixedEnv("OBJECT_STORAGE_S3_USE_PATH_STYLE"))
	v.BindEnv("object_storage.s3.public_base_url", l.prefixedEnv("OBJECT_STORAGE_S3_PUBLIC_BASE_URL"))
	v.BindEnv("object_storage.s3.operation_timeout", l.prefixedEnv("OBJECT_STORAGE_S3_OPERATION_TIMEOUT"))

	// MongoDB
	v.BindEnv("mongodb.url", l.prefixedEnv("MONGODB_URL"))
	v.BindEnv("mongodb.database", l.prefixedEnv("MONGODB_DATABASE"))
	v.BindEnv("mongodb.max_pool_size", l.prefixedEnv("MONGODB_MAX_POOL_SIZE"))
	v.BindEnv("mongodb.connect_timeout", l.prefixedEnv("MONGODB_CONNECT_TIMEOUT"))
	v.BindEnv("mongodb.query_timeout", l.prefixedEnv("MONGODB_QUERY_TIMEOUT"))

	// Auth
	v.BindEnv("auth.jwt_secret", l.prefixedEnv("AUTH_JWT_SECRET"))
	v.BindEnv("auth.issuer", l.prefixedEnv("AUTH_ISSUER"))
	v.BindEnv("auth.audience", l.prefixedEnv("AUTH_AUDIENCE"))
	v.BindEnv("auth.token_ttl", l.prefixedEnv("AUTH_TOKEN_TTL"))

	// Realtime
	v.BindEnv("realtime.join_timeout", l.prefixedEnv("REALTIME_JOIN_TIMEOUT"))
	v.BindEnv("realtime.write_timeout", l.prefixedEnv("REALTIME_WRITE_TIMEOUT"))
	v.BindEnv("realtime.ping_interval", l.prefixedEnv("REALTIME_PING_INTERVAL"))
	v.BindEnv("realtime.send_buffer", l.prefixedEnv("REALTIME_SEND_BUFFER"))
	v.BindEnv("realtime.max_conns_per_user", l.prefixedEnv("REALTIME_MAX_CONNS_PER_USER"))
	v.BindEnv("realtime.max_message_size", l.prefixedEnv("REALTIME_MAX_MESSAGE_SIZE"))

	// Instructor
	v.BindEnv("instructor.decline_grace_period", l.prefixedEnv("INSTRUCTOR_DECLINE_GRACE_PERIOD"))

	// Rate limit
	v.BindEnv("rate_limit.enabled", l.prefixedEnv("RATE_LIMIT_ENABLED"))
	v.BindEnv("rate_limit.requests_per_second", l.prefixedEnv("RATE_LIMIT_REQUESTS_PER_SECOND"))
	v.BindEnv("rate_limit.burst", l.prefixedEnv("RATE_LIMIT_BURST"))
	v.BindEnv("rate_limit.idle_ttl", l.prefixedEnv("RATE_LIMIT_IDLE_TTL"))
}

func (l *ViperLoader) prefix() string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return strings.ToUpper(prefix)
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	return fmt.Sprintf("%s_%s", l.prefix(), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	// Service defaults
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	// HTTP defaults
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	v.SetDefault("http.max_request_size", cfg.HTTP.MaxRequestSize)
	v.SetDefault("http.upload_dir", cfg.HTTP.UploadDir)

	// Management defaults
	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)
	v.SetDefault("management.read_timeout", cfg.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", cfg.Management.WriteTimeout)

	// Observability defaults
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.service_name", cfg.Observability.ServiceName)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)

	// Redis defaults
	v.SetDefault("redis.url", cfg.Redis.URL)
	v.SetDefault("redis.max_conns", cfg.Redis.MaxConns)
	v.SetDefault("redis.operation_timeout", cfg.Redis.OperationTimeout)

	// Jobs defaults
	v.SetDefault("jobs.backend", cfg.Jobs.Backend)
	v.SetDefault("jobs.embedded_worker", cfg.Jobs.EmbeddedWorker)
	v.SetDefault("jobs.prefix", cfg.Jobs.Prefix)
	v.SetDefault("jobs.operation_timeout", cfg.Jobs.OperationTimeout)
	v.SetDefault("jobs.worker.concurrency", cfg.Jobs.Worker.Concurrency)
	v.SetDefault("jobs.worker.lease_ttl", cfg.Jobs.Worker.LeaseTTL)
	v.SetDefault("jobs.worker.reserve_timeout", cfg.Jobs.Worker.ReserveTimeout)
	v.SetDefault("jobs.worker.stop_timeout", cfg.Jobs.Worker.StopTimeout)
	v.SetDefault("jobs.worker.attempt_timeout", cfg.Jobs.Worker.AttemptTimeout)
	v.SetDefault("jobs.worker.max_backoff", cfg.Jobs.Worker.MaxBackoff)
	v.SetDefault("jobs.defaults.attempts", cfg.Jobs.Defaults.Attempts)
	v.SetDefault("jobs.defaults.backoff_delay", cfg.Jobs.Defaults.BackoffDelay)
	v.SetDefault("jobs.defaults.keep_completed", cfg.Jobs.Defaults.KeepCompleted)
	v.SetDefault("jobs.defaults.keep_failed", cfg.Jobs.Defaults.KeepFailed)

	// OTP defaults
	v.SetDefault("otp.ttl", cfg.OTP.TTL)
	v.SetDefault("otp.temp_data_ttl", cfg.OTP.TempDataTTL)
	v.SetDefault("otp.code_digits", cfg.OTP.CodeDigits)
	v.SetDefault("otp.key_prefix", cfg.OTP.KeyPrefix)
	v.SetDefault("otp.subject", cfg.OTP.Subject)

	// Email defaults
	v.SetDefault("email.provider", cfg.Email.Provider)
	v.SetDefault("email.smtp.host", cfg.Email.SMTP.Host)
	v.SetDefault("email.smtp.port", cfg.Email.SMTP.Port)
	v.SetDefault("email.smtp.username", cfg.Email.SMTP.Username)
	v.SetDefault("email.smtp.password", cfg.Email.SMTP.Password)
	v.SetDefault("email.smtp.from", cfg.Email.SMTP.From)
	v.SetDefault("email.smtp.enable_tls", cfg.Email.SMTP.EnableTLS)
	v.SetDefault("email.smtp.insecure_skip_verify", cfg.Email.SMTP.InsecureSkipVerify)
	v.SetDefault("email.smtp.operation_timeout", cfg.Email.SMTP.OperationTimeout)
	v.SetDefault("email.ses.region", cfg.Email.SES.Region)
	v.SetDefault("email.ses.endpoint", cfg.Email.SES.Endpoint)
	v.SetDefault("email.ses.access_key_id", cfg.Email.SES.AccessKeyID)
	v.SetDefault("email.ses.secret_access_key", cfg.Email.SES.SecretAccessKey)
	v.SetDefault("email.ses.session_token", cfg.Email.SES.SessionToken)
	v.SetDefault("email.ses.from", cfg.Email.SES.From)
	v.SetDefault("email.ses.operation_timeout", cfg.Email.SES.OperationTimeout)
	v.SetDefault("email.mailgun.token", cfg.Email.Mailgun.Token)
	v.SetDefault("email.mailgun.domain", cfg.Email.Mailgun.Domain)
	v.SetDefault("email.mailgun.from", cfg.Email.Mailgun.From)
	v.SetDefault("email.mailgun.base_url", cfg.Email.Mailgun.BaseURL)
	v.SetDefault("email.mailgun.operation_timeout", cfg.Email.Mailgun.OperationTimeout)
	v.SetDefault("email.circuit_breaker.enabled", cfg.Email.CircuitBreaker.Enabled)
	v.SetDefault("email.circuit_breaker.max_failures", cfg.Email.CircuitBreaker.MaxFailures)
	v.SetDefault("email.circuit_breaker.reset_timeout", cfg.Email.CircuitBreaker.ResetTimeout)

	// Object storage defaults
	v.SetDefault("object_storage.resume_folder", cfg.ObjectStorage.ResumeFolder)
	v.SetDefault("object_storage.s3.bucket", cfg.ObjectStorage.S3.Bucket)
	v.SetDefault("object_storage.s3.region", cfg.ObjectStorage.S3.Region)
	v.SetDefault("object_storage.s3.endpoint", cfg.ObjectStorage.S3.Endpoint)
	v.SetDefault("object_storage.s3.access_key_id", cfg.ObjectStorage.S3.AccessKeyID)
	v.SetDefault("object_storage.s3.secret_access_key", cfg.ObjectStorage.S3.SecretAccessKey)
	v.SetDefault("object_storage.s3.session_token", cfg.ObjectStorage.S3.SessionToken)
	v.SetDefault("object_storage.s3.use_path_style", cfg.ObjectStorage.S3.UsePathStyle)
	v.SetDefault("object_storage.s3.public_base_url", cfg.ObjectStorage.S3.PublicBaseURL)
	v.SetDefault("object_storage.s3.operation_timeout", cfg.ObjectStorage.S3.OperationTimeout)

	// MongoDB defaults
	v.SetDefault("mongodb.url", cfg.MongoDB.URL)
	v.SetDefault("mongodb.database", cfg.MongoDB.Database)
	v.SetDefault("mongodb.max_pool_size", cfg.MongoDB.MaxPoolSize)
	v.SetDefault("mongodb.connect_timeout", cfg.MongoDB.ConnectTimeout)
	v.SetDefault("mongodb.query_timeout", cfg.MongoDB.QueryTimeout)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("auth.audience", cfg.Auth.Audience)
	v.SetDefault("auth.token_ttl", cfg.Auth.TokenTTL)

	// Realtime defaults
	v.SetDefault("realtime.join_timeout", cfg.Realtime.JoinTimeout)
	v.SetDefault("realtime.write_timeout", cfg.Realtime.WriteTimeout)
	v.SetDefault("realtime.ping_interval", cfg.Realtime.PingInterval)
	v.SetDefault("realtime.send_buffer", cfg.Realtime.SendBuffer)
	v.SetDefault("realtime.max_conns_per_user", cfg.Realtime.MaxConnsPerUser)
	v.SetDefault("realtime.max_message_size", cfg.Realtime.MaxMessageSize)

	// Instructor defaults
	v.SetDefault("instructor.decline_grace_period", cfg.Instructor.DeclineGracePeriod)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
	v.SetDefault("rate_limit.idle_ttl", cfg.RateLimit.IdleTTL)
}

// Validate normalizes the configuration and returns every problem found, joined.
func (l *ViperLoader) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Jobs.Backend = strings.ToLower(strings.TrimSpace(cfg.Jobs.Backend))
	cfg.Email.Provider = strings.ToLower(strings.TrimSpace(cfg.Email.Provider))
	cfg.Observability.LogFormat = strings.ToLower(strings.TrimSpace(cfg.Observability.LogFormat))
	return cfg.Validate()
}
