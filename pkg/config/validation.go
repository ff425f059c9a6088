package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks if the configuration is valid and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if c.Management.Enabled {
		if c.Management.Port <= 0 || c.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("management.port must be between 1 and 65535, got %d", c.Management.Port))
		}
		if c.Management.Port == c.HTTP.Port {
			errs = append(errs, errors.New("management.port must differ from http.port"))
		}
	}

	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be json or text)", c.Observability.LogFormat))
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
	}

	switch c.Jobs.Backend {
	case JobsBackendRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			errs = append(errs, errors.New("redis.url is required when jobs.backend is redis"))
		}
	case JobsBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported jobs.backend %q (supported: %s, %s)", c.Jobs.Backend, JobsBackendRedis, JobsBackendMemory))
	}
	if c.Jobs.Defaults.Attempts <= 0 {
		errs = append(errs, errors.New("jobs.defaults.attempts must be > 0"))
	}
	if c.Jobs.Defaults.BackoffDelay < 0 {
		errs = append(errs, errors.New("jobs.defaults.backoff_delay must be >= 0"))
	}
	if c.Jobs.Defaults.KeepCompleted < 0 || c.Jobs.Defaults.KeepFailed < 0 {
		errs = append(errs, errors.New("jobs.defaults retention must be >= 0"))
	}
	if c.Jobs.Worker.Concurrency < 0 {
		errs = append(errs, errors.New("jobs.worker.concurrency must be >= 0"))
	}

	if strings.TrimSpace(c.Redis.URL) == "" {
		errs = append(errs, errors.New("redis.url is required for the otp store"))
	}
	errs = append(errs, positiveDuration("otp.ttl", c.OTP.TTL)...)
	errs = append(errs, positiveDuration("otp.temp_data_ttl", c.OTP.TempDataTTL)...)
	if c.OTP.TempDataTTL > 0 && c.OTP.TempDataTTL <= c.OTP.TTL {
		errs = append(errs, errors.New("otp.temp_data_ttl must be longer than otp.ttl"))
	}
	if c.OTP.CodeDigits < 4 || c.OTP.CodeDigits > 9 {
		errs = append(errs, fmt.Errorf("otp.code_digits must be between 4 and 9, got %d", c.OTP.CodeDigits))
	}

	switch c.Email.Provider {
	case EmailProviderSMTP:
		if strings.TrimSpace(c.Email.SMTP.Host) == "" {
			errs = append(errs, errors.New("email.smtp.host is required when email.provider is smtp"))
		}
		if strings.TrimSpace(c.Email.SMTP.From) == "" {
			errs = append(errs, errors.New("email.smtp.from is required when email.provider is smtp"))
		}
	case EmailProviderSES:
		if strings.TrimSpace(c.Email.SES.Region) == "" {
			errs = append(errs, errors.New("email.ses.region is required when email.provider is ses"))
		}
		if strings.TrimSpace(c.Email.SES.From) == "" {
			errs = append(errs, errors.New("email.ses.from is required when email.provider is ses"))
		}
	case EmailProviderMailgun:
		if strings.TrimSpace(c.Email.Mailgun.Token) == "" || strings.TrimSpace(c.Email.Mailgun.Domain) == "" {
			errs = append(errs, errors.New("email.mailgun.token and email.mailgun.domain are required when email.provider is mailgun"))
		}
		if strings.TrimSpace(c.Email.Mailgun.From) == "" {
			errs = append(errs, errors.New("email.mailgun.from is required when email.provider is mailgun"))
		}
	case EmailProviderLog:
	default:
		errs = append(errs, fmt.Errorf("unsupported email.provider %q", c.Email.Provider))
	}
	if c.Email.CircuitBreaker.Enabled && c.Email.CircuitBreaker.MaxFailures <= 0 {
		errs = append(errs, errors.New("email.circuit_breaker.max_failures must be > 0"))
	}

	if strings.TrimSpace(c.ObjectStorage.S3.Bucket) == "" {
		errs = append(errs, errors.New("object_storage.s3.bucket is required"))
	}
	if strings.TrimSpace(c.ObjectStorage.S3.Region) == "" {
		errs = append(errs, errors.New("object_storage.s3.region is required"))
	}
	if strings.TrimSpace(c.MongoDB.URL) == "" || strings.TrimSpace(c.MongoDB.Database) == "" {
		errs = append(errs, errors.New("mongodb.url and mongodb.database are required"))
	}

	if len(strings.TrimSpace(c.Auth.JWTSecret)) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters"))
	}
	errs = append(errs, positiveDuration("realtime.join_timeout", c.Realtime.JoinTimeout)...)
	errs = append(errs, positiveDuration("instructor.decline_grace_period", c.Instructor.DeclineGracePeriod)...)

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, errors.New("rate_limit.requests_per_second must be > 0"))
		}
		if c.RateLimit.Burst <= 0 {
			errs = append(errs, errors.New("rate_limit.burst must be > 0"))
		}
	}

	return errors.Join(errs...)
}

func positiveDuration(key string, value time.Duration) []error {
	if value <= 0 {
		return []error{fmt.Errorf("%s must be > 0", key)}
	}
	return nil
}
