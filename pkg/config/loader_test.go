package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LEARNHUB_EMAIL_SMTP_HOST", "smtp.example.com")
	t.Setenv("LEARNHUB_EMAIL_SMTP_FROM", "no-reply@learnhub.test")
	t.Setenv("LEARNHUB_OBJECT_STORAGE_S3_BUCKET", "learnhub-resumes")
	t.Setenv("LEARNHUB_AUTH_JWT_SECRET", strings.Repeat("s", 32))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != "learnhub" {
		t.Errorf("expected service name learnhub, got %s", cfg.Service.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected HTTP port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Management.Port != 9090 {
		t.Errorf("expected Management port 9090, got %d", cfg.Management.Port)
	}
	if cfg.Jobs.Backend != JobsBackendRedis {
		t.Errorf("expected jobs backend %q, got %q", JobsBackendRedis, cfg.Jobs.Backend)
	}
	if cfg.Jobs.Defaults.Attempts != 3 || cfg.Jobs.Defaults.BackoffDelay != 2*time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Jobs.Defaults)
	}
	if cfg.Jobs.Defaults.KeepCompleted != 50 || cfg.Jobs.Defaults.KeepFailed != 10 {
		t.Errorf("unexpected retention defaults: %+v", cfg.Jobs.Defaults)
	}
	if cfg.OTP.TTL != 120*time.Second {
		t.Errorf("expected otp ttl 120s, got %v", cfg.OTP.TTL)
	}
	if cfg.OTP.TempDataTTL != 6*time.Minute {
		t.Errorf("expected temp data ttl 6m, got %v", cfg.OTP.TempDataTTL)
	}
	if cfg.OTP.CodeDigits != 4 {
		t.Errorf("expected 4 digit codes, got %d", cfg.OTP.CodeDigits)
	}
	if cfg.Instructor.DeclineGracePeriod != 72*time.Hour {
		t.Errorf("expected 72h grace period, got %v", cfg.Instructor.DeclineGracePeriod)
	}
}

func TestViperLoader_LoadWithRequiredEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewViperLoader("", "").Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got: %v", err)
	}
	if cfg.Email.SMTP.Host != "smtp.example.com" {
		t.Errorf("expected smtp host from env, got %s", cfg.Email.SMTP.Host)
	}
	if cfg.ObjectStorage.ResumeFolder != "resumes" {
		t.Errorf("expected resumes folder, got %s", cfg.ObjectStorage.ResumeFolder)
	}
}

func TestViperLoader_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LEARNHUB_OTP_TTL", "90s")
	t.Setenv("LEARNHUB_JOBS_BACKEND", "MEMORY")
	t.Setenv("LEARNHUB_JOBS_WORKER_CONCURRENCY", "8")
	t.Setenv("LEARNHUB_INSTRUCTOR_DECLINE_GRACE_PERIOD", "24h")

	cfg, err := NewViperLoader("", "LEARNHUB").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OTP.TTL != 90*time.Second {
		t.Errorf("expected otp ttl 90s, got %v", cfg.OTP.TTL)
	}
	if cfg.Jobs.Backend != JobsBackendMemory {
		t.Errorf("expected normalized memory backend, got %q", cfg.Jobs.Backend)
	}
	if cfg.Jobs.Worker.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Jobs.Worker.Concurrency)
	}
	if cfg.Instructor.DeclineGracePeriod != 24*time.Hour {
		t.Errorf("expected 24h grace period, got %v", cfg.Instructor.DeclineGracePeriod)
	}
}

func TestViperLoader_FileThenEnv(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
http:
  port: 8081
otp:
  code_digits: 6
email:
  provider: log
`
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LEARNHUB_HTTP_PORT", "8082")

	cfg, err := NewViperLoader(file, "LEARNHUB").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 8082 {
		t.Errorf("expected env to win over file, got %d", cfg.HTTP.Port)
	}
	if cfg.OTP.CodeDigits != 6 {
		t.Errorf("expected code digits from file, got %d", cfg.OTP.CodeDigits)
	}
	if cfg.Email.Provider != EmailProviderLog {
		t.Errorf("expected log provider from file, got %s", cfg.Email.Provider)
	}
}

func TestViperLoader_MissingFile(t *testing.T) {
	if _, err := NewViperLoader(filepath.Join(t.TempDir(), "missing.yaml"), "").Load(); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestViperLoader_LoadWithSecrets(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("service:\n  name: learnhub-api\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	secretsFile := filepath.Join(dir, "secrets.yaml")
	if err := os.WriteFile(secretsFile, []byte("email:\n  smtp:\n    password: hunter2\n"), 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	loader := NewViperLoader(configFile, "LEARNHUB")
	cfg, err := loader.LoadWithSecrets()
	if err != nil {
		t.Fatalf("load with secrets: %v", err)
	}
	if cfg.Email.SMTP.Password != "hunter2" {
		t.Errorf("expected password from secrets file, got %q", cfg.Email.SMTP.Password)
	}
	if cfg.Service.Name != "learnhub-api" {
		t.Errorf("expected service name from config file, got %s", cfg.Service.Name)
	}

	redacted := RedactSettings(loader.AllSettings(), loader.SecretSettings())
	smtp := redacted["email"].(map[string]interface{})["smtp"].(map[string]interface{})
	if smtp["password"] != "***" {
		t.Errorf("expected password to be redacted, got %v", smtp["password"])
	}
	if smtp["host"] != "smtp.example.com" {
		t.Errorf("expected host to stay visible, got %v", smtp["host"])
	}
}

func TestConfigValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs.Backend = "kafka"
	cfg.OTP.TempDataTTL = cfg.OTP.TTL

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		"unsupported jobs.backend",
		"otp.temp_data_ttl must be longer than otp.ttl",
		"email.smtp.host is required",
		"object_storage.s3.bucket is required",
		"auth.jwt_secret must be at least 32 characters",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) < 5 {
		t.Errorf("expected joined errors, got %T", err)
	}
}

func TestRedactSettings_SensitiveKeys(t *testing.T) {
	settings := map[string]interface{}{
		"auth":  map[string]interface{}{"jwt_secret": "abc", "issuer": "learnhub"},
		"redis": map[string]interface{}{"url": "redis://localhost:6379"},
		"email": map[string]interface{}{"mailgun": map[string]interface{}{"token": ""}},
	}
	redacted := RedactSettings(settings, nil)

	auth := redacted["auth"].(map[string]interface{})
	if auth["jwt_secret"] != "***" || auth["issuer"] != "learnhub" {
		t.Errorf("unexpected auth redaction: %v", auth)
	}
	mailgun := redacted["email"].(map[string]interface{})["mailgun"].(map[string]interface{})
	if mailgun["token"] != "" {
		t.Errorf("empty secrets stay empty, got %v", mailgun["token"])
	}
}

func TestViperLoader_ExplicitSecretsFile(t *testing.T) {
	setRequiredEnv(t)

	tests := []struct {
		name    string
		value   func(t *testing.T) string
		wantErr string
	}{
		{name: "empty", value: func(*testing.T) string { return " " }, wantErr: "set but empty"},
		{name: "missing", value: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }, wantErr: "not accessible"},
		{name: "directory", value: func(t *testing.T) string { return t.TempDir() }, wantErr: "is a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LEARNHUB_SECRETS_FILE", tt.value(t))
			_, err := NewViperLoader("", "LEARNHUB").LoadWithSecrets()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestViperLoader_SecretsNextToConfigFile(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	configFile := filepath.Join(dir, "learnhub.yml")
	if err := os.WriteFile(configFile, []byte("http:\n  port: 8088\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yml"), []byte("email:\n  mailgun:\n    token: key-123\n"), 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	cfg, err := NewViperLoader(configFile, "LEARNHUB").LoadWithSecrets()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Email.Mailgun.Token != "key-123" || cfg.HTTP.Port != 8088 {
		t.Fatalf("expected config and secrets merged, got token=%q port=%d", cfg.Email.Mailgun.Token, cfg.HTTP.Port)
	}
}
