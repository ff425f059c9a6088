// Package otp issues and verifies one-time email codes and keeps pending
// registration data until the code is confirmed.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/learnhub/learnhub/pkg/email"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	redisstore "github.com/learnhub/learnhub/pkg/store/redis"
	"github.com/learnhub/learnhub/pkg/tasks"
)

// Defaults.
const (
	DefaultTTL         = 120 * time.Second
	DefaultTempDataTTL = 6 * time.Minute
	DefaultCodeDigits  = 4
	DefaultKeyPrefix   = "learnhub:otp"
	DefaultSubject     = "Verify your email"
)

// Store is the key/value store holding codes, locks and temp data.
// Missing keys are reported with redisstore.ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	AddJob(ctx context.Context, queueName, jobName string, payload any, opts ...jobs.JobOption) (*jobs.JobHandle, error)
}

// Renderer renders email bodies.
type Renderer interface {
	Render(name string, data map[string]interface{}) (string, error)
}

// Config configures the service.
type Config struct {
	TTL         time.Duration
	TempDataTTL time.Duration
	CodeDigits  int
	KeyPrefix   string
}

func (c *Config) normalize() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.TempDataTTL <= 0 {
		c.TempDataTTL = DefaultTempDataTTL
	}
	if c.CodeDigits <= 0 {
		c.CodeDigits = DefaultCodeDigits
	}
	c.KeyPrefix = strings.TrimRight(strings.TrimSpace(c.KeyPrefix), ":")
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
}

// Service issues and verifies codes. Each email has at most one live code; a
// resend overwrites it. The resend cooldown lasts as long as the code.
type Service struct {
	store    Store
	enqueuer Enqueuer
	renderer Renderer
	config   Config
	log      logger.Logger
	random   func(max *big.Int) (*big.Int, error)
}

// NewService creates an OTP service.
func NewService(store Store, enqueuer Enqueuer, renderer Renderer, cfg Config, log logger.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("otp store is required")
	}
	if enqueuer == nil {
		return nil, errors.New("job enqueuer is required")
	}
	if renderer == nil {
		return nil, errors.New("email renderer is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	cfg.normalize()
	if cfg.CodeDigits > 9 {
		return nil, fmt.Errorf("code digits must be at most 9, got %d", cfg.CodeDigits)
	}
	return &Service{
		store:    store,
		enqueuer: enqueuer,
		renderer: renderer,
		config:   cfg,
		log:      log,
		random:   func(max *big.Int) (*big.Int, error) { return rand.Int(rand.Reader, max) },
	}, nil
}

// TTL is the lifetime of a code and of the resend cooldown.
func (s *Service) TTL() time.Duration { return s.config.TTL }

// SendOTP issues a new code for email and queues the email carrying it. While a
// previous code's cooldown is active it fails with *RateLimitError.
func (s *Service) SendOTP(ctx context.Context, address, name, subject string) error {
	address = normalizeEmail(address)
	if address == "" {
		return otpError(ErrInvalidArgument, "email is required")
	}
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	log := s.log.WithContext(ctx)

	if err := s.acquireLock(ctx, address); err != nil {
		var rle *RateLimitError
		if errors.As(err, &rle) {
			otpRateLimitedTotal.Inc()
			log.Info("otp request rate limited", "remaining", rle.Remaining.String())
		}
		return err
	}

	if err := s.issue(ctx, address, name, subject); err != nil {
		if relErr := s.store.Delete(context.WithoutCancel(ctx), s.lockKey(address)); relErr != nil {
			log.Warn("failed to release otp lock", "error", relErr)
		}
		return err
	}
	otpIssuedTotal.Inc()
	log.Info("otp issued", "ttl", s.config.TTL.String())
	return nil
}

func (s *Service) acquireLock(ctx context.Context, address string) error {
	key := s.lockKey(address)
	for i := 0; i < 2; i++ {
		acquired, err := s.store.SetNX(ctx, key, "1", s.config.TTL)
		if err != nil {
			return fmt.Errorf("acquire otp lock: %w", err)
		}
		if acquired {
			return nil
		}
		remaining, err := s.store.TTL(ctx, key)
		if errors.Is(err, redisstore.ErrNotFound) {
			// Expired between the two calls.
			continue
		}
		if err != nil {
			return fmt.Errorf("read otp lock ttl: %w", err)
		}
		if remaining <= 0 {
			remaining = s.config.TTL
		}
		return &RateLimitError{Remaining: remaining}
	}
	return &RateLimitError{Remaining: time.Second}
}

func (s *Service) issue(ctx context.Context, address, name, subject string) error {
	code, err := s.generateCode()
	if err != nil {
		return err
	}
	if err := s.store.SetWithTTL(ctx, s.codeKey(address), code, s.config.TTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	html, err := s.renderer.Render(email.TemplateOTP, map[string]interface{}{
		"name":      displayName(name),
		"code":      code,
		"expiresIn": humanDuration(s.config.TTL),
	})
	if err != nil {
		return err
	}
	_, err = s.enqueuer.AddJob(ctx, tasks.QueueEmail, tasks.JobSendEmail, tasks.EmailPayload{
		To:      address,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("queue otp email: %w", err)
	}
	return nil
}

// VerifyOTP consumes the code when it matches. Wrong, expired and missing codes
// all report false without an error.
func (s *Service) VerifyOTP(ctx context.Context, address, code string) (bool, error) {
	address = normalizeEmail(address)
	code = strings.TrimSpace(code)
	if address == "" || code == "" {
		otpVerificationsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}
	ok, err := s.store.CompareAndDelete(ctx, s.codeKey(address), code)
	if err != nil {
		otpVerificationsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		otpVerificationsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}
	otpVerificationsTotal.WithLabelValues("verified").Inc()
	return true, nil
}

// Remaining returns the cooldown left for email, zero when none is active.
func (s *Service) Remaining(ctx context.Context, address string) (time.Duration, error) {
	ttl, err := s.store.TTL(ctx, s.lockKey(normalizeEmail(address)))
	if errors.Is(err, redisstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// StoreTempData keeps a pending registration form for the temp data TTL.
func (s *Service) StoreTempData(ctx context.Context, address string, data any) error {
	address = normalizeEmail(address)
	if address == "" {
		return otpError(ErrInvalidArgument, "email is required")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: marshal temp data: %w", ErrInvalidArgument, err)
	}
	if err := s.store.SetWithTTL(ctx, s.tempKey(address), string(raw), s.config.TempDataTTL); err != nil {
		return fmt.Errorf("store temp data: %w", err)
	}
	return nil
}

// GetTempData decodes the pending registration form into out, or returns ErrNotFound.
func (s *Service) GetTempData(ctx context.Context, address string, out any) error {
	raw, err := s.store.Get(ctx, s.tempKey(normalizeEmail(address)))
	if errors.Is(err, redisstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load temp data: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode temp data: %w", err)
	}
	return nil
}

// DeleteTempData removes the pending registration form.
func (s *Service) DeleteTempData(ctx context.Context, address string) error {
	return s.store.Delete(ctx, s.tempKey(normalizeEmail(address)))
}

func (s *Service) generateCode() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.config.CodeDigits)), nil)
	n, err := s.random(max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", s.config.CodeDigits, n.Int64()), nil
}

func (s *Service) codeKey(address string) string { return s.config.KeyPrefix + ":code:" + address }
func (s *Service) lockKey(address string) string { return s.config.KeyPrefix + ":lock:" + address }
func (s *Service) tempKey(address string) string {
	return s.config.KeyPrefix + ":registration:" + address
}

func normalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "there"
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
	return fmt.Sprintf("%d seconds", ceilSeconds(d))
}
