package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// RiskThresholds: пороги одной проверки риска отмены турнира.
type RiskThresholds struct {
	HighRegistrations int
	RevenueThreshold  decimal.Decimal
	RecentWindow      time.Duration
}

// R2Config: доступ к бакету Cloudflare R2 для доказательств возврата.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Enabled reports whether every R2 setting is present.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != "" && c.PublicBaseURL != ""
}

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	CORSOrigins  []string

	PlatformFeePercent decimal.Decimal
	InstallmentSplit   [2]decimal.Decimal

	AssessmentRisk RiskThresholds
	ProtectionRisk RiskThresholds

	FanOutConcurrency    int
	FanOutResumeInterval time.Duration

	R2 R2Config
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.Getenv)
}

// FromLookup builds the config from an arbitrary variable source.
func FromLookup(getenv func(string) string) (*Config, error) {
	l := loader{getenv: getenv}

	cfg := &Config{
		DatabaseURL:  l.required("DATABASE_URL"),
		JWTSecretKey: l.required("JWT_SECRET_KEY"),
		ServerPort:   l.integer("SERVER_PORT", 8080),
		CORSOrigins:  l.list("CORS_ALLOWED_ORIGINS", []string{"*"}),

		PlatformFeePercent: l.decimal("PLATFORM_FEE_PERCENT", "5"),
		InstallmentSplit: [2]decimal.Decimal{
			l.decimal("PAYOUT_INSTALLMENT1_PERCENT", "30"),
			l.decimal("PAYOUT_INSTALLMENT2_PERCENT", "70"),
		},

		AssessmentRisk: RiskThresholds{
			HighRegistrations: l.integer("RISK_ASSESSMENT_HIGH_REGISTRATIONS", 50),
			RevenueThreshold:  l.decimal("RISK_REVENUE_THRESHOLD", "5000"),
			RecentWindow:      l.duration("RISK_RECENT_WINDOW", 24*time.Hour),
		},
		ProtectionRisk: RiskThresholds{
			HighRegistrations: l.integer("RISK_PROTECTION_HIGH_REGISTRATIONS", 10),
			RevenueThreshold:  l.decimal("RISK_REVENUE_THRESHOLD", "5000"),
			RecentWindow:      l.duration("RISK_RECENT_WINDOW", 24*time.Hour),
		},

		FanOutConcurrency:    l.integer("FANOUT_CONCURRENCY", 8),
		FanOutResumeInterval: l.duration("FANOUT_RESUME_INTERVAL", time.Minute),

		R2: R2Config{
			AccountID:       getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
		},
	}
	if l.err != nil {
		return nil, l.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	hundred := decimal.NewFromInt(100)
	if c.PlatformFeePercent.IsNegative() || c.PlatformFeePercent.GreaterThan(hundred) {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be within [0, 100], got %s", c.PlatformFeePercent)
	}
	if c.InstallmentSplit[0].IsNegative() || c.InstallmentSplit[1].IsNegative() ||
		!c.InstallmentSplit[0].Add(c.InstallmentSplit[1]).Equal(hundred) {
		return fmt.Errorf("payout installment percents must be non-negative and sum to 100, got %s + %s",
			c.InstallmentSplit[0], c.InstallmentSplit[1])
	}
	for name, r := range map[string]RiskThresholds{"assessment": c.AssessmentRisk, "protection": c.ProtectionRisk} {
		if r.HighRegistrations <= 0 || r.RevenueThreshold.IsNegative() || r.RecentWindow <= 0 {
			return fmt.Errorf("invalid %s risk thresholds: %+v", name, r)
		}
	}
	if c.FanOutConcurrency <= 0 {
		return fmt.Errorf("FANOUT_CONCURRENCY must be positive, got %d", c.FanOutConcurrency)
	}
	if c.FanOutResumeInterval <= 0 {
		return fmt.Errorf("FANOUT_RESUME_INTERVAL must be positive, got %s", c.FanOutResumeInterval)
	}
	return nil
}

// loader запоминает первую ошибку разбора, чтобы не проверять каждую переменную.
type loader struct {
	getenv func(string) string
	err    error
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *loader) required(key string) string {
	v := l.getenv(key)
	if v == "" {
		l.fail(fmt.Errorf("%s environment variable is not set", key))
	}
	return v
}

func (l *loader) integer(key string, def int) int {
	v := l.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s environment variable: %w", key, err))
	}
	return n
}

func (l *loader) decimal(key, def string) decimal.Decimal {
	v := l.getenv(key)
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s environment variable: %w", key, err))
	}
	return d
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := l.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s environment variable: %w", key, err))
	}
	return d
}

func (l *loader) list(key string, def []string) []string {
	v := l.getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
