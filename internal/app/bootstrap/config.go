package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
)

// Config is the resolved runtime configuration for M43.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	KafkaBrokers      []string
	KafkaGroupID      string
	TradeTopics       []string
	TopicByEvent      map[string]string
	ConsumerInterval  time.Duration
	ConsumeTradeFeeds bool

	Token                string
	Rates                domain.RateSchedule
	ReferralCodeLength   int
	ReferralCodeAttempts int
	StrictReferralCodes  bool
	TradeJobTTL          time.Duration
	EstimatedProcessing  string
	DefaultPageLimit     int
	MaxPageLimit         int

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// Rates travel as strings so decimal values never pass through float64.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Commission struct {
		Token     string `yaml:"token"`
		Cashback  string `yaml:"cashback_rate"`
		Level1    string `yaml:"level1_rate"`
		Level2    string `yaml:"level2_rate"`
		Level3    string `yaml:"level3_rate"`
		KOLDirect string `yaml:"kol_direct_rate"`
	} `yaml:"commission"`
	Referral struct {
		CodeLength  int  `yaml:"code_length"`
		StrictCodes bool `yaml:"strict_codes"`
	} `yaml:"referral"`
	Events struct {
		GroupID     string            `yaml:"group_id"`
		TradeTopics []string          `yaml:"trade_topics"`
		Topics      map[string]string `yaml:"topics"`
	} `yaml:"events"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID: "M43-Referral-Commission-Service",
		HTTPPort:  8080,
		GRPCPort:  9090,
		Token:     "XP",
		Rates: domain.RateSchedule{
			Cashback:  decimal.RequireFromString("0.10"),
			Level1:    decimal.RequireFromString("0.30"),
			Level2:    decimal.RequireFromString("0.03"),
			Level3:    decimal.RequireFromString("0.02"),
			KOLDirect: decimal.RequireFromString("0.50"),
		},
		ReferralCodeLength:   6,
		ReferralCodeAttempts: 5,
		TradeJobTTL:          time.Hour,
		EstimatedProcessing:  "5-10 seconds",
		DefaultPageLimit:     20,
		MaxPageLimit:         100,
		KafkaGroupID:         "m43-referral-commission",
		TradeTopics:          []string{domain.EventTradeExecuted},
		ConsumerInterval:     2 * time.Second,
		MaxDBConns:           20,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		OutboxClaimTTL:       30 * time.Second,
		OutboxMaxRetries:     5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Commission.Token != "" {
			cfg.Token = f.Commission.Token
		}
		if err := applyRate(&cfg.Rates.Cashback, f.Commission.Cashback); err != nil {
			return Config{}, err
		}
		if err := applyRate(&cfg.Rates.Level1, f.Commission.Level1); err != nil {
			return Config{}, err
		}
		if err := applyRate(&cfg.Rates.Level2, f.Commission.Level2); err != nil {
			return Config{}, err
		}
		if err := applyRate(&cfg.Rates.Level3, f.Commission.Level3); err != nil {
			return Config{}, err
		}
		if err := applyRate(&cfg.Rates.KOLDirect, f.Commission.KOLDirect); err != nil {
			return Config{}, err
		}
		if f.Referral.CodeLength > 0 {
			cfg.ReferralCodeLength = f.Referral.CodeLength
		}
		cfg.StrictReferralCodes = f.Referral.StrictCodes
		if f.Events.GroupID != "" {
			cfg.KafkaGroupID = f.Events.GroupID
		}
		if len(f.Events.TradeTopics) > 0 {
			cfg.TradeTopics = f.Events.TradeTopics
		}
		if len(f.Events.Topics) > 0 {
			cfg.TopicByEvent = f.Events.Topics
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaGroupID = envOrDefault("KAFKA_GROUP_ID", cfg.KafkaGroupID)
	cfg.TopicByEvent = envTopicMap("EVENT_TOPICS", cfg.TopicByEvent)
	cfg.Token = envOrDefault("COMMISSION_TOKEN", cfg.Token)
	cfg.StrictReferralCodes = envBool("STRICT_REFERRAL_CODES", cfg.StrictReferralCodes)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.ReferralCodeLength = envInt("REFERRAL_CODE_LENGTH", cfg.ReferralCodeLength)
	cfg.ReferralCodeAttempts = envInt("REFERRAL_CODE_ATTEMPTS", cfg.ReferralCodeAttempts)
	cfg.DefaultPageLimit = envInt("DEFAULT_PAGE_LIMIT", cfg.DefaultPageLimit)
	cfg.MaxPageLimit = envInt("MAX_PAGE_LIMIT", cfg.MaxPageLimit)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.TradeJobTTL = time.Duration(envInt("TRADE_JOB_TTL_SECONDS", int(cfg.TradeJobTTL.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ConsumerInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerInterval.Seconds()))) * time.Second

	for _, rate := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"cashback_rate", cfg.Rates.Cashback},
		{"level1_rate", cfg.Rates.Level1},
		{"level2_rate", cfg.Rates.Level2},
		{"level3_rate", cfg.Rates.Level3},
		{"kol_direct_rate", cfg.Rates.KOLDirect},
	} {
		if rate.value.IsNegative() || rate.value.GreaterThan(decimal.NewFromInt(1)) {
			return Config{}, fmt.Errorf("%s must be within [0,1], got %s", rate.name, rate.value)
		}
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}

	cfg.ConsumeTradeFeeds = len(cfg.KafkaBrokers) > 0
	return cfg, nil
}

func applyRate(dst *decimal.Decimal, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return fmt.Errorf("parse rate %q: %w", raw, err)
	}
	*dst = value
	return nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envTopicMap parses "event=topic" pairs from a comma-separated env var.
func envTopicMap(name string, fallback map[string]string) map[string]string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	mapped := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		event, topic, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || event == "" || topic == "" {
			continue
		}
		mapped[event] = topic
	}
	if len(mapped) == 0 {
		return fallback
	}
	return mapped
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
