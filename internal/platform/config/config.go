package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration. Every key can be overridden with
// an UNIKYC_ prefixed environment variable (dots become underscores).
type Config struct {
	ServiceName string    `mapstructure:"service_name"`
	Env         string    `mapstructure:"env"`
	Server      Server    `mapstructure:"server"`
	Log         Log       `mapstructure:"log"`
	Postgres    Postgres  `mapstructure:"postgres"`
	Redis       Redis     `mapstructure:"redis"`
	Kafka       Kafka     `mapstructure:"kafka"`
	Storage     Storage   `mapstructure:"storage"`
	Chain       Chain     `mapstructure:"chain"`
	KYC         KYC       `mapstructure:"kyc"`
	Auth        Auth      `mapstructure:"auth"`
	RateLimit   RateLimit `mapstructure:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Postgres is optional; an empty URL selects the in-memory record store.
type Postgres struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Redis is optional; an empty URL keeps request tracking in memory and disables the name cache.
type Redis struct {
	URL          string        `mapstructure:"url"`
	NameCacheTTL time.Duration `mapstructure:"name_cache_ttl"`
}

// Kafka is optional; with no brokers the callback relay and audit sink are disabled.
type Kafka struct {
	Brokers        []string `mapstructure:"brokers"`
	CallbackTopic  string   `mapstructure:"callback_topic"`
	AuditTopic     string   `mapstructure:"audit_topic"`
	ConsumerGroup  string   `mapstructure:"consumer_group"`
	CreateTopics   bool     `mapstructure:"create_topics"`
	TopicPartition int32    `mapstructure:"topic_partitions"`
}

type Storage struct {
	Backend string `mapstructure:"backend"` // memory | s3
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Region  string `mapstructure:"region"`
	// Endpoint overrides the S3 endpoint (localstack, minio).
	Endpoint string `mapstructure:"endpoint"`
}

// Chain configures the simulated ledger and the unlock poller.
type Chain struct {
	BlockTime    time.Duration `mapstructure:"block_time"`
	StartHeight  uint64        `mapstructure:"start_height"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type KYC struct {
	Validity       time.Duration `mapstructure:"validity"`
	TotalShares    int           `mapstructure:"total_shares"`
	RequiredShares int           `mapstructure:"required_shares"`
	GasBudget      uint64        `mapstructure:"gas_budget"`
	MinLiveness    float64       `mapstructure:"min_liveness"`
	// StaticNames seeds the development name service: label -> address.
	StaticNames map[string]string `mapstructure:"static_names"`
}

type Auth struct {
	JWTSigningKey string        `mapstructure:"jwt_signing_key"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminToken    string        `mapstructure:"admin_token"`
	WebhookToken  string        `mapstructure:"webhook_token"`
}

// RateLimit bounds unauthenticated status checks per client IP. Zero disables it.
type RateLimit struct {
	StatusRequests int           `mapstructure:"status_requests"`
	Window         time.Duration `mapstructure:"window"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UNIKYC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.KYC.RequiredShares < 2 || c.KYC.RequiredShares > c.KYC.TotalShares || c.KYC.TotalShares > 16 {
		return fmt.Errorf("kyc: invalid default scheme %d-of-%d", c.KYC.RequiredShares, c.KYC.TotalShares)
	}
	if c.KYC.Validity <= 0 {
		return fmt.Errorf("kyc: validity must be positive")
	}
	if c.Chain.BlockTime <= 0 {
		return fmt.Errorf("chain: block_time must be positive")
	}
	switch c.Storage.Backend {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage: bucket required for s3 backend")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if c.RateLimit.StatusRequests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit: window must be positive")
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("auth: jwt_signing_key required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "unikyc")
	v.SetDefault("env", "dev")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("log.level", "info")
	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.name_cache_ttl", "5m")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.callback_topic", "timelock.callbacks")
	v.SetDefault("kafka.audit_topic", "kyc.audit")
	v.SetDefault("kafka.consumer_group", "unikyc-callbacks")
	v.SetDefault("kafka.create_topics", false)
	v.SetDefault("kafka.topic_partitions", 3)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "kyc/")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("chain.block_time", "12s")
	v.SetDefault("chain.start_height", 1000)
	v.SetDefault("chain.poll_interval", "15s")
	v.SetDefault("kyc.validity", "8760h")
	v.SetDefault("kyc.total_shares", 5)
	v.SetDefault("kyc.required_shares", 3)
	v.SetDefault("kyc.gas_budget", 100000)
	v.SetDefault("kyc.min_liveness", 0.0)
	v.SetDefault("kyc.static_names", map[string]string{})
	// Development default; production deployments must override.
	v.SetDefault("auth.jwt_signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("auth.issuer", "unikyc")
	v.SetDefault("auth.audience", "unikyc-api")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.admin_token", "")
	v.SetDefault("auth.webhook_token", "")
	v.SetDefault("rate_limit.status_requests", 60)
	v.SetDefault("rate_limit.window", "1m")
}
