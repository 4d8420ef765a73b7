package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Session   SessionConfig   `mapstructure:"session"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Auth      AuthConfig      `mapstructure:"auth"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Upstreams UpstreamsConfig `mapstructure:"upstreams"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	RateLimit    int      `mapstructure:"rate_limit"`
}

// GatewayConfig points at the payment gateway REST API. CallbackURL is where
// the gateway sends the customer after payment.
type GatewayConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	SecretKey   string `mapstructure:"secret_key"`
	CallbackURL string `mapstructure:"callback_url"`
	Integration string `mapstructure:"integration"`
	TestMode    bool   `mapstructure:"test_mode"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	CollectorURL string `mapstructure:"collector_url"`
	Environment  string `mapstructure:"environment"`
	Enabled      bool   `mapstructure:"enabled"`
}

// AuthConfig protects merchant-only endpoints. An empty secret leaves them open.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SMSConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Username string `mapstructure:"username"`
	Sender   string `mapstructure:"sender"`
	Sandbox  bool   `mapstructure:"sandbox"`
}

// UpstreamsConfig is where the api-gateway forwards traffic.
type UpstreamsConfig struct {
	CheckoutURL string        `mapstructure:"checkout_url"`
	ReceiptURL  string        `mapstructure:"receipt_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func Load(configName string) (*Config, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/checkout/")

	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 60)

	v.SetDefault("gateway.base_url", "http://localhost:8090")
	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.callback_url", "http://localhost:8080/payment/callback")
	v.SetDefault("gateway.integration", "multicurrency_checkout")
	v.SetDefault("gateway.test_mode", true)

	v.SetDefault("session.ttl", 30*time.Minute)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "checkout")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "checkout")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", "receipt-service")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.environment", "development")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.username", "sandbox")
	v.SetDefault("sms.sender", "")
	v.SetDefault("sms.sandbox", true)

	v.SetDefault("upstreams.checkout_url", "http://localhost:8080")
	v.SetDefault("upstreams.receipt_url", "http://localhost:8086")
	v.SetDefault("upstreams.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
