package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ledgerpay/pkg/payment"
)

const envPrefix = "LEDGERPAY"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Referral  ReferralConfig  `mapstructure:"referral"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"` // requests per minute per client
}

func (s ServerConfig) IsProduction() bool { return s.Env == "production" }

type DatabaseConfig struct {
	// DSN selects the driver: "postgres://..." or "host=..." for postgres,
	// "file:..." or "*.db" for sqlite, anything else for mysql.
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret string        `mapstructure:"access_secret"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer       string        `mapstructure:"issuer"`
}

type ProvidersConfig struct {
	Timeout     time.Duration     `mapstructure:"timeout"`
	CryptoBot   CryptoBotConfig   `mapstructure:"cryptobot"`
	NOWPayments NOWPaymentsConfig `mapstructure:"nowpayments"`
	CrystalPay  CrystalPayConfig  `mapstructure:"crystalpay"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
}

type CryptoBotConfig struct {
	Token   string `mapstructure:"token"`
	Testnet bool   `mapstructure:"testnet"`
	BaseURL string `mapstructure:"base_url"`
}

type NOWPaymentsConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	CallbackURL string `mapstructure:"callback_url"`
	SuccessURL  string `mapstructure:"success_url"`
}

type CrystalPayConfig struct {
	Login       string `mapstructure:"login"`
	Secret      string `mapstructure:"secret"`
	BaseURL     string `mapstructure:"base_url"`
	CallbackURL string `mapstructure:"callback_url"`
	RedirectURL string `mapstructure:"redirect_url"`
}

type StripeConfig struct {
	SecretKey  string `mapstructure:"secret_key"`
	BaseURL    string `mapstructure:"base_url"`
	SuccessURL string `mapstructure:"success_url"`
	CancelURL  string `mapstructure:"cancel_url"`
}

type ReferralConfig struct {
	BonusBPS   int64 `mapstructure:"bonus_bps"`
	MaxBonuses int64 `mapstructure:"max_bonuses"` // 0 means every topup pays a bonus
}

type DispatchConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FirebaseConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// WebhookConfig.Secret enables the X-Webhook-Signature check when set.
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// AdminConfig seeds the first operator account on migrate.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8099")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("database.dsn", "file:ledgerpay.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", 24*time.Hour)
	v.SetDefault("jwt.issuer", "ledgerpay")

	v.SetDefault("providers.timeout", 30*time.Second)
	v.SetDefault("providers.cryptobot.token", "")
	v.SetDefault("providers.cryptobot.testnet", false)
	v.SetDefault("providers.cryptobot.base_url", "")
	v.SetDefault("providers.nowpayments.api_key", "")
	v.SetDefault("providers.nowpayments.base_url", "")
	v.SetDefault("providers.nowpayments.callback_url", "")
	v.SetDefault("providers.nowpayments.success_url", "")
	v.SetDefault("providers.crystalpay.login", "")
	v.SetDefault("providers.crystalpay.secret", "")
	v.SetDefault("providers.crystalpay.base_url", "")
	v.SetDefault("providers.crystalpay.callback_url", "")
	v.SetDefault("providers.crystalpay.redirect_url", "")
	v.SetDefault("providers.stripe.secret_key", "")
	v.SetDefault("providers.stripe.base_url", "")
	v.SetDefault("providers.stripe.success_url", "")
	v.SetDefault("providers.stripe.cancel_url", "")

	v.SetDefault("referral.bonus_bps", 1000)
	v.SetDefault("referral.max_bonuses", 0)

	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.queue_size", 256)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("firebase.credentials_file", "")

	v.SetDefault("telemetry.service_name", "ledgerpay")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", false)

	v.SetDefault("webhook.secret", "")

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}

// Load reads defaults, then the optional YAML file at path, then LEDGERPAY_*
// environment variables (e.g. LEDGERPAY_PROVIDERS_STRIPE_SECRET_KEY).
// An empty path looks for ./ledgerpay.yaml and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ledgerpay")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Referral.BonusBPS < 0 || c.Referral.BonusBPS > 10000 {
		return fmt.Errorf("config: referral.bonus_bps must be within 0..10000, got %d", c.Referral.BonusBPS)
	}
	if c.Referral.MaxBonuses < 0 {
		return fmt.Errorf("config: referral.max_bonuses must not be negative, got %d", c.Referral.MaxBonuses)
	}
	if c.Server.IsProduction() && c.JWT.AccessSecret == "change-me-in-production" {
		return errors.New("config: jwt.access_secret must be set in production")
	}
	if c.Dispatch.Workers <= 0 {
		c.Dispatch.Workers = 1
	}
	if c.Dispatch.QueueSize < 0 {
		c.Dispatch.QueueSize = 0
	}
	return nil
}

// Invoicers builds an adapter for every provider that has credentials.
func (p ProvidersConfig) Invoicers() []payment.Invoicer {
	var out []payment.Invoicer
	if p.CryptoBot.Token != "" {
		out = append(out, payment.NewCryptoBotProvider(payment.CryptoBotConfig{
			Token:   p.CryptoBot.Token,
			Testnet: p.CryptoBot.Testnet,
			BaseURL: p.CryptoBot.BaseURL,
			Timeout: p.Timeout,
		}))
	}
	if p.NOWPayments.APIKey != "" {
		out = append(out, payment.NewNOWPaymentsProvider(payment.NOWPaymentsConfig{
			APIKey:      p.NOWPayments.APIKey,
			BaseURL:     p.NOWPayments.BaseURL,
			CallbackURL: p.NOWPayments.CallbackURL,
			SuccessURL:  p.NOWPayments.SuccessURL,
			Timeout:     p.Timeout,
		}))
	}
	if p.CrystalPay.Login != "" {
		out = append(out, payment.NewCrystalPayProvider(payment.CrystalPayConfig{
			Login:       p.CrystalPay.Login,
			Secret:      p.CrystalPay.Secret,
			BaseURL:     p.CrystalPay.BaseURL,
			CallbackURL: p.CrystalPay.CallbackURL,
			RedirectURL: p.CrystalPay.RedirectURL,
			Timeout:     p.Timeout,
		}))
	}
	if p.Stripe.SecretKey != "" {
		out = append(out, payment.NewStripeProvider(payment.StripeConfig{
			SecretKey:  p.Stripe.SecretKey,
			BaseURL:    p.Stripe.BaseURL,
			SuccessURL: p.Stripe.SuccessURL,
			CancelURL:  p.Stripe.CancelURL,
			Timeout:    p.Timeout,
		}))
	}
	return out
}
