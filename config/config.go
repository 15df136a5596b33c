package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"

	"github.com/vukmarkovic/Europace-sub000/pkg/matching"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover"`
	AppEnv                        string   `env:"APP_ENV" env-default:"local"`
	AppVersion                    string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"HTTP_PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName    string `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int    `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce      int    `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka
	KafkaEnabled       bool     `env:"KAFKA_ENABLED" env-default:"true"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaSyncTopic     string   `env:"KAFKA_SYNC_TOPIC" env-default:"clover.sync-tasks"`
	KafkaResultTopic   string   `env:"KAFKA_RESULT_TOPIC" env-default:"clover.sync-results"`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover"`
	KafkaCompression   string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Processor
	ProcessorTimeoutSeconds int `env:"PROCESSOR_TIMEOUT_SECONDS" env-default:"60"`

	// Auth Enabled - when false, allows X-Tenant-ID and X-User-ID headers for testing
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Enable OTLP tracing export
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" env-default:"true"`

	// Bitrix24 application credentials
	BitrixClientID     string        `env:"BITRIX_CLIENT_ID" env-default:""`
	BitrixClientSecret string        `env:"BITRIX_CLIENT_SECRET" env-default:""`
	BitrixOAuthURL     string        `env:"BITRIX_OAUTH_URL" env-default:"https://oauth.bitrix.info/oauth/token/"`
	BitrixTimeout      time.Duration `env:"BITRIX_TIMEOUT" env-default:"30s"`

	// Europace API
	EuropaceTokenURL       string        `env:"EUROPACE_TOKEN_URL" env-default:"https://api.europace.de/auth/access-token"`
	EuropaceAPIURL         string        `env:"EUROPACE_API_URL" env-default:"https://api.europace.de"`
	EuropaceSignInURL      string        `env:"EUROPACE_SIGNIN_URL" env-default:"https://www.europace2.de/login"`
	EuropaceTokenPath      string        `env:"EUROPACE_TOKEN_PATH" env-default:"access_token"`
	EuropaceCaseIDPath     string        `env:"EUROPACE_CASE_ID_PATH" env-default:"vorgangsnummer"`
	EuropaceClientID       string        `env:"EUROPACE_CLIENT_ID" env-default:""`
	EuropaceClientSecret   string        `env:"EUROPACE_CLIENT_SECRET" env-default:""`
	EuropaceDefaultPartner string        `env:"EUROPACE_DEFAULT_PARTNER_ID" env-default:""`
	EuropaceTimeout        time.Duration `env:"EUROPACE_TIMEOUT" env-default:"30s"`

	// Matching
	MatchingDefaultUTCOffset string `env:"MATCHING_DEFAULT_UTC_OFFSET" env-default:"+01:00"`
	MatchingDefaultPhoneCode string `env:"MATCHING_DEFAULT_PHONE_CODE" env-default:"+49"`
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	// a missing .env is normal outside local development
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		errs = append(errs, errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set"))
	}
	if _, err := matching.ParseUTCOffset(c.MatchingDefaultUTCOffset); err != nil {
		errs = append(errs, fmt.Errorf("MATCHING_DEFAULT_UTC_OFFSET: %w", err))
	}
	for name, raw := range map[string]string{
		"EUROPACE_TOKEN_URL":  c.EuropaceTokenURL,
		"EUROPACE_API_URL":    c.EuropaceAPIURL,
		"EUROPACE_SIGNIN_URL": c.EuropaceSignInURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute url, got %q", name, raw))
		}
	}
	if c.DatabaseMigrationVersion < 0 {
		errs = append(errs, fmt.Errorf("DB_MIGRATION_VERSION must not be negative, got %d", c.DatabaseMigrationVersion))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsLocal() bool {
	return c.AppEnv == "local"
}

// DatabaseDSN builds the postgres connection string.
func (c *Config) DatabaseDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DatabaseUserName, c.DatabasePassword),
		Host:     c.DatabaseHost + ":" + c.DatabasePort,
		Path:     c.DatabaseName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DatabaseSSLMode),
	}
	return u.String()
}
