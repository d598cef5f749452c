package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lightning LightningConfig
	Ticket    TicketConfig
	JWT       JWTConfig
	Log       LogConfig
	Kafka     KafkaConfig
}

type ServerConfig struct {
	HTTPPort        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	IOTimeout    time.Duration
}

type LightningConfig struct {
	Host              string
	TLSCertPath       string
	MacaroonPath      string
	Network           string
	InvoiceExpiry     time.Duration
	CallTimeout       time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	ReconnectDelay    time.Duration
	SettlementTTL     time.Duration
	SubscribeSettled  bool
	MaxRecvMsgSizeMiB int
}

type TicketConfig struct {
	PendingTTL              time.Duration
	ExpiryInterval          time.Duration
	ReleaseCapacityOnExpiry bool
	ClaimPollInterval       time.Duration
	PaymentPollInterval     time.Duration
}

type KafkaConfig struct {
	Brokers              []string
	Version              string
	ClientID             string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
}

// JWTConfig signs the check-in tokens rendered as ticket QR codes.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:        getEnvAsInt("SERVER_HTTP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", DriverSQLite),
			DSN:             getEnv("DB_DSN", "file:tickets.db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			PingTimeout:     getEnvAsDuration("DB_PING_TIMEOUT", 5*time.Second),
			Migrate:         getEnvAsBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", true),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			IOTimeout:    getEnvAsDuration("REDIS_IO_TIMEOUT", 3*time.Second),
		},
		Lightning: LightningConfig{
			Host:              getEnv("LND_HOST", "localhost:10009"),
			TLSCertPath:       getEnv("LND_TLS_CERT_PATH", "tls.cert"),
			MacaroonPath:      getEnv("LND_MACAROON_PATH", "invoice.macaroon"),
			Network:           getEnv("LND_NETWORK", "regtest"),
			InvoiceExpiry:     getEnvAsDuration("LND_INVOICE_EXPIRY", time.Hour),
			CallTimeout:       getEnvAsDuration("LND_CALL_TIMEOUT", 10*time.Second),
			RetryAttempts:     getEnvAsInt("LND_RETRY_ATTEMPTS", 3),
			RetryDelay:        getEnvAsDuration("LND_RETRY_DELAY", time.Second),
			ReconnectDelay:    getEnvAsDuration("LND_RECONNECT_DELAY", 2*time.Second),
			SettlementTTL:     getEnvAsDuration("LND_SETTLEMENT_CACHE_TTL", 24*time.Hour),
			SubscribeSettled:  getEnvAsBool("LND_SUBSCRIBE_SETTLED", true),
			MaxRecvMsgSizeMiB: getEnvAsInt("LND_MAX_RECV_MSG_SIZE_MIB", 50),
		},
		Ticket: TicketConfig{
			PendingTTL:              getEnvAsDuration("TICKET_PENDING_TTL", time.Hour),
			ExpiryInterval:          getEnvAsDuration("TICKET_EXPIRY_INTERVAL", time.Minute),
			ReleaseCapacityOnExpiry: getEnvAsBool("TICKET_RELEASE_CAPACITY_ON_EXPIRY", true),
			ClaimPollInterval:       getEnvAsDuration("TICKET_CLAIM_POLL_INTERVAL", 3*time.Second),
			PaymentPollInterval:     getEnvAsDuration("TICKET_PAYMENT_POLL_INTERVAL", 5*time.Second),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "jwt-secret"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 7*24*time.Hour),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Version:              getEnv("KAFKA_VERSION", "2.8.0"),
			ClientID:             getEnv("KAFKA_CLIENT_ID", "ticket-service"),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "ticket-service"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.HTTPPort)
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Lightning.Host == "" {
		return fmt.Errorf("lnd host is required")
	}

	if c.Lightning.RetryAttempts < 1 {
		return fmt.Errorf("lnd retry attempts must be at least 1, got %d", c.Lightning.RetryAttempts)
	}

	if c.Ticket.PendingTTL <= 0 {
		return fmt.Errorf("ticket pending TTL must be positive")
	}

	if c.Lightning.InvoiceExpiry > c.Ticket.PendingTTL {
		return fmt.Errorf("invoice expiry %s exceeds pending ticket TTL %s",
			c.Lightning.InvoiceExpiry, c.Ticket.PendingTTL)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "jwt-secret" {
		if c.Env == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
