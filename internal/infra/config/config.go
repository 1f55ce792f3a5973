package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
)

var (
	ErrJWTSecretRequired = errors.New("config: JWT_SECRET is required")
	ErrUnknownDriver     = errors.New("config: unknown STORAGE_DRIVER")
	ErrMongoURIRequired  = errors.New("config: MONGO_URI is required for the mongo driver")
	ErrMySQLDSNRequired  = errors.New("config: MYSQL_DSN is required for the mysql driver")
	ErrNonPositive       = errors.New("config: value must be positive")
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `env:"APP_ENV,default=dev"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	StorageDriver string `env:"STORAGE_DRIVER,default=memory"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDB       string `env:"MONGO_DB,default=dmchat"`
	MySQLDSN      string `env:"MYSQL_DSN"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL,default=1h"`

	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3PublicEndpoint string `env:"S3_PUBLIC_ENDPOINT"`
	S3AccessKey      string `env:"S3_ACCESS_KEY"`
	S3SecretKey      string `env:"S3_SECRET_KEY"`
	S3Bucket         string `env:"S3_BUCKET,default=dmchat-attachments"`
	S3UseSSL         bool   `env:"S3_USE_SSL,default=false"`

	// KafkaBrokersRaw is a comma separated list, split into KafkaBrokers by Load.
	KafkaBrokersRaw  string `env:"KAFKA_BROKERS"`
	KafkaBrokers     []string
	KafkaTopicPrefix string `env:"KAFKA_TOPIC_PREFIX"`
	KafkaGroupID     string `env:"KAFKA_GROUP_ID,default=dmchat"`

	WSIdleTimeout time.Duration `env:"WS_IDLE_TIMEOUT,default=60s"`
	WSSendBuffer  int           `env:"WS_SEND_BUFFER,default=64"`

	MaxUploadBytes           int64         `env:"MAX_UPLOAD_BYTES,default=5242880"`
	AttachmentDestroyTimeout time.Duration `env:"ATTACHMENT_DESTROY_TIMEOUT,default=15s"`
	ShutdownTimeout          time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load parses configuration from the current environment. A .env file in the
// working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnviron()
}

// FromEnviron reads the process environment without touching .env files.
func FromEnviron() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.KafkaBrokers = splitList(c.KafkaBrokersRaw)
	if c.S3PublicEndpoint == "" {
		c.S3PublicEndpoint = c.S3Endpoint
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrJWTSecretRequired
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return ErrMongoURIRequired
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return ErrMySQLDSNRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StorageDriver)
	}

	positive := map[string]int64{
		"JWT_TTL":                    int64(c.JWTTTL),
		"WS_IDLE_TIMEOUT":            int64(c.WSIdleTimeout),
		"WS_SEND_BUFFER":             int64(c.WSSendBuffer),
		"MAX_UPLOAD_BYTES":           c.MaxUploadBytes,
		"ATTACHMENT_DESTROY_TIMEOUT": int64(c.AttachmentDestroyTimeout),
		"SHUTDOWN_TIMEOUT":           int64(c.ShutdownTimeout),
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s", ErrNonPositive, key)
		}
	}
	return nil
}

// S3Enabled reports whether object storage credentials were supplied.
func (c Config) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
