package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dmchat/internal/infra/config"
)

func TestFromEnvironDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.FromEnviron()
	req.NoError(err)
	req.Equal("dev", cfg.Env)
	req.Equal(":8080", cfg.HTTPAddr)
	req.Equal(config.DriverMemory, cfg.StorageDriver)
	req.Equal(time.Hour, cfg.JWTTTL)
	req.Equal(60*time.Second, cfg.WSIdleTimeout)
	req.Equal(64, cfg.WSSendBuffer)
	req.Equal(int64(5<<20), cfg.MaxUploadBytes)
	req.False(cfg.KafkaEnabled())
	req.False(cfg.S3Enabled())
}

func TestFromEnvironParsesOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("WS_IDLE_TIMEOUT", "90s")
	t.Setenv("S3_ENDPOINT", "localhost:9000")

	cfg, err := config.FromEnviron()
	req.NoError(err)
	req.Equal(config.DriverMongo, cfg.StorageDriver)
	req.Equal([]string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	req.Equal(90*time.Second, cfg.WSIdleTimeout)
	req.Equal("localhost:9000", cfg.S3PublicEndpoint)
	req.True(cfg.KafkaEnabled())
}

func TestFromEnvironValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		err  error
	}{
		{name: "missing secret", env: map[string]string{}, err: config.ErrJWTSecretRequired},
		{name: "unknown driver", env: map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "redis"}, err: config.ErrUnknownDriver},
		{name: "mongo without uri", env: map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "mongo"}, err: config.ErrMongoURIRequired},
		{name: "mysql without dsn", env: map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "mysql"}, err: config.ErrMySQLDSNRequired},
		{name: "zero buffer", env: map[string]string{"JWT_SECRET": "s", "WS_SEND_BUFFER": "0"}, err: config.ErrNonPositive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.FromEnviron()
			require.ErrorIs(t, err, tc.err)
		})
	}
}
