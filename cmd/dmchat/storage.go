package main

import (
	"context"
	"fmt"
	"log/slog"

	"dmchat/internal/app/services/attachments"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
	"dmchat/internal/infra/broker/kafka"
	"dmchat/internal/infra/config"
	"dmchat/internal/infra/db/mongo"
	"dmchat/internal/infra/db/mysql"
	"dmchat/internal/infra/storage/memory"
	"dmchat/internal/infra/storage/s3"
)

// storage holds the repositories of the configured driver. inbox is nil for
// drivers without event deduplication.
type storage struct {
	users         domainuser.Repository
	conversations domainchat.ConversationRepository
	messages      domainchat.MessageRepository
	inbox         kafka.Inbox
	ping          func(ctx context.Context) error
	close         func(logger *slog.Logger)
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		logger.Info("storage ready", "driver", cfg.StorageDriver, "database", cfg.MongoDB)
		return storage{
			users:         mongo.NewUserRepository(client.DB),
			conversations: mongo.NewConversationRepository(client.DB),
			messages:      mongo.NewMessageRepository(client.DB),
			inbox:         mongo.NewInbox(client.DB, "account-events"),
			ping:          client.Ping,
			close: func(logger *slog.Logger) {
				if err := client.Close(context.Background()); err != nil {
					logger.Warn("mongo close failed", "error", err)
				}
			},
		}, nil
	case config.DriverMySQL:
		client, err := mysql.Open(cfg.MySQLDSN, logger.With("component", "gorm"))
		if err != nil {
			return storage{}, err
		}
		if err := client.Migrate(); err != nil {
			_ = client.Close()
			return storage{}, fmt.Errorf("mysql migrate: %w", err)
		}
		logger.Info("storage ready", "driver", cfg.StorageDriver)
		return storage{
			users:         mysql.NewUserRepository(client.DB),
			conversations: mysql.NewConversationRepository(client.DB),
			messages:      mysql.NewMessageRepository(client.DB),
			ping:          client.Ping,
			close: func(logger *slog.Logger) {
				if err := client.Close(); err != nil {
					logger.Warn("mysql close failed", "error", err)
				}
			},
		}, nil
	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		return storage{
			users:         memory.NewUserRepository(),
			conversations: memory.NewConversationRepository(),
			messages:      memory.NewMessageRepository(),
			ping:          func(context.Context) error { return nil },
			close:         func(*slog.Logger) {},
		}, nil
	}
}

type objectStorage struct {
	storage attachments.ObjectStorage
	ping    func(ctx context.Context) error
}

// openObjectStorage falls back to a store that rejects uploads when S3 is not
// configured. Text messages keep working.
func openObjectStorage(cfg config.Config, logger *slog.Logger) (objectStorage, error) {
	if !cfg.S3Enabled() {
		logger.Warn("object storage not configured, attachments are disabled")
		return objectStorage{
			storage: s3.NoopStorage{},
			ping:    func(context.Context) error { return nil },
		}, nil
	}
	client, err := s3.NewClient(s3.Options{
		Endpoint:       cfg.S3Endpoint,
		PublicEndpoint: cfg.S3PublicEndpoint,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		Bucket:         cfg.S3Bucket,
		UseSSL:         cfg.S3UseSSL,
	}, logger.With("component", "s3"))
	if err != nil {
		return objectStorage{}, err
	}
	return objectStorage{storage: client, ping: client.Ping}, nil
}
