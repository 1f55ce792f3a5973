package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type Client struct {
	DB *gorm.DB
}

// Open connects with the given DSN. Duplicate key errors are translated to
// gorm.ErrDuplicatedKey so repositories can map them to domain errors.
func Open(dsn string, logger *slog.Logger) (*Client, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(logger, 200*time.Millisecond),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql: get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return &Client{DB: db}, nil
}

// Migrate creates or updates the tables.
func (c *Client) Migrate() error {
	return c.DB.AutoMigrate(&userModel{}, &conversationModel{}, &messageModel{})
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
