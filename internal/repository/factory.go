package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wellbeing-companion/internal/config"
	"wellbeing-companion/internal/db"
)

// NewChatStore construye el store elegido por STORE_DRIVER.
func NewChatStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ChatStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Info("chat store ready", zap.String("driver", cfg.StoreDriver))
		return NewPgChatRepository(pool), nil
	case config.StoreDriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		logger.Info("chat store ready", zap.String("driver", cfg.StoreDriver), zap.String("path", cfg.SQLitePath))
		return NewSQLiteChatRepository(conn), nil
	case config.StoreDriverMemory:
		logger.Warn("chat store is in-memory; history is lost on restart")
		return NewMemoryChatRepository(), nil
	default:
		return nil, config.ErrUnknownStoreDriver
	}
}
