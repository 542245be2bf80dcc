package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"wellbeing-companion/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Configuración razonable para ambientes iniciales.
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id                 TEXT PRIMARY KEY,
		device_id          TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL,
		ended_at           TIMESTAMPTZ,
		last_activity_at   TIMESTAMPTZ NOT NULL,
		crisis_flag        BOOLEAN NOT NULL DEFAULT FALSE,
		crisis_flag_reason TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_device_open ON chat_sessions (device_id, created_at DESC) WHERE ended_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES chat_sessions (id),
		seq            BIGINT NOT NULL,
		sender         TEXT NOT NULL,
		text           TEXT NOT NULL,
		safety_flag    TEXT NOT NULL DEFAULT 'none',
		suggested_tool TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		UNIQUE (session_id, seq)
	)`,
}

// EnsureSchema crea las tablas del chat si no existen.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
