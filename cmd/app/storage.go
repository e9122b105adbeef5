package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/todo-list/internal/config"
	"github.com/BuzzLyutic/todo-list/internal/repo"
)

// openStorage создает хранилище по STORAGE_DRIVER
func openStorage(ctx context.Context, cfg config.Config) (repo.ListStorage, error) {
	switch cfg.StorageDriver {
	case config.DriverFile:
		st, err := repo.NewFileStorage(cfg.StoragePath, cfg.LockTimeout)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		return repo.NewMemoryStorage(), nil
	case config.DriverSQLite:
		st, err := repo.OpenSQLite(cfg.StoragePath, cfg.ListName, cfg.LockTimeout)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverMySQL:
		st, err := repo.OpenMySQL(ctx, cfg.DatabaseURL, cfg.ListName, cfg.LockTimeout)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (repo.ListStorage, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL) // Создаем новое соединение к БД
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil { // Пытаемся пингануть БД
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	st, err := repo.NewPostgresStorage(ctx, pool, cfg.ListName, cfg.LockTimeout)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil // пул закрывается в st.Close
}
