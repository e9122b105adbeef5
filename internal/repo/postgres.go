package repo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS task_lists (
	name       TEXT PRIMARY KEY,
	items      JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// lock_not_available: истек lock_timeout
const pgLockNotAvailable = "55P03"

const pgGrace = time.Second

// PostgresStorage держит список одной строкой таблицы task_lists.
// Каждая операция идет в транзакции под pg_advisory_xact_lock по имени списка.
type PostgresStorage struct { // Репозиторий для работы непосредственно с БД
	pool    *pgxpool.Pool
	name    string
	timeout time.Duration
}

func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool, name string, timeout time.Duration) (*PostgresStorage, error) { // Конструктор
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	s := &PostgresStorage{
		pool:    pool,
		name:    name,
		timeout: timeout,
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO task_lists (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, name); err != nil {
		return nil, fmt.Errorf("seed list %q: %w", name, err)
	}
	return s, nil
}

func (s *PostgresStorage) Read(ctx context.Context) ([]string, error) {
	var tasks []string
	err := s.withLock(ctx, func(tx pgx.Tx) error {
		var err error
		tasks, err = s.load(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStorage) Write(ctx context.Context, tasks []string) error {
	return s.withLock(ctx, func(tx pgx.Tx) error {
		return s.store(ctx, tx, tasks)
	})
}

func (s *PostgresStorage) Modify(ctx context.Context, fn ModifyFunc) error {
	return s.withLock(ctx, func(tx pgx.Tx) error {
		current, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(slices.Clone(current))
		if err != nil {
			return err
		}
		return s.store(ctx, tx, next)
	})
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStorage) withLock(ctx context.Context, fn func(pgx.Tx) error) error {
	// Ожидание свободного соединения тоже ограничено: lock_timeout плюс запас
	ctx, cancel := context.WithTimeout(ctx, s.timeout+pgGrace)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: begin: %w", ErrLockTimeout, err)
		}
		return s.mapError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockTimeout := fmt.Sprintf("%dms", s.timeout.Milliseconds())
	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, lockTimeout); err != nil {
		return s.mapError("set lock_timeout", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.name); err != nil {
		return s.mapError("advisory lock", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return s.mapError("commit", err)
	}
	return nil
}

func (s *PostgresStorage) load(ctx context.Context, tx pgx.Tx) ([]string, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT items FROM task_lists WHERE name = $1`, s.name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, s.mapError("select", err)
	}
	return decodeList(raw)
}

func (s *PostgresStorage) store(ctx context.Context, tx pgx.Tx, tasks []string) error {
	data, err := encodeList(tasks)
	if err != nil {
		return unavailable("encode", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO task_lists (name, items) VALUES ($1, $2::jsonb)
		ON CONFLICT (name) DO UPDATE SET items = EXCLUDED.items, updated_at = now()
	`, s.name, string(data))
	if err != nil {
		return s.mapError("upsert", err)
	}
	return nil
}

func (s *PostgresStorage) mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: %s", ErrLockTimeout, op)
	}
	return unavailable(op, err)
}
