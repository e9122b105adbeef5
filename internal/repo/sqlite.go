package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS task_lists (
	name       TEXT PRIMARY KEY,
	items      TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL
);`

const sqliteGrace = time.Second

// SQLiteStorage хранит список в SQLite (pure-Go драйвер, без CGO).
// Транзакции открываются как BEGIN IMMEDIATE, так что Modify держит
// блокировку записи базы на все чтение-проверку-запись.
type SQLiteStorage struct {
	db      *sql.DB
	name    string
	timeout time.Duration
}

// OpenSQLite открывает (или создает) базу по пути path
func OpenSQLite(path, name string, timeout time.Duration) (*SQLiteStorage, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_txlock=immediate", path, timeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO task_lists (name, items, updated_at) VALUES (?, '[]', ?)`,
		name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed list %q: %w", name, err)
	}

	return &SQLiteStorage{db: db, name: name, timeout: timeout}, nil
}

func (s *SQLiteStorage) Read(ctx context.Context) ([]string, error) {
	var tasks []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		tasks, err = s.load(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *SQLiteStorage) Write(ctx context.Context, tasks []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.store(ctx, tx, tasks)
	})
}

func (s *SQLiteStorage) Modify(ctx context.Context, fn ModifyFunc) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
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

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	// Контекст длиннее busy_timeout: таймаут блокировки приходит как SQLITE_BUSY
	ctx, cancel := context.WithTimeout(ctx, s.timeout+sqliteGrace)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: begin: %w", ErrLockTimeout, err)
		}
		return s.mapError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.mapError("commit", err)
	}
	return nil
}

func (s *SQLiteStorage) load(ctx context.Context, tx *sql.Tx) ([]string, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT items FROM task_lists WHERE name = ?`, s.name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, s.mapError("select", err)
	}
	return decodeList([]byte(raw))
}

func (s *SQLiteStorage) store(ctx context.Context, tx *sql.Tx, tasks []string) error {
	data, err := encodeList(tasks)
	if err != nil {
		return unavailable("encode", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_lists (name, items, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET items = excluded.items, updated_at = excluded.updated_at`,
		s.name, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return s.mapError("upsert", err)
	}
	return nil
}

func (s *SQLiteStorage) mapError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrLockTimeout, op)
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: %s", ErrLockTimeout, op)
	}
	return unavailable(op, err)
}
