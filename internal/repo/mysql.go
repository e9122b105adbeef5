package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS task_lists (
	name       VARCHAR(191) NOT NULL PRIMARY KEY,
	items      JSON NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// MySQLStorage использует именованную блокировку GET_LOCK на выделенном соединении
type MySQLStorage struct {
	db      *sql.DB
	name    string
	timeout time.Duration
}

func OpenMySQL(ctx context.Context, dsn, name string, timeout time.Duration) (*MySQLStorage, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT IGNORE INTO task_lists (name, items) VALUES (?, JSON_ARRAY())`, name,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed list %q: %w", name, err)
	}

	return &MySQLStorage{db: db, name: name, timeout: timeout}, nil
}

func (s *MySQLStorage) Read(ctx context.Context) ([]string, error) {
	var tasks []string
	err := s.withLock(ctx, func(conn *sql.Conn) error {
		var err error
		tasks, err = s.load(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *MySQLStorage) Write(ctx context.Context, tasks []string) error {
	return s.withLock(ctx, func(conn *sql.Conn) error {
		return s.store(ctx, conn, tasks)
	})
}

func (s *MySQLStorage) Modify(ctx context.Context, fn ModifyFunc) error {
	return s.withLock(ctx, func(conn *sql.Conn) error {
		current, err := s.load(ctx, conn)
		if err != nil {
			return err
		}
		next, err := fn(slices.Clone(current))
		if err != nil {
			return err
		}
		return s.store(ctx, conn, next)
	})
}

func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

func (s *MySQLStorage) lockName() string {
	return "todo-list:" + s.name
}

// withLock: GET_LOCK привязан к сессии, поэтому все запросы идут через одно соединение
func (s *MySQLStorage) withLock(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return unavailable("conn", err)
	}
	defer conn.Close()

	seconds := int(math.Ceil(s.timeout.Seconds()))
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, s.lockName(), seconds).Scan(&got); err != nil {
		return unavailable("get_lock", err)
	}
	if !got.Valid {
		return unavailable("get_lock", errors.New("GET_LOCK returned NULL"))
	}
	if got.Int64 == 0 {
		return fmt.Errorf("%w: %s", ErrLockTimeout, s.lockName())
	}
	defer func() {
		var released sql.NullInt64
		_ = conn.QueryRowContext(context.Background(), `SELECT RELEASE_LOCK(?)`, s.lockName()).Scan(&released)
	}()

	return fn(conn)
}

func (s *MySQLStorage) load(ctx context.Context, conn *sql.Conn) ([]string, error) {
	var raw []byte
	err := conn.QueryRowContext(ctx, `SELECT items FROM task_lists WHERE name = ?`, s.name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, unavailable("select", err)
	}
	return decodeList(raw)
}

func (s *MySQLStorage) store(ctx context.Context, conn *sql.Conn, tasks []string) error {
	data, err := encodeList(tasks)
	if err != nil {
		return unavailable("encode", err)
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO task_lists (name, items) VALUES (?, CAST(? AS JSON))
		ON DUPLICATE KEY UPDATE items = VALUES(items)`,
		s.name, string(data),
	)
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}
