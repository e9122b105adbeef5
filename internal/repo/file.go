package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockSuffix     = ".lock"
	lockRetryDelay = 50 * time.Millisecond
	filePerm       = 0o644
)

// FileStorage хранит список как JSON массив в одном файле.
// Соседний файл <path>.lock служит advisory блокировкой между процессами.
type FileStorage struct {
	path     string
	lockPath string
	timeout  time.Duration
}

func NewFileStorage(path string, timeout time.Duration) (*FileStorage, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStorage{
		path:     path,
		lockPath: path + lockSuffix,
		timeout:  timeout,
	}

	// Если файла нет - создаем пустой список
	err := s.withLock(context.Background(), func() error {
		_, err := os.Stat(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			return s.store([]string{})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) Read(ctx context.Context) ([]string, error) {
	var tasks []string
	err := s.withLock(ctx, func() error {
		var err error
		tasks, err = s.load()
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *FileStorage) Write(ctx context.Context, tasks []string) error {
	return s.withLock(ctx, func() error {
		return s.store(tasks)
	})
}

func (s *FileStorage) Modify(ctx context.Context, fn ModifyFunc) error {
	return s.withLock(ctx, func() error {
		current, err := s.load()
		if err != nil {
			return err
		}
		next, err := fn(slices.Clone(current))
		if err != nil {
			return err
		}
		return s.store(next)
	})
}

func (s *FileStorage) Close() error {
	return nil
}

// withLock берет блокировку на время fn. Ожидание ограничено s.timeout.
func (s *FileStorage) withLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Новый flock на каждую операцию: блокировка привязана к открытому файлу,
	// поэтому горутины одного процесса тоже исключают друг друга
	fl := flock.New(s.lockPath)
	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		if lockCtx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrLockTimeout, s.lockPath)
		}
		return unavailable("lock "+s.lockPath, err)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}

// load читает файл. Вызывается только под блокировкой.
func (s *FileStorage) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.store([]string{}); err != nil {
			return nil, err
		}
		return []string{}, nil
	}
	if err != nil {
		return nil, unavailable("read "+s.path, err)
	}
	return decodeList(data)
}

// store пишет во временный файл и переименовывает его поверх данных.
// Вызывается только под блокировкой.
func (s *FileStorage) store(tasks []string) error {
	data, err := encodeList(tasks)
	if err != nil {
		return unavailable("encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return unavailable("write "+s.path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return unavailable("write "+s.path, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return unavailable("write "+s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("write "+s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return unavailable("write "+s.path, err)
	}
	return nil
}
