package repo

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage - хранилище в памяти процесса, для тестов и STORAGE_DRIVER=memory
type MemoryStorage struct {
	mu    sync.Mutex
	tasks []string
}

func NewMemoryStorage(tasks ...string) *MemoryStorage {
	return &MemoryStorage{tasks: slices.Clone(tasks)}
}

func (s *MemoryStorage) Read(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (s *MemoryStorage) Write(ctx context.Context, tasks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = slices.Clone(tasks)
	return nil
}

func (s *MemoryStorage) Modify(ctx context.Context, fn ModifyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.snapshot())
	if err != nil {
		return err
	}
	s.tasks = slices.Clone(next)
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) snapshot() []string {
	if s.tasks == nil {
		return []string{}
	}
	return slices.Clone(s.tasks)
}
