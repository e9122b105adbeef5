package repo

import "context"

// ModifyFunc получает текущий список и возвращает новый.
// Ошибка отменяет запись, хранилище возвращает её без изменений.
type ModifyFunc func(tasks []string) ([]string, error)

// ListStorage определяет интерфейс для хранения упорядоченного списка задач
type ListStorage interface {
	Read(ctx context.Context) ([]string, error)
	Write(ctx context.Context, tasks []string) error
	// Modify держит одну блокировку на чтение, fn и запись
	Modify(ctx context.Context, fn ModifyFunc) error
	Close() error
}
