package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-list/internal/repo"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrDuplicate       = errors.New("task already exists")
	ErrIndexOutOfRange = errors.New("task index out of range")
)

// TaskService - операции над списком задач поверх любого ListStorage.
// Ошибки хранилища логируются здесь и возвращаются как repo.ErrStorageUnavailable,
// деградацию выбирает вызывающий слой.
type TaskService struct {
	repo   repo.ListStorage
	logger *zap.Logger
}

func NewTaskService(repo repo.ListStorage, logger *zap.Logger) *TaskService {
	return &TaskService{repo: repo, logger: logger}
}

// Read всегда возвращает не-nil список: при ошибке он пустой
func (s *TaskService) Read(ctx context.Context) ([]string, error) {
	tasks, err := s.repo.Read(ctx)
	if err != nil {
		s.logger.Warn("could not read task list, serving empty list", zap.Error(err))
		return []string{}, err
	}
	if tasks == nil {
		tasks = []string{}
	}
	return tasks, nil
}

func (s *TaskService) Write(ctx context.Context, tasks []string) error {
	if err := s.repo.Write(ctx, tasks); err != nil {
		s.logger.Warn("could not write task list, write dropped", zap.Int("tasks", len(tasks)), zap.Error(err))
		return err
	}
	return nil
}

// Append добавляет задачу в конец списка и возвращает очищенный от пробелов текст
func (s *TaskService) Append(ctx context.Context, raw string) (string, error) {
	// Невалидный UTF-8 сохраняется в JSON как U+FFFD, сравниваем уже в этом виде
	task := strings.ToValidUTF8(strings.TrimSpace(raw), "\uFFFD")
	if task == "" {
		return "", ErrValidation
	}

	// Проверка на дубликат и запись идут под одной блокировкой
	err := s.repo.Modify(ctx, func(tasks []string) ([]string, error) {
		if slices.Contains(tasks, task) {
			return nil, ErrDuplicate
		}
		return append(tasks, task), nil
	})
	if err != nil {
		s.logStorageError("append", err)
		return "", err
	}
	return task, nil
}

// RemoveAt удаляет задачу по позиции (с нуля) и возвращает ее текст
func (s *TaskService) RemoveAt(ctx context.Context, index int) (string, error) {
	var removed string
	err := s.repo.Modify(ctx, func(tasks []string) ([]string, error) {
		if index < 0 || index >= len(tasks) {
			return nil, ErrIndexOutOfRange
		}
		removed = tasks[index]
		return slices.Delete(tasks, index, index+1), nil
	})
	if err != nil {
		s.logStorageError("remove", err)
		return "", err
	}
	return removed, nil
}

func (s *TaskService) Clear(ctx context.Context) error {
	return s.Write(ctx, []string{})
}

func (s *TaskService) logStorageError(op string, err error) {
	if errors.Is(err, repo.ErrStorageUnavailable) {
		s.logger.Warn("task list storage unavailable, operation dropped", zap.String("op", op), zap.Error(err))
	}
}
