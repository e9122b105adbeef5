package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-list/internal/repo"
)

// MockListStorage - мок хранилища
type MockListStorage struct {
	mock.Mock
}

func (m *MockListStorage) Read(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	tasks, _ := args.Get(0).([]string)
	return tasks, args.Error(1)
}

func (m *MockListStorage) Write(ctx context.Context, tasks []string) error {
	args := m.Called(ctx, tasks)
	return args.Error(0)
}

func (m *MockListStorage) Modify(ctx context.Context, fn repo.ModifyFunc) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockListStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newMemoryService(tasks ...string) (*TaskService, *repo.MemoryStorage) {
	storage := repo.NewMemoryStorage(tasks...)
	return NewTaskService(storage, zap.NewNop()), storage
}

func TestTaskService_Append(t *testing.T) {
	tests := []struct {
		name     string
		initial  []string
		raw      string
		wantTask string
		wantErr  error
		wantList []string
	}{
		{
			name:     "append to empty list",
			raw:      "Buy milk",
			wantTask: "Buy milk",
			wantList: []string{"Buy milk"},
		},
		{
			name:     "trims whitespace",
			initial:  []string{"a"},
			raw:      "  b  ",
			wantTask: "b",
			wantList: []string{"a", "b"},
		},
		{
			name:     "duplicate",
			initial:  []string{"a"},
			raw:      "a",
			wantErr:  ErrDuplicate,
			wantList: []string{"a"},
		},
		{
			name:     "duplicate after trimming",
			initial:  []string{"a"},
			raw:      "\ta \n",
			wantErr:  ErrDuplicate,
			wantList: []string{"a"},
		},
		{
			name:     "empty",
			initial:  []string{"a"},
			raw:      "",
			wantErr:  ErrValidation,
			wantList: []string{"a"},
		},
		{
			name:     "whitespace only",
			initial:  []string{"a"},
			raw:      "   ",
			wantErr:  ErrValidation,
			wantList: []string{"a"},
		},
		{
			name:     "invalid utf-8 is normalized",
			raw:      "milk\xff",
			wantTask: "milk\uFFFD",
			wantList: []string{"milk\uFFFD"},
		},
		{
			name:     "invalid utf-8 duplicate",
			initial:  []string{"milk\uFFFD"},
			raw:      " milk\xff ",
			wantErr:  ErrDuplicate,
			wantList: []string{"milk\uFFFD"},
		},
		{
			name:     "case sensitive",
			initial:  []string{"buy milk"},
			raw:      "Buy milk",
			wantTask: "Buy milk",
			wantList: []string{"buy milk", "Buy milk"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, storage := newMemoryService(tt.initial...)

			task, err := service.Append(context.Background(), tt.raw)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, task)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTask, task)
			}

			got, err := storage.Read(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantList, got)
		})
	}
}

func TestTaskService_Append_ValidationSkipsStorage(t *testing.T) {
	mockRepo := new(MockListStorage)

	service := NewTaskService(mockRepo, zap.NewNop())
	_, err := service.Append(context.Background(), "   ")

	assert.ErrorIs(t, err, ErrValidation)
	mockRepo.AssertNotCalled(t, "Modify", mock.Anything, mock.Anything)
}

func TestTaskService_RemoveAt(t *testing.T) {
	tests := []struct {
		name        string
		initial     []string
		index       int
		wantRemoved string
		wantErr     error
		wantList    []string
	}{
		{
			name:        "middle",
			initial:     []string{"a", "b", "c"},
			index:       1,
			wantRemoved: "b",
			wantList:    []string{"a", "c"},
		},
		{
			name:        "first",
			initial:     []string{"a", "b"},
			index:       0,
			wantRemoved: "a",
			wantList:    []string{"b"},
		},
		{
			name:        "last",
			initial:     []string{"a", "b"},
			index:       1,
			wantRemoved: "b",
			wantList:    []string{"a"},
		},
		{
			name:     "out of range",
			initial:  []string{"a"},
			index:    5,
			wantErr:  ErrIndexOutOfRange,
			wantList: []string{"a"},
		},
		{
			name:     "equal to length",
			initial:  []string{"a"},
			index:    1,
			wantErr:  ErrIndexOutOfRange,
			wantList: []string{"a"},
		},
		{
			name:     "negative",
			initial:  []string{"a"},
			index:    -1,
			wantErr:  ErrIndexOutOfRange,
			wantList: []string{"a"},
		},
		{
			name:     "empty list",
			index:    0,
			wantErr:  ErrIndexOutOfRange,
			wantList: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, storage := newMemoryService(tt.initial...)

			removed, err := service.RemoveAt(context.Background(), tt.index)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRemoved, removed)
			}

			got, err := storage.Read(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantList, got)
		})
	}
}

func TestTaskService_RemoveAt_ShiftsIndices(t *testing.T) {
	service, _ := newMemoryService("a", "b", "c")
	ctx := context.Background()

	removed, err := service.RemoveAt(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed)

	removed, err = service.RemoveAt(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", removed)

	tasks, err := service.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tasks)
}

func TestTaskService_Clear(t *testing.T) {
	service, _ := newMemoryService("a", "b")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, service.Clear(ctx))

		tasks, err := service.Read(ctx)
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	}
}

func TestTaskService_WriteThenRead(t *testing.T) {
	service, _ := newMemoryService()
	ctx := context.Background()
	want := []string{"Buy milk", "Write report"}

	require.NoError(t, service.Write(ctx, want))

	got, err := service.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTaskService_StorageUnavailable(t *testing.T) {
	storageErr := fmt.Errorf("%w: tasks.json.lock", repo.ErrLockTimeout)

	t.Run("read degrades to empty list", func(t *testing.T) {
		mockRepo := new(MockListStorage)
		mockRepo.On("Read", mock.Anything).Return(nil, storageErr)

		service := NewTaskService(mockRepo, zap.NewNop())
		tasks, err := service.Read(context.Background())

		assert.ErrorIs(t, err, repo.ErrStorageUnavailable)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
		mockRepo.AssertExpectations(t)
	})

	t.Run("write is dropped", func(t *testing.T) {
		mockRepo := new(MockListStorage)
		mockRepo.On("Write", mock.Anything, []string{"a"}).Return(storageErr)

		service := NewTaskService(mockRepo, zap.NewNop())
		err := service.Write(context.Background(), []string{"a"})

		assert.ErrorIs(t, err, repo.ErrLockTimeout)
		mockRepo.AssertExpectations(t)
	})

	t.Run("append", func(t *testing.T) {
		mockRepo := new(MockListStorage)
		mockRepo.On("Modify", mock.Anything, mock.Anything).Return(storageErr)

		service := NewTaskService(mockRepo, zap.NewNop())
		task, err := service.Append(context.Background(), "Buy milk")

		assert.ErrorIs(t, err, repo.ErrStorageUnavailable)
		assert.Empty(t, task)
		mockRepo.AssertExpectations(t)
	})

	t.Run("remove", func(t *testing.T) {
		mockRepo := new(MockListStorage)
		mockRepo.On("Modify", mock.Anything, mock.Anything).Return(storageErr)

		service := NewTaskService(mockRepo, zap.NewNop())
		_, err := service.RemoveAt(context.Background(), 0)

		assert.ErrorIs(t, err, repo.ErrStorageUnavailable)
		mockRepo.AssertExpectations(t)
	})

	t.Run("clear", func(t *testing.T) {
		mockRepo := new(MockListStorage)
		mockRepo.On("Write", mock.Anything, []string{}).Return(storageErr)

		service := NewTaskService(mockRepo, zap.NewNop())
		err := service.Clear(context.Background())

		assert.ErrorIs(t, err, repo.ErrStorageUnavailable)
		mockRepo.AssertExpectations(t)
	})
}

func TestTaskService_Scenario(t *testing.T) {
	storage, err := repo.NewFileStorage(filepath.Join(t.TempDir(), "tasks.json"), time.Second)
	require.NoError(t, err)
	service := NewTaskService(storage, zap.NewNop())
	ctx := context.Background()

	task, err := service.Append(ctx, "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", task)
	tasks, _ := service.Read(ctx)
	assert.Equal(t, []string{"Buy milk"}, tasks)

	_, err = service.Append(ctx, "Buy milk")
	assert.ErrorIs(t, err, ErrDuplicate)
	tasks, _ = service.Read(ctx)
	assert.Equal(t, []string{"Buy milk"}, tasks)

	removed, err := service.RemoveAt(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", removed)
	tasks, _ = service.Read(ctx)
	assert.Empty(t, tasks)

	_, err = service.RemoveAt(ctx, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestTaskService_ConcurrentDuplicateAppends(t *testing.T) {
	storage, err := repo.NewFileStorage(filepath.Join(t.TempDir(), "tasks.json"), 5*time.Second)
	require.NoError(t, err)
	service := NewTaskService(storage, zap.NewNop())
	ctx := context.Background()

	const goroutines = 10
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	// Launch concurrent appends of the same new task
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = service.Append(ctx, "Write report")
		}(i)
	}
	wg.Wait()

	added, duplicates := 0, 0
	for i, err := range errs {
		switch err {
		case nil:
			added++
		case ErrDuplicate:
			duplicates++
		default:
			t.Errorf("unexpected error at %d: %v", i, err)
		}
	}

	assert.Equal(t, 1, added, "exactly one append should succeed")
	assert.Equal(t, goroutines-1, duplicates, "others should see the duplicate")

	tasks, err := service.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Write report"}, tasks)
}

func TestTaskService_Append_InvalidUTF8StaysUnique(t *testing.T) {
	storage, err := repo.NewFileStorage(filepath.Join(t.TempDir(), "tasks.json"), time.Second)
	require.NoError(t, err)
	service := NewTaskService(storage, zap.NewNop())
	ctx := context.Background()

	_, err = service.Append(ctx, "milk\xff")
	require.NoError(t, err)
	_, err = service.Append(ctx, "milk\xff")
	assert.ErrorIs(t, err, ErrDuplicate)

	tasks, err := service.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"milk\uFFFD"}, tasks)
}
