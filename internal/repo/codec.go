package repo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultLockTimeout - сколько ждем блокировку, прежде чем сдаться
const DefaultLockTimeout = 10 * time.Second

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrLockTimeout        = fmt.Errorf("%w: lock timeout", ErrStorageUnavailable)
	ErrCorrupt            = fmt.Errorf("%w: malformed task list", ErrStorageUnavailable)
)

func decodeList(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: empty or null document", ErrCorrupt)
	}

	// *string, чтобы null внутри массива не превратился молча в ""
	var items []*string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	tasks := make([]string, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("%w: null element at %d", ErrCorrupt, i)
		}
		tasks = append(tasks, *item)
	}
	return tasks, nil
}

func encodeList(tasks []string) ([]byte, error) {
	if tasks == nil {
		tasks = []string{}
	}
	return json.Marshal(tasks)
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
