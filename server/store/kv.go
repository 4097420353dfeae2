package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattermost/mattermost/server/public/model"
)

// KVStore is the subset of the plugin API used for persistence.
// plugin.API satisfies it.
type KVStore interface {
	KVGet(key string) ([]byte, *model.AppError)
	KVSet(key string, value []byte) *model.AppError
	KVDelete(key string) *model.AppError
}

// ErrCorrupt marks a stored value that can no longer be decoded.
var ErrCorrupt = errors.New("corrupt stored value")

// getJSON loads key into dst. It returns false when nothing is stored.
func getJSON(kv KVStore, key string, dst any) (bool, error) {
	data, appErr := kv.KVGet(key)
	if appErr != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, appErr)
	}

	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w: %w", key, ErrCorrupt, err)
	}

	return true, nil
}

func setJSON(kv KVStore, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if appErr := kv.KVSet(key, data); appErr != nil {
		return fmt.Errorf("failed to save %s: %w", key, appErr)
	}

	return nil
}

func deleteKey(kv KVStore, key string) error {
	if appErr := kv.KVDelete(key); appErr != nil {
		return fmt.Errorf("failed to delete %s: %w", key, appErr)
	}
	return nil
}
