package kv

import (
	"context"
	"fmt"
	"strings"

	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"
)

const directoryKeyPrefix = "user."

// StakerDirectory keeps display names of registered users in a key-value store
type StakerDirectory struct {
	store interfaces.KeyValueStore
}

// NewStakerDirectory creates a directory over the given store
func NewStakerDirectory(store interfaces.KeyValueStore) *StakerDirectory {
	return &StakerDirectory{store: store}
}

// ResolveDisplayNames returns the display name of every known user id
func (d *StakerDirectory) ResolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	for _, userID := range userIDs {
		if _, done := names[userID]; done {
			continue
		}
		value, err := d.store.Get(ctx, directoryKeyPrefix+userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve display name of %s: %w", userID, err)
		}
		if value != nil {
			names[userID] = string(value)
		}
	}
	return names, nil
}

// SetDisplayName registers or renames a user
func (d *StakerDirectory) SetDisplayName(ctx context.Context, userID, displayName string) error {
	if strings.TrimSpace(userID) == "" {
		return entities.NewValidationError("user_id", "must not be empty")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return entities.NewValidationError("display_name", "must not be empty")
	}

	if err := d.store.Put(ctx, directoryKeyPrefix+userID, []byte(name)); err != nil {
		return fmt.Errorf("failed to store display name of %s: %w", userID, err)
	}
	return nil
}

// RemoveUser forgets a user
func (d *StakerDirectory) RemoveUser(ctx context.Context, userID string) error {
	if err := d.store.Delete(ctx, directoryKeyPrefix+userID); err != nil {
		return fmt.Errorf("failed to remove %s from directory: %w", userID, err)
	}
	return nil
}
