package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"stakehouse/domain/entities"

	"github.com/nats-io/nats.go"
)

const putIfAbsentAttempts = 3

// NATSStore is a KeyValueStore backed by a JetStream key-value bucket.
// Keys are base64url encoded since bucket keys only allow a small alphabet.
type NATSStore struct {
	bucket nats.KeyValue
}

// NewNATSStore wraps a bound JetStream bucket
func NewNATSStore(bucket nats.KeyValue) *NATSStore {
	return &NATSStore{bucket: bucket}
}

// Get returns the value for key, or nil when missing
func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.bucket.Get(encodeKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, transient("get", key, err)
	}
	return entry.Value(), nil
}

// Put stores value under key
func (s *NATSStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.bucket.Put(encodeKey(key), value); err != nil {
		return transient("put", key, err)
	}
	return nil
}

// PutIfAbsent stores value unless key exists and returns the value held by key.
// A key deleted between the failed create and the read is retried.
func (s *NATSStore) PutIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error) {
	encoded := encodeKey(key)

	for attempt := 0; attempt < putIfAbsentAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, err := s.bucket.Create(encoded, value)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, nats.ErrKeyExists) {
			return nil, transient("create", key, err)
		}

		entry, err := s.bucket.Get(encoded)
		if errors.Is(err, nats.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, transient("get", key, err)
		}
		return entry.Value(), nil
	}

	return nil, fmt.Errorf("key %s kept changing during create: %w", key, entities.ErrTransientIO)
}

// Delete removes key
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.bucket.Delete(encodeKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return transient("delete", key, err)
	}
	return nil
}

// Keys lists keys with the given prefix in lexical order
func (s *NATSStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	encoded, err := s.bucket.Keys(nats.Context(ctx))
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, transient("list", prefix, err)
	}

	keys := make([]string, 0, len(encoded))
	for _, raw := range encoded {
		key, err := decodeKey(raw)
		if err != nil {
			// foreign key written by another client
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func transient(op, key string, err error) error {
	return fmt.Errorf("failed to %s key %s: %w: %w", op, key, entities.ErrTransientIO, err)
}
