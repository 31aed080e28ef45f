package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"stakehouse/domain/entities"
	"stakehouse/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const (
	sessionKeyPrefix = "session."
	claimKeyPrefix   = "claim."

	// maxMintAttempts bounds the search for an unclaimed second when many
	// sessions of one owner start together
	maxMintAttempts = 64
)

// sessionIdentityResolver mints and caches persistent session identities
type sessionIdentityResolver struct {
	store interfaces.KeyValueStore
	clock func() time.Time
}

// NewSessionIdentityResolver creates a resolver backed by store. clock may be
// nil, in which case time.Now is used.
func NewSessionIdentityResolver(store interfaces.KeyValueStore, clock func() time.Time) interfaces.SessionIdentityResolver {
	if clock == nil {
		clock = time.Now
	}
	return &sessionIdentityResolver{
		store: store,
		clock: clock,
	}
}

// Resolve returns the cached identity for the runtime key or mints a new one.
// Two runtime keys never receive the same identity: every minted identity is
// claimed in the store first, and a taken second moves the timestamp forward.
func (r *sessionIdentityResolver) Resolve(ctx context.Context, runtimeSessionKey, ownerID string) (entities.PersistentSessionIdentity, error) {
	if strings.TrimSpace(runtimeSessionKey) == "" {
		return "", entities.NewValidationError("runtime_session_key", "must not be empty")
	}
	if strings.TrimSpace(ownerID) == "" {
		return "", entities.NewValidationError("owner_id", "must not be empty")
	}

	identity, ok, err := r.Lookup(ctx, runtimeSessionKey)
	if err != nil {
		return "", err
	}
	if ok {
		return identity, nil
	}

	candidate, err := r.claim(ctx, runtimeSessionKey, ownerID)
	if err != nil {
		return "", err
	}

	stored, err := r.store.PutIfAbsent(ctx, sessionKeyPrefix+runtimeSessionKey, []byte(candidate))
	if err != nil {
		return "", fmt.Errorf("failed to cache session identity: %w", err)
	}

	identity = entities.PersistentSessionIdentity(stored)
	log.WithFields(log.Fields{
		"runtimeSessionKey": runtimeSessionKey,
		"sessionID":         identity,
		"minted":            identity == candidate,
	}).Debug("Resolved persistent session identity")

	return identity, nil
}

// claim reserves an identity for the runtime key
func (r *sessionIdentityResolver) claim(ctx context.Context, runtimeSessionKey, ownerID string) (entities.PersistentSessionIdentity, error) {
	createdAt := r.clock().UTC().Truncate(time.Second)
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		candidate := entities.DeriveSessionIdentity(ownerID, createdAt)
		holder, err := r.store.PutIfAbsent(ctx, claimKeyPrefix+string(candidate), []byte(runtimeSessionKey))
		if err != nil {
			return "", fmt.Errorf("failed to claim session identity: %w", err)
		}
		if bytes.Equal(holder, []byte(runtimeSessionKey)) {
			return candidate, nil
		}
		createdAt = createdAt.Add(time.Second)
	}
	return "", fmt.Errorf("no free session identity for owner %s after %d attempts: %w", ownerID, maxMintAttempts, entities.ErrTransientIO)
}

// Lookup returns the cached identity without minting
func (r *sessionIdentityResolver) Lookup(ctx context.Context, runtimeSessionKey string) (entities.PersistentSessionIdentity, bool, error) {
	value, err := r.store.Get(ctx, sessionKeyPrefix+runtimeSessionKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to read session identity: %w", err)
	}
	if value == nil {
		return "", false, nil
	}
	return entities.PersistentSessionIdentity(value), true, nil
}

// Release removes the runtime key's identity. Its claim is kept so the same
// identity is never minted twice.
func (r *sessionIdentityResolver) Release(ctx context.Context, runtimeSessionKey string) error {
	if err := r.store.Delete(ctx, sessionKeyPrefix+runtimeSessionKey); err != nil {
		return fmt.Errorf("failed to release session identity: %w", err)
	}
	return nil
}
