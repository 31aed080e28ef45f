package kv

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"stakehouse/domain/entities"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupBucket starts a JetStream enabled NATS server and creates a fresh bucket
func setupBucket(t *testing.T) nats.KeyValue {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping NATS container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
			Labels: map[string]string{
				"test":    "stakehouse-kv",
				"cleanup": "auto",
			},
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate NATS container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)

	nc, err := nats.Connect(endpoint)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)

	bucket, err := js.CreateKeyValue(&nats.KeyValueConfig{Bucket: "stakehouse_test"})
	require.NoError(t, err)
	return bucket
}

func TestNATSStore(t *testing.T) {
	store := NewNATSStore(setupBucket(t))
	ctx := context.Background()

	t.Run("keys outside the bucket alphabet round trip", func(t *testing.T) {
		key := "session.table 4/seat#2"
		require.NoError(t, store.Put(ctx, key, []byte("owner-1_1714000000")))

		value, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "owner-1_1714000000", string(value))
	})

	t.Run("missing key", func(t *testing.T) {
		value, err := store.Get(ctx, "session.none")
		require.NoError(t, err)
		assert.Nil(t, value)
		assert.NoError(t, store.Delete(ctx, "session.none"))
	})

	t.Run("put if absent keeps the first value", func(t *testing.T) {
		held, err := store.PutIfAbsent(ctx, "claim.owner-2_1", []byte("a"))
		require.NoError(t, err)
		assert.Equal(t, "a", string(held))

		held, err = store.PutIfAbsent(ctx, "claim.owner-2_1", []byte("b"))
		require.NoError(t, err)
		assert.Equal(t, "a", string(held))
	})

	t.Run("create after delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "session.gone", []byte("x")))
		require.NoError(t, store.Delete(ctx, "session.gone"))

		held, err := store.PutIfAbsent(ctx, "session.gone", []byte("y"))
		require.NoError(t, err)
		assert.Equal(t, "y", string(held))
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "drafts.s2", []byte("{}")))
		require.NoError(t, store.Put(ctx, "drafts.s1", []byte("{}")))

		keys, err := store.Keys(ctx, "drafts.")
		require.NoError(t, err)
		assert.Equal(t, []string{"drafts.s1", "drafts.s2"}, keys)
	})
}

func TestNATSStore_ConcurrentPutIfAbsent(t *testing.T) {
	store := NewNATSStore(setupBucket(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			held, err := store.PutIfAbsent(ctx, "session.race", []byte(fmt.Sprintf("v%d", i)))
			require.NoError(t, err)
			results[i] = string(held)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestKeyEncoding(t *testing.T) {
	for _, key := range []string{"session.a", "drafts.owner-1_1714000000", "session.table 4/seat#2", "claim.é"} {
		encoded := encodeKey(key)
		assert.Regexp(t, `^[A-Za-z0-9_-]+$`, encoded)

		decoded, err := decodeKey(encoded)
		require.NoError(t, err)
		assert.Equal(t, key, decoded)
	}

	_, err := decodeKey("not base64!")
	assert.Error(t, err)
}

func TestTransientWrapping(t *testing.T) {
	err := transient("get", "session.a", nats.ErrConnectionClosed)
	assert.ErrorIs(t, err, entities.ErrTransientIO)
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}
