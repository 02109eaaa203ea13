package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"skymessage/internal/pkg/errs"
)

func TestRegistryBindAndLookup(t *testing.T) {
	registry := NewRegistry()

	first := newTestClient(nil, nil)
	second := newTestClient(nil, nil)

	require.Nil(t, registry.Bind(first, "alice"))
	require.Nil(t, registry.Bind(second, "alice"))

	conns := registry.ConnectionsFor("alice")
	require.Len(t, conns, 2)

	identity, ok := registry.IdentityOf(first.id)
	require.True(t, ok)
	require.Equal(t, "alice", identity)
}

func TestRegistryBindIsIdempotentPerIdentity(t *testing.T) {
	registry := NewRegistry()
	client := newTestClient(nil, nil)

	require.Nil(t, registry.Bind(client, "alice"))
	require.Nil(t, registry.Bind(client, "alice"))

	require.Len(t, registry.ConnectionsFor("alice"), 1)
}

func TestRegistryRebindToDifferentIdentityFails(t *testing.T) {
	registry := NewRegistry()
	client := newTestClient(nil, nil)

	require.Nil(t, registry.Bind(client, "alice"))

	bindErr := registry.Bind(client, "bob")
	require.NotNil(t, bindErr)
	require.Equal(t, errs.ErrAlreadyBound, bindErr.Code)

	// The original binding survives.
	identity, ok := registry.IdentityOf(client.id)
	require.True(t, ok)
	require.Equal(t, "alice", identity)
	require.Empty(t, registry.ConnectionsFor("bob"))
}

func TestRegistryUnbindAll(t *testing.T) {
	registry := NewRegistry()
	client := newTestClient(nil, nil)

	require.Nil(t, registry.Bind(client, "alice"))

	identity, ok := registry.UnbindAll(client.id)
	require.True(t, ok)
	require.Equal(t, "alice", identity)
	require.Empty(t, registry.ConnectionsFor("alice"))

	// Idempotent: a second unbind reports nothing to do.
	_, ok = registry.UnbindAll(client.id)
	require.False(t, ok)
}

func TestRegistryDropsEmptyUserEntries(t *testing.T) {
	registry := NewRegistry()
	client := newTestClient(nil, nil)

	require.Nil(t, registry.Bind(client, "alice"))
	registry.UnbindAll(client.id)

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	require.NotContains(t, registry.byUser, "alice")
	require.NotContains(t, registry.byConn, client.id)
}

func TestRegistryConnectionsForUnknownIdentity(t *testing.T) {
	registry := NewRegistry()

	conns := registry.ConnectionsFor("nobody")
	require.NotNil(t, conns)
	require.Empty(t, conns)
}
