package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MegaGrindStone/simpl-chat/internal/chat"
)

func TestRegistryKeepsSessionsApart(t *testing.T) {
	r := fixedReply("Hi there!", nil)
	reg := chat.NewRegistry(r, chat.Options{Greeting: "hey"}, testLogger())

	a := reg.Create(context.Background())
	b := reg.Create(context.Background())
	require.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, reg.Len())

	_, ok := a.Send(context.Background(), "Hello")
	require.True(t, ok)

	assert.Len(t, a.Messages(), 3)
	assert.Len(t, b.Messages(), 1)

	got, ok := reg.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRemove(t *testing.T) {
	reg := chat.NewRegistry(fixedReply("", nil), chat.Options{Greeting: "hey"}, testLogger())

	s := reg.Create(context.Background())
	reg.Remove(s.ID)
	reg.Remove("missing")

	_, ok := reg.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	reg := chat.NewRegistryWithLimits(fixedReply("", nil), chat.Options{Greeting: "hey"},
		chat.Limits{MaxSessions: 2}, testLogger())

	a := reg.Create(context.Background())
	b := reg.Create(context.Background())

	// Touching a makes b the least recently used.
	_, ok := reg.Get(a.ID)
	require.True(t, ok)

	c := reg.Create(context.Background())
	assert.Equal(t, 2, reg.Len())

	_, ok = reg.Get(b.ID)
	assert.False(t, ok)
	_, ok = reg.Get(a.ID)
	assert.True(t, ok)
	_, ok = reg.Get(c.ID)
	assert.True(t, ok)
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	reg := chat.NewRegistryWithLimits(fixedReply("", nil), chat.Options{Greeting: "hey"},
		chat.Limits{IdleTimeout: time.Millisecond}, testLogger())

	s := reg.Create(context.Background())
	time.Sleep(10 * time.Millisecond)

	_, ok := reg.Get(s.ID)
	assert.False(t, ok)

	reg.Create(context.Background())
	reg.Create(context.Background())
	time.Sleep(10 * time.Millisecond)
	reg.Create(context.Background())
	assert.Equal(t, 1, reg.Len())
}
