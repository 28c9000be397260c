package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
	"github.com/DoyleJ11/element-battle-backend/internal/types"
)

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, lobby.Deps{}, opts...)
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	lb1, err := h.Create(ctx)
	require.NoError(t, err)

	lb2, err := h.Get(ctx, lb1.Code())
	require.NoError(t, err)
	assert.Same(t, lb1, lb2)
	assert.Len(t, lb1.Code(), CodeLength)
}

func TestHub_Get_IsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, WithCodeGenerator(func() (string, error) { return "ABC234", nil }))

	lb, err := h.Create(ctx)
	require.NoError(t, err)

	got, err := h.Get(ctx, "  abc234 ")
	require.NoError(t, err)
	assert.Same(t, lb, got)
}

func TestHub_Create_RegeneratesOnCollision(t *testing.T) {
	ctx := context.Background()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	h := newTestHub(t, WithCodeGenerator(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}))

	first, err := h.Create(ctx)
	require.NoError(t, err)
	second, err := h.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.Code())
	assert.Equal(t, "BBBBBB", second.Code())
}

func TestHub_Create_GivesUpWhenCodesExhausted(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, WithCodeGenerator(func() (string, error) { return "SAME22", nil }))

	_, err := h.Create(ctx)
	require.NoError(t, err)
	_, err = h.Create(ctx)
	assert.ErrorIs(t, err, ErrCodeExhausted)
}

func TestHub_Remove(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	lb, err := h.Create(ctx)
	require.NoError(t, err)

	h.Remove(ctx, lb)
	h.Remove(ctx, lb) // idempotent

	_, err = h.Get(ctx, lb.Code())
	assert.True(t, errors.Is(err, ErrRoomNotFound))

	select {
	case <-lb.Done():
	case <-time.After(time.Second):
		t.Fatalf("removed lobby still running")
	}

	list, err := h.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type nopSink struct{}

func (nopSink) Send(types.ServerMessage) bool { return true }

func requireGone(t *testing.T, h *Hub, code string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := h.Get(context.Background(), code)
		return errors.Is(err, ErrRoomNotFound)
	}, time.Second, 5*time.Millisecond, "room %s still registered", code)
}

func TestHub_DeregistersLobbyThatEmptiesItself(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	lb, err := h.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, lb.Join(ctx, "c1", "Ada", nopSink{}, false))

	res, err := lb.Leave(ctx, "c1")
	require.NoError(t, err)
	require.True(t, res.Empty)

	requireGone(t, h, lb.Code())
}

func TestHub_DeregistersClosedLobby(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	lb, err := h.Create(ctx)
	require.NoError(t, err)
	other, err := h.Create(ctx)
	require.NoError(t, err)

	lb.Close()
	requireGone(t, h, lb.Code())

	got, err := h.Get(ctx, other.Code())
	require.NoError(t, err)
	assert.Same(t, other, got)
}

func TestHub_Shutdown_StopsLobbies(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	lb, err := h.Create(ctx)
	require.NoError(t, err)

	h.Shutdown()

	select {
	case <-lb.Done():
	case <-time.After(time.Second):
		t.Fatalf("lobby survived hub shutdown")
	}

	_, err = h.Get(ctx, lb.Code())
	assert.Error(t, err)
}

func TestGenerateCode(t *testing.T) {
	for range 100 {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.Equal(t, code, NormalizeCode(code))
	}
}
