package hub

import (
	"context"

	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
)

func send[T any](ctx context.Context, h *Hub, msg HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- msg:
	case <-h.ctx.Done():
		return zero, context.Canceled
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-h.ctx.Done():
		return zero, context.Canceled
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Create registers a new lobby under a fresh code.
func (h *Hub) Create(ctx context.Context) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	lb, err := send(ctx, h, CreateLobby{Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, ErrCodeExhausted
	}
	return lb, nil
}

// Get looks a lobby up by code and never mutates the registry.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	lb, err := send(ctx, h, GetLobby{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, ErrRoomNotFound
	}
	return lb, nil
}

func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	return send(ctx, h, ListLobbies{Reply: reply}, reply)
}

// Remove is idempotent.
func (h *Hub) Remove(ctx context.Context, lb *lobby.Lobby) {
	select {
	case h.inbox <- RemoveLobby{Code: lb.Code(), Lobby: lb}:
	case <-h.ctx.Done():
	case <-ctx.Done():
	}
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}
