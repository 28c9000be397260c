package lobby

import (
	"context"

	"github.com/DoyleJ11/element-battle-backend/internal/elements"
)

func request[T any](ctx context.Context, l *Lobby, msg Msg, reply chan T) (T, error) {
	var zero T
	select {
	case l.inbox <- msg:
	case <-l.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-l.ctx.Done():
		// The lobby may have replied just before stopping.
		select {
		case res := <-reply:
			return res, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (l *Lobby) Join(ctx context.Context, clientID, name string, sink Sink, announce bool) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, l, Join{ClientID: clientID, Name: name, Sink: sink, Announce: announce, Reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

func (l *Lobby) Leave(ctx context.Context, clientID string) (LeaveResult, error) {
	reply := make(chan LeaveResult, 1)
	return request(ctx, l, Leave{ClientID: clientID, Reply: reply}, reply)
}

// Advance starts the next round, or ends the game when the last round has
// been played.
func (l *Lobby) Advance(ctx context.Context) (RoundResult, error) {
	reply := make(chan RoundResult, 1)
	return request(ctx, l, NextRound{Reply: reply}, reply)
}

func (l *Lobby) Choose(ctx context.Context, clientID string, els []elements.Element, description, imageRef string) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, l, Choice{
		ClientID:    clientID,
		Elements:    els,
		Description: description,
		ImageRef:    imageRef,
		Reply:       reply,
	}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	return request(ctx, l, GetState{Reply: reply}, reply)
}

// Close stops the lobby without waiting for queued messages.
func (l *Lobby) Close() { l.cancel() }
