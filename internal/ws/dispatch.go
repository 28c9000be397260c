package ws

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/element-battle-backend/internal/elements"
	"github.com/DoyleJ11/element-battle-backend/internal/engine"
	"github.com/DoyleJ11/element-battle-backend/internal/hub"
	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
	"github.com/DoyleJ11/element-battle-backend/internal/types"
	pt "github.com/DoyleJ11/element-battle-backend/pkg/types"
)

var errHandlerFault = errors.New("handler fault")

const (
	msgRoomNotFound = "Room not found"
	msgInternal     = "Something went wrong"
)

// dispatch routes one inbound event. A panic in any handler is reported as
// errHandlerFault and never takes the connection down.
func (g *gateway) dispatch(ctx context.Context, c *client, in pt.Inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("handler panic",
				zap.String("client", c.id),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = errHandlerFault
		}
	}()

	switch m := in.(type) {
	case pt.CreateRoom:
		return g.createRoom(ctx, c, m)
	case pt.JoinRoom:
		return g.joinRoom(ctx, c, m)
	case pt.StartGame:
		return g.advance(ctx, m.RoomCode)
	case pt.RequestNextRound:
		return g.advance(ctx, m.RoomCode)
	case pt.PlayerChoice:
		return g.playerChoice(ctx, c, m)
	default:
		return fmt.Errorf("%w: %T", types.ErrUnknownType, in)
	}
}

func (g *gateway) createRoom(ctx context.Context, c *client, m pt.CreateRoom) error {
	lb, err := g.hub.Create(ctx)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if err := lb.Join(ctx, c.id, m.DisplayName, c, false); err != nil {
		g.hub.Remove(ctx, lb)
		return fmt.Errorf("join new room: %w", err)
	}
	c.rooms[lb.Code()] = lb

	msg, err := types.NewServerMessage(pt.EventRoomCreated, pt.RoomCreated{RoomCode: lb.Code()})
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}

func (g *gateway) joinRoom(ctx context.Context, c *client, m pt.JoinRoom) error {
	lb, err := g.hub.Get(ctx, m.RoomCode)
	if err != nil {
		return err
	}
	if err := lb.Join(ctx, c.id, m.DisplayName, c, true); err != nil {
		return fmt.Errorf("join room %s: %w", lb.Code(), err)
	}
	c.rooms[lb.Code()] = lb
	return nil
}

// advance serves both startGame and requestNextRound. Unknown rooms are
// ignored.
func (g *gateway) advance(ctx context.Context, code string) error {
	lb, err := g.hub.Get(ctx, code)
	if errors.Is(err, hub.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// A finished game stops the lobby, which deregisters itself.
	_, err = lb.Advance(ctx)
	if errors.Is(err, lobby.ErrClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("advance room %s: %w", lb.Code(), err)
	}
	return nil
}

func (g *gateway) playerChoice(ctx context.Context, c *client, m pt.PlayerChoice) error {
	lb, err := g.hub.Get(ctx, m.RoomCode)
	if errors.Is(err, hub.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	els := make([]elements.Element, len(m.Elements))
	for i, e := range m.Elements {
		els[i] = elements.Element(e)
	}
	err = lb.Choose(ctx, c.id, els, m.Description, m.ImageRef)
	if errors.Is(err, lobby.ErrClosed) {
		return nil
	}
	return err
}

// ruleErrors are engine rejections the player can act on.
var ruleErrors = []error{
	engine.ErrNoActiveRound,
	engine.ErrWrongElementCount,
	engine.ErrUnknownElement,
	engine.ErrAlreadySubmitted,
	engine.ErrAlreadyJoined,
}

func publicMessage(err error) string {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	if errors.Is(err, hub.ErrRoomNotFound) || errors.Is(err, lobby.ErrClosed) {
		return msgRoomNotFound
	}
	for _, rule := range ruleErrors {
		if errors.Is(err, rule) {
			return rule.Error()
		}
	}
	return msgInternal
}

func eventName(in pt.Inbound) string {
	switch in.(type) {
	case pt.CreateRoom:
		return pt.EventCreateRoom
	case pt.JoinRoom:
		return pt.EventJoinRoom
	case pt.StartGame:
		return pt.EventStartGame
	case pt.PlayerChoice:
		return pt.EventPlayerChoice
	case pt.RequestNextRound:
		return pt.EventRequestNextRound
	default:
		return fmt.Sprintf("%T", in)
	}
}
