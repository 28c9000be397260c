package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrCodeExhausted = errors.New("could not allocate a room code")

// maxCodeAttempts bounds regeneration when a fresh code collides with a live one.
const maxCodeAttempts = 16

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

// RemoveLobby only removes the entry if it still points at Lobby, so a late
// removal cannot evict a newer room that reused the code.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (ListLobbies) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	deps    lobby.Deps
	newCode func() (string, error)
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

type Option func(*Hub)

// WithCodeGenerator replaces the random room-code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(h *Hub) { h.newCode = gen }
}

func NewHub(parent context.Context, deps lobby.Deps, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		deps:    deps,
		newCode: GenerateCode,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create()

			case GetLobby:
				msg.Reply <- h.lobbies[NormalizeCode(msg.Code)] // May be nil

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				msg.Reply <- out

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil && (msg.Lobby == nil || lb == msg.Lobby) {
					delete(h.lobbies, msg.Code)
					lb.Close()
					h.log.Info("room removed", zap.String("room", msg.Code), zap.Int("live", len(h.lobbies)))
				}

			case ShutdownHub:
				h.closeAll()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create() *lobby.Lobby {
	for range maxCodeAttempts {
		code, err := h.newCode()
		if err != nil {
			h.log.Error("generate room code", zap.Error(err))
			return nil
		}
		code = NormalizeCode(code)
		if h.lobbies[code] != nil {
			h.log.Debug("collision on code, regenerating", zap.String("room", code))
			continue
		}
		lb := lobby.NewLobby(h.ctx, code, h.deps)
		h.lobbies[code] = lb
		go h.watch(lb)
		h.log.Info("room created", zap.String("room", code), zap.Int("live", len(h.lobbies)))
		return lb
	}
	return nil
}

// watch deregisters lb once it stops, whether it emptied, finished its game
// or was closed.
func (h *Hub) watch(lb *lobby.Lobby) {
	select {
	case <-lb.Done():
		h.Remove(context.Background(), lb)
	case <-h.ctx.Done():
	}
}

func (h *Hub) closeAll() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
}
