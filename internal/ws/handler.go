package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/element-battle-backend/internal/hub"
	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
	"github.com/DoyleJ11/element-battle-backend/internal/types"
)

type Options struct {
	// OriginPatterns is passed to websocket.Accept; empty means same origin only.
	OriginPatterns  []string
	ReadIdleTimeout time.Duration
	WriteTimeout    time.Duration
	EventsPerSecond float64
	EventBurst      int
	ReadLimit       int64
	OutboxSize      int
}

func (o Options) withDefaults() Options {
	if o.ReadIdleTimeout <= 0 {
		o.ReadIdleTimeout = 5 * time.Minute
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 10
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 20
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 16 << 10
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 32
	}
	return o
}

// client is one websocket connection. It is the lobby.Sink for every room the
// connection has joined.
type client struct {
	id   string
	out  chan types.ServerMessage
	done chan struct{}

	// rooms is only touched from the connection's read goroutine.
	rooms map[string]*lobby.Lobby
}

func newClient(outbox int) *client {
	return &client{
		id:    uuid.NewString(),
		out:   make(chan types.ServerMessage, outbox),
		done:  make(chan struct{}),
		rooms: make(map[string]*lobby.Lobby),
	}
}

func (c *client) Send(msg types.ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

type gateway struct {
	hub  *hub.Hub
	opts Options
	log  *zap.Logger
}

func Handler(h *hub.Hub, opts Options, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	g := &gateway{hub: h, opts: opts.withDefaults(), log: log}
	return g.serve
}

func (g *gateway) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.opts.OriginPatterns,
	})
	if err != nil {
		g.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(g.opts.ReadLimit)

	c := newClient(g.opts.OutboxSize)
	log := g.log.With(zap.String("client", c.id))
	log.Info("client connected", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer g.disconnect(c, log)
	defer close(c.done)

	// Writer goroutine
	go g.writeLoop(ctx, conn, c, log)

	// Reader loop
	limiter := rate.NewLimiter(rate.Limit(g.opts.EventsPerSecond), g.opts.EventBurst)
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.opts.ReadIdleTimeout)
		_, data, err := conn.Read(readCtx)
		readCancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("client closed")
			default:
				log.Info("connection ended", zap.Error(err))
			}
			return
		}

		if !limiter.Allow() {
			c.Send(types.ErrorFrame("Too many requests, slow down"))
			continue
		}

		in, err := types.ParseClientMessage(data)
		if err != nil {
			log.Debug("rejected message", zap.Error(err))
			c.Send(types.ErrorFrame(err.Error()))
			continue
		}

		if err := g.dispatch(ctx, c, in); err != nil {
			log.Warn("handle event", zap.String("event", eventName(in)), zap.Error(err))
			c.Send(types.ErrorFrame(publicMessage(err)))
		}
	}
}

func (g *gateway) writeLoop(ctx context.Context, conn *websocket.Conn, c *client, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, g.opts.WriteTimeout)
			err := wsjson.Write(wctx, conn, msg)
			cancel()
			if err != nil {
				log.Debug("write failed", zap.String("type", msg.Type), zap.Error(err))
				conn.CloseNow()
				return
			}
		}
	}
}

// disconnect removes the client from every room it joined. Each leave waits
// for its room, however long that room is busy arbitrating, and returns early
// only if the room stops. Rooms that empty deregister themselves.
func (g *gateway) disconnect(c *client, log *zap.Logger) {
	var eg errgroup.Group
	for code, lb := range c.rooms {
		eg.Go(func() error {
			res, err := lb.Leave(context.Background(), c.id)
			if err != nil && !errors.Is(err, lobby.ErrClosed) {
				return fmt.Errorf("leave %s: %w", code, err)
			}
			if res.Empty {
				log.Debug("left last", zap.String("room", code))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		log.Warn("disconnect", zap.Error(err))
	}
	clear(c.rooms)
}
