package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/element-battle-backend/internal/hub"
	"github.com/DoyleJ11/element-battle-backend/internal/ws"
)

type Config struct {
	AllowedOrigins []string
	WS             ws.Options
}

func SetupRoutes(h *hub.Hub, cfg Config, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/rooms/{code}", GetRoom(h, log))
	r.Get("/ws", ws.Handler(h, cfg.WS, log))
	return r
}
