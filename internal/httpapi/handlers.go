package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/element-battle-backend/internal/hub"
	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
)

// GetRoom returns a read-only view of a live room.
func GetRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		lb, err := h.Get(r.Context(), code)
		if errors.Is(err, hub.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("lookup room", zap.String("room", code), zap.Error(err))
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		view, err := lb.View(r.Context())
		if errors.Is(err, lobby.ErrClosed) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("view room", zap.String("room", code), zap.Error(err))
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(view.RoomView())
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
