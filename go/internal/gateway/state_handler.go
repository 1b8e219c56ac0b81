package gateway

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/room"
)

// StateProvider returns the snapshot a room would broadcast right now.
type StateProvider interface {
	Snapshot(code string) (events.SnapshotPayload, error)
}

// StateHandler serves room snapshots over HTTP so clients can resync
// without a socket round trip.
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetRoomState handles GET /api/rooms/{code}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		http.Error(w, "room code is required", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.Snapshot(code)
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("room_code", code).Msg("failed to get room state")
		http.Error(w, "failed to get room state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// RegisterStateRoutes registers the state routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/{code}/state", h.HandleGetRoomState)
}
