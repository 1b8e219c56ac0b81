package archive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultListLimit = 20

// Reader reads archived results.
type Reader interface {
	GetResult(ctx context.Context, id uuid.UUID) (*Result, error)
	ListByRoom(ctx context.Context, roomCode string, limit int32) ([]*Result, error)
}

// Handler serves archived results over HTTP.
type Handler struct {
	reader Reader
}

func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// HandleGetResult handles GET /api/results/{id}
func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid result id", http.StatusBadRequest)
		return
	}

	result, err := h.reader.GetResult(r.Context(), id)
	switch {
	case errors.Is(err, ErrResultNotFound):
		http.Error(w, "result not found", http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("result_id", id.String()).Msg("failed to get auction result")
		http.Error(w, "failed to get result", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// HandleListRoomResults handles GET /api/rooms/{code}/results?limit=N
func (h *Handler) HandleListRoomResults(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := h.reader.ListByRoom(r.Context(), code, int32(limit))
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to list auction results")
		http.Error(w, "failed to list results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

// RegisterRoutes registers the result routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/results/{id}", h.HandleGetResult)
	mux.HandleFunc("GET /api/rooms/{code}/results", h.HandleListRoomResults)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
