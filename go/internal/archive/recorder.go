package archive

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/events"
)

// Recorder archives completed auctions. It consumes domain events and
// ignores everything except auction_completed.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Publish(ctx context.Context, event *events.Event) error {
	if event.Type != events.EventTypeAuctionCompleted {
		return nil
	}
	result, err := ResultFromEvent(event)
	if err != nil {
		return err
	}
	if err := r.store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to archive auction: %w", err)
	}

	log.Info().
		Str("room_code", result.RoomCode).
		Str("result_id", result.ID.String()).
		Int("sold", len(result.Sold)).
		Int64("total_spent", result.TotalSpent()).
		Msg("auction archived")
	return nil
}

// ResultFromEvent converts an auction_completed event into a Result keyed by
// the event id.
func ResultFromEvent(event *events.Event) (Result, error) {
	id, err := uuid.Parse(event.ID)
	if err != nil {
		return Result{}, fmt.Errorf("invalid event id %q: %w", event.ID, err)
	}
	var payload events.AuctionCompletedPayload
	if err := event.Decode(&payload); err != nil {
		return Result{}, err
	}
	return Result{
		ID:          id,
		RoomCode:    event.RoomCode,
		CompletedAt: payload.CompletedAt,
		Sold:        payload.Sold,
		Unsold:      payload.Unsold,
		Teams:       payload.Teams,
	}, nil
}
