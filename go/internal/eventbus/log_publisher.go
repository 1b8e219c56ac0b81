package eventbus

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/events"
)

// LogPublisher writes domain events to the structured log. It is used when
// no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event *events.Event) error {
	log.Info().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("room_code", event.RoomCode).
		Time("timestamp", event.Timestamp).
		RawJSON("data", event.Data).
		Msg("domain event")
	return nil
}
