package eventbus

import (
	"context"

	"github.com/mcdev12/bidroom/go/internal/events"
)

// Publisher delivers one domain event to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event *events.Event) error

func (f PublisherFunc) Publish(ctx context.Context, event *events.Event) error {
	return f(ctx, event)
}
