package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the server to client envelope.
type Event struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"room_code"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType identifies the payload carried by an Event.
type EventType string

const (
	EventTypeRoomCreated      EventType = "room_created"
	EventTypeRoomJoined       EventType = "room_joined"
	EventTypeStateUpdate      EventType = "state_update"
	EventTypeNewBid           EventType = "new_bid"
	EventTypeTimerStarted     EventType = "timer_started"
	EventTypeTimerStopped     EventType = "timer_stopped"
	EventTypeLotDrawn         EventType = "lot_drawn"
	EventTypeSetChanged       EventType = "set_changed"
	EventTypeLotResolved      EventType = "lot_resolved"
	EventTypeAuctionCompleted EventType = "auction_completed"
	EventTypeCatalogLoaded    EventType = "catalog_loaded"
	EventTypeTeamClaimed      EventType = "team_claimed"
	EventTypeRoomUnavailable  EventType = "room_unavailable"
	EventTypeRejection        EventType = "rejection"
)

// IsDomain reports whether events of this type are forwarded to the event bus.
func (t EventType) IsDomain() bool {
	switch t {
	case EventTypeCatalogLoaded, EventTypeLotDrawn, EventTypeNewBid, EventTypeLotResolved,
		EventTypeSetChanged, EventTypeAuctionCompleted, EventTypeRoomUnavailable:
		return true
	}
	return false
}

// New builds an event with a fresh id.
func New(roomCode string, t EventType, at time.Time, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      t,
		Timestamp: at,
		Data:      data,
	}, nil
}

// Decode unmarshals the event data into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ParsePayload decodes the event data into the payload struct for its type.
func ParsePayload(e *Event) (interface{}, error) {
	var payload interface{}
	switch e.Type {
	case EventTypeRoomCreated:
		payload = &RoomCreatedPayload{}
	case EventTypeRoomJoined:
		payload = &RoomJoinedPayload{}
	case EventTypeStateUpdate:
		payload = &SnapshotPayload{}
	case EventTypeNewBid:
		payload = &NewBidPayload{}
	case EventTypeTimerStarted:
		payload = &TimerStartedPayload{}
	case EventTypeTimerStopped:
		payload = &TimerStoppedPayload{}
	case EventTypeLotDrawn:
		payload = &LotDrawnPayload{}
	case EventTypeSetChanged:
		payload = &SetChangedPayload{}
	case EventTypeLotResolved:
		payload = &LotResolvedPayload{}
	case EventTypeAuctionCompleted:
		payload = &AuctionCompletedPayload{}
	case EventTypeCatalogLoaded:
		payload = &CatalogLoadedPayload{}
	case EventTypeTeamClaimed:
		payload = &TeamClaimedPayload{}
	case EventTypeRoomUnavailable:
		payload = &RoomUnavailablePayload{}
	case EventTypeRejection:
		payload = &RejectionPayload{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", e.Type)
	}
	if err := e.Decode(payload); err != nil {
		return nil, err
	}
	return payload, nil
}
