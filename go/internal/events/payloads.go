package events

import (
	"fmt"
	"time"

	"github.com/mcdev12/bidroom/go/internal/models"
)

// Payload types shared between the server gateway and client replicas.

// RosterEntry describes one participant of a room.
type RosterEntry struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	TeamID        string `json:"team_id,omitempty"`
	Host          bool   `json:"host"`
	Connected     bool   `json:"connected"`
}

// SnapshotPayload is the full canonical state of a room. It replaces the
// receiver's view entirely. Version grows by one per mutation; Round counts
// catalog loads.
type SnapshotPayload struct {
	Version     uint64          `json:"version"`
	Round       int             `json:"round"`
	ServerTime  time.Time       `json:"server_time"`
	Deadline    *time.Time      `json:"deadline"`
	RemainingMs int64           `json:"remaining_ms"`
	HostID      string          `json:"host_id"`
	Unavailable bool            `json:"unavailable"`
	Roster      []RosterEntry   `json:"roster"`
	Session     models.Snapshot `json:"session"`
}

// RoomCreatedPayload is sent to the creator of a room only. ResumeToken
// re-attaches the creator on a later join_room.
type RoomCreatedPayload struct {
	RoomCode      string `json:"room_code"`
	ParticipantID string `json:"participant_id"`
	ResumeToken   string `json:"resume_token"`
}

// RoomJoinedPayload is sent to a participant that joined a room.
type RoomJoinedPayload struct {
	RoomCode      string `json:"room_code"`
	ParticipantID string `json:"participant_id"`
	ResumeToken   string `json:"resume_token"`
	DisplayName   string `json:"display_name"`
	Resumed       bool   `json:"resumed"`
}

// NewBidPayload is the provisional fast-path notice of an accepted bid.
type NewBidPayload struct {
	LotID     int       `json:"lot_id"`
	TeamID    string    `json:"team_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Deadline  time.Time `json:"deadline"`
}

// TimerStartedPayload announces a (re)armed countdown.
type TimerStartedPayload struct {
	LotID      int       `json:"lot_id"`
	Deadline   time.Time `json:"deadline"`
	DurationMs int64     `json:"duration_ms"`
}

// TimerStoppedPayload announces a cancelled countdown.
type TimerStoppedPayload struct {
	LotID     int       `json:"lot_id"`
	StoppedAt time.Time `json:"stopped_at"`
}

// LotDrawnPayload announces the lot now up for bidding.
type LotDrawnPayload struct {
	Lot      models.Lot `json:"lot"`
	Set      string     `json:"set"`
	Deadline time.Time  `json:"deadline"`
}

// SetChangedPayload announces a move to the next set.
type SetChangedPayload struct {
	Previous string `json:"previous"`
	Set      string `json:"set"`
}

// ResolutionKey identifies the resolution of one lot in one round of a room.
func ResolutionKey(roomCode string, round, lotID int) string {
	return fmt.Sprintf("%s:%d:%d", roomCode, round, lotID)
}

// LotResolvedPayload is the one-shot sold/unsold notice. Key is unique per
// resolution within a room.
type LotResolvedPayload struct {
	Key        string            `json:"key"`
	Lot        models.Lot        `json:"lot"`
	Outcome    models.LotOutcome `json:"outcome"`
	TeamID     string            `json:"team_id,omitempty"`
	Amount     int64             `json:"amount,omitempty"`
	Forced     bool              `json:"forced"`
	ResolvedAt time.Time         `json:"resolved_at"`
}

// AuctionCompletedPayload carries the final results of an auction.
type AuctionCompletedPayload struct {
	CompletedAt time.Time        `json:"completed_at"`
	Sold        []models.SoldLot `json:"sold"`
	Unsold      []models.Lot     `json:"unsold"`
	Teams       []models.Team    `json:"teams"`
}

// CatalogLoadedPayload announces a fresh session.
type CatalogLoadedPayload struct {
	Lots  int      `json:"lots"`
	Sets  []string `json:"sets"`
	Teams []string `json:"teams"`
}

// TeamClaimedPayload records which participant drives which team.
type TeamClaimedPayload struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	TeamID        string `json:"team_id"`
}

// RoomUnavailablePayload announces that the room no longer accepts intents.
type RoomUnavailablePayload struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// RejectionPayload tells a requester why an intent failed.
type RejectionPayload struct {
	RequestID string     `json:"request_id,omitempty"`
	Intent    IntentType `json:"intent"`
	Code      string     `json:"code"`
	Reason    string     `json:"reason"`
}
