package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/bidroom/go/internal/models"
)

// Intent is the client to server envelope.
type Intent struct {
	RequestID string          `json:"request_id,omitempty"`
	Type      IntentType      `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// IntentType identifies what a client asks the server to do.
type IntentType string

const (
	IntentCreateRoom     IntentType = "create_room"
	IntentJoinRoom       IntentType = "join_room"
	IntentClaimTeam      IntentType = "claim_team"
	IntentLoadCatalog    IntentType = "load_catalog"
	IntentDrawLot        IntentType = "draw_lot"
	IntentStartCountdown IntentType = "start_countdown"
	IntentStopCountdown  IntentType = "stop_countdown"
	IntentPlaceBid       IntentType = "place_bid"
	IntentForceResolve   IntentType = "force_resolve"
	IntentForceUnsold    IntentType = "force_unsold"
	IntentSync           IntentType = "sync"
)

// NewIntent builds an intent with an encoded payload. data may be nil.
func NewIntent(t IntentType, requestID string, data interface{}) (*Intent, error) {
	in := &Intent{RequestID: requestID, Type: t}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s intent: %w", t, err)
		}
		in.Data = raw
	}
	return in, nil
}

// Decode unmarshals the intent data into v. An empty payload leaves v as is.
func (i *Intent) Decode(v interface{}) error {
	if len(i.Data) == 0 || string(i.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(i.Data, v); err != nil {
		return fmt.Errorf("malformed %s payload: %w", i.Type, err)
	}
	return nil
}

// AuctionSettings is the client-facing form of the auction configuration.
// Zero fields keep the server defaults.
type AuctionSettings struct {
	TotalTeams       int               `json:"total_teams,omitempty"`
	Budget           int64             `json:"budget,omitempty"`
	MaxSquadSize     int               `json:"max_squad_size,omitempty"`
	MaxOverseas      int               `json:"max_overseas,omitempty"`
	TimerSeconds     int               `json:"timer_seconds,omitempty"`
	AntiSnipeSeconds int               `json:"anti_snipe_seconds,omitempty"`
	DrawPolicy       models.DrawPolicy `json:"draw_policy,omitempty"`
	HomeNationality  string            `json:"home_nationality,omitempty"`
}

// MaxDurationSeconds caps every duration a client may request in seconds.
const MaxDurationSeconds = int(models.MaxTimerDuration / time.Second)

// Validate rejects durations that are negative or above MaxDurationSeconds.
func (s AuctionSettings) Validate() error {
	if err := checkSeconds("timer_seconds", s.TimerSeconds); err != nil {
		return err
	}
	return checkSeconds("anti_snipe_seconds", s.AntiSnipeSeconds)
}

func checkSeconds(field string, n int) error {
	if n < 0 || n > MaxDurationSeconds {
		return fmt.Errorf("%s must be between 0 and %d", field, MaxDurationSeconds)
	}
	return nil
}

// Apply overlays the non-zero settings onto base.
func (s AuctionSettings) Apply(base models.AuctionConfig) models.AuctionConfig {
	if s.TotalTeams > 0 {
		base.TotalTeams = s.TotalTeams
	}
	if s.Budget > 0 {
		base.Budget = s.Budget
	}
	if s.MaxSquadSize > 0 {
		base.MaxSquadSize = s.MaxSquadSize
	}
	if s.MaxOverseas > 0 {
		base.MaxOverseas = s.MaxOverseas
	}
	if s.TimerSeconds > 0 {
		base.TimerDuration = time.Duration(s.TimerSeconds) * time.Second
	}
	if s.AntiSnipeSeconds > 0 {
		base.AntiSnipeWindow = time.Duration(s.AntiSnipeSeconds) * time.Second
	}
	if s.DrawPolicy != "" {
		base.DrawPolicy = s.DrawPolicy
	}
	if s.HomeNationality != "" {
		base.HomeNationality = s.HomeNationality
	}
	return base
}

// CreateRoomData is the payload of create_room.
type CreateRoomData struct {
	DisplayName string          `json:"display_name"`
	Settings    AuctionSettings `json:"settings"`
}

// JoinRoomData is the payload of join_room. ResumeToken, as returned in
// room_created or room_joined, resumes an earlier participant of the same
// room.
type JoinRoomData struct {
	RoomCode    string `json:"room_code"`
	DisplayName string `json:"display_name"`
	ResumeToken string `json:"resume_token,omitempty"`
}

// ClaimTeamData is the payload of claim_team.
type ClaimTeamData struct {
	TeamID string `json:"team_id"`
}

// LoadCatalogData is the payload of load_catalog. Without lots the server's
// default catalog is used; without teams the default franchises are.
type LoadCatalogData struct {
	Lots     []models.Lot      `json:"lots,omitempty"`
	SetOrder []string          `json:"set_order,omitempty"`
	Teams    []models.TeamSpec `json:"teams,omitempty"`
}

// StartCountdownData is the payload of start_countdown. Zero uses the
// room's configured timer.
type StartCountdownData struct {
	DurationSeconds int `json:"duration_seconds"`
}

// Duration converts DurationSeconds after checking its range.
func (d StartCountdownData) Duration() (time.Duration, error) {
	if err := checkSeconds("duration_seconds", d.DurationSeconds); err != nil {
		return 0, err
	}
	return time.Duration(d.DurationSeconds) * time.Second, nil
}

// PlaceBidData is the payload of place_bid.
type PlaceBidData struct {
	TeamID string `json:"team_id"`
	Amount int64  `json:"amount"`
}
