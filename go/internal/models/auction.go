package models

import (
	"fmt"
	"time"
)

// AuctionStatus is the lifecycle state of an auction session.
type AuctionStatus string

const (
	AuctionStatusIdle      AuctionStatus = "IDLE"
	AuctionStatusActive    AuctionStatus = "ACTIVE"
	AuctionStatusCompleted AuctionStatus = "COMPLETED"
)

// LotOutcome is how a lot left the block.
type LotOutcome string

const (
	LotOutcomeSold   LotOutcome = "SOLD"
	LotOutcomeUnsold LotOutcome = "UNSOLD"
)

// DrawPolicy selects how the next lot of a set is chosen.
type DrawPolicy string

const (
	DrawPolicyRandom  DrawPolicy = "random"
	DrawPolicyOrdered DrawPolicy = "ordered"
)

// AuctionConfig is fixed for the lifetime of one auction.
type AuctionConfig struct {
	TotalTeams      int           `json:"total_teams" yaml:"total_teams"`
	Budget          int64         `json:"budget" yaml:"budget"`
	MaxSquadSize    int           `json:"max_squad_size" yaml:"max_squad_size"`
	MaxOverseas     int           `json:"max_overseas" yaml:"max_overseas"`
	TimerDuration   time.Duration `json:"timer_duration" yaml:"timer_duration"`
	AntiSnipeWindow time.Duration `json:"anti_snipe_window" yaml:"anti_snipe_window"`
	DrawPolicy      DrawPolicy    `json:"draw_policy" yaml:"draw_policy"`
	HomeNationality string        `json:"home_nationality" yaml:"home_nationality"`
}

// MaxTimerDuration bounds the countdown and anti-snipe settings.
const MaxTimerDuration = 24 * time.Hour

// DefaultAuctionConfig mirrors the stock ten-team league settings.
func DefaultAuctionConfig() AuctionConfig {
	return AuctionConfig{
		TotalTeams:      10,
		Budget:          100_000_000,
		MaxSquadSize:    25,
		MaxOverseas:     8,
		TimerDuration:   30 * time.Second,
		AntiSnipeWindow: 10 * time.Second,
		DrawPolicy:      DrawPolicyRandom,
		HomeNationality: "India",
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c AuctionConfig) Validate() error {
	if c.TotalTeams < 0 {
		return fmt.Errorf("total_teams must not be negative")
	}
	if c.Budget <= 0 {
		return fmt.Errorf("budget must be greater than 0")
	}
	if c.MaxSquadSize < 0 || c.MaxOverseas < 0 {
		return fmt.Errorf("squad limits must not be negative")
	}
	if c.TimerDuration <= 0 || c.TimerDuration > MaxTimerDuration {
		return fmt.Errorf("timer_duration must be in (0, %s]", MaxTimerDuration)
	}
	if c.AntiSnipeWindow < 0 || c.AntiSnipeWindow > MaxTimerDuration {
		return fmt.Errorf("anti_snipe_window must be in [0, %s]", MaxTimerDuration)
	}
	switch c.DrawPolicy {
	case "", DrawPolicyRandom, DrawPolicyOrdered:
	default:
		return fmt.Errorf("unknown draw_policy %q", c.DrawPolicy)
	}
	return nil
}

// Bid is one accepted bid in the history of the current lot.
type Bid struct {
	TeamID    string    `json:"team_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// SoldLot records a lot together with its buyer and hammer price.
type SoldLot struct {
	Lot    Lot    `json:"lot"`
	TeamID string `json:"team_id"`
	Amount int64  `json:"amount"`
}

// Snapshot is a complete, self-sufficient copy of an auction session.
type Snapshot struct {
	Status        AuctionStatus `json:"status"`
	SetsOrder     []string      `json:"sets_order"`
	CurrentSet    string        `json:"current_set"`
	CurrentLot    *Lot          `json:"current_lot"`
	CurrentBid    int64         `json:"current_bid"`
	CurrentBidder *string       `json:"current_bidder"`
	MinNextBid    int64         `json:"min_next_bid"`
	BidHistory    []Bid         `json:"bid_history"`
	Deadline      *time.Time    `json:"deadline"`
	Sold          []SoldLot     `json:"sold"`
	Unsold        []Lot         `json:"unsold"`
	Teams         []Team        `json:"teams"`
	RemainingLots int           `json:"remaining_lots"`
	Config        AuctionConfig `json:"config"`
}
