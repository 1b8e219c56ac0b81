package auction

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/models"
)

// maxBidHistory bounds the bid history kept for the current lot.
const maxBidHistory = 10

// DrawKind classifies the result of DrawNextLot.
type DrawKind int

const (
	// DrawNoop means nothing changed (auction already completed).
	DrawNoop DrawKind = iota
	// DrawLot means a lot is now up for bidding.
	DrawLot
	// DrawSetAdvanced means the current set ran dry and the engine moved on
	// to the next set without drawing. The host draws again.
	DrawSetAdvanced
	// DrawCompleted means no eligible lots remained in any set.
	DrawCompleted
)

func (k DrawKind) String() string {
	switch k {
	case DrawLot:
		return "lot"
	case DrawSetAdvanced:
		return "set_advanced"
	case DrawCompleted:
		return "completed"
	default:
		return "noop"
	}
}

// DrawResult describes what DrawNextLot did.
type DrawResult struct {
	Kind     DrawKind
	Lot      *models.Lot
	Set      string
	Deadline time.Time
}

// Resolution describes how a lot left the block.
type Resolution struct {
	Lot     models.Lot
	Outcome models.LotOutcome
	TeamID  string
	Amount  int64
}

// Engine is the auction state machine for one session. It is not safe for
// concurrent use; callers serialize access.
type Engine struct {
	cfg      models.AuctionConfig
	clock    clockwork.Clock
	selector LotSelector

	catalog *catalog.Catalog
	ledger  *ledger
	status  models.AuctionStatus

	setOrder []string
	setIdx   int

	currentLot    *models.Lot
	currentBid    int64
	currentBidder string
	history       []models.Bid
	deadline      time.Time

	sold   []models.SoldLot
	unsold []models.Lot
	closed map[int]bool
}

// NewEngine creates an IDLE engine without a catalog.
func NewEngine(cfg models.AuctionConfig, clock clockwork.Clock, selector LotSelector) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auction config: %w", err)
	}
	if cfg.DrawPolicy == "" {
		cfg.DrawPolicy = models.DrawPolicyRandom
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if selector == nil {
		selector = SelectorFor(cfg.DrawPolicy)
	}
	return &Engine{
		cfg:      cfg,
		clock:    clock,
		selector: selector,
		status:   models.AuctionStatusIdle,
		closed:   make(map[int]bool),
	}, nil
}

// Config returns the configuration the engine was created with.
func (e *Engine) Config() models.AuctionConfig {
	return e.cfg
}

// Status returns the lifecycle status.
func (e *Engine) Status() models.AuctionStatus {
	return e.status
}

// HasCatalog reports whether LoadCatalog has succeeded.
func (e *Engine) HasCatalog() bool {
	return e.catalog != nil
}

// HasTeam reports whether id names a team of the loaded session.
func (e *Engine) HasTeam(id string) bool {
	_, ok := e.ledger.team(id)
	return ok
}

// CurrentLot returns the lot up for bidding, if any.
func (e *Engine) CurrentLot() (models.Lot, bool) {
	if e.currentLot == nil {
		return models.Lot{}, false
	}
	return *e.currentLot, true
}

// Deadline returns the absolute countdown deadline, if one is armed.
func (e *Engine) Deadline() (time.Time, bool) {
	return e.deadline, !e.deadline.IsZero()
}

// LoadCatalog replaces any prior session with a fresh one over cat. An empty
// team list falls back to the default franchises.
func (e *Engine) LoadCatalog(cat *catalog.Catalog, teams []models.TeamSpec) error {
	if cat == nil || cat.Len() == 0 {
		return ErrNoCatalog
	}
	if len(teams) == 0 {
		n := e.cfg.TotalTeams
		if n <= 0 || n > len(models.DefaultTeams) {
			return fmt.Errorf("no teams given and %d default teams requested: %w", n, ErrInvalidTeams)
		}
		teams = models.DefaultTeams[:n]
	}
	if e.cfg.TotalTeams > 0 && len(teams) != e.cfg.TotalTeams {
		return fmt.Errorf("expected %d teams, got %d: %w", e.cfg.TotalTeams, len(teams), ErrInvalidTeams)
	}

	l, err := newLedger(teams, e.cfg.Budget)
	if err != nil {
		return err
	}

	e.catalog = cat
	e.ledger = l
	e.status = models.AuctionStatusIdle
	e.setOrder = cat.SetOrder()
	e.setIdx = 0
	e.sold = nil
	e.unsold = nil
	e.closed = make(map[int]bool)
	e.clearLot()
	return nil
}

// DrawNextLot offers the next eligible lot of the current set. When the
// current set has nothing left it advances to the next non-empty set and
// returns DrawSetAdvanced, or completes the auction when none remain.
func (e *Engine) DrawNextLot() (DrawResult, error) {
	if e.status == models.AuctionStatusCompleted {
		return DrawResult{Kind: DrawNoop}, nil
	}
	if e.catalog == nil {
		return DrawResult{}, ErrNoCatalog
	}
	if e.currentLot != nil {
		return DrawResult{}, ErrLotInProgress
	}

	if eligible := e.eligible(e.setOrder[e.setIdx]); len(eligible) > 0 {
		lot := e.selector.Select(eligible)
		e.currentLot = &lot
		e.currentBid = lot.BasePrice
		e.currentBidder = ""
		e.history = nil
		e.deadline = e.clock.Now().Add(e.cfg.TimerDuration)
		e.status = models.AuctionStatusActive
		return DrawResult{Kind: DrawLot, Lot: &lot, Set: lot.Set, Deadline: e.deadline}, nil
	}

	for i := e.setIdx + 1; i < len(e.setOrder); i++ {
		if len(e.eligible(e.setOrder[i])) > 0 {
			e.setIdx = i
			e.status = models.AuctionStatusActive
			return DrawResult{Kind: DrawSetAdvanced, Set: e.setOrder[i]}, nil
		}
	}

	e.status = models.AuctionStatusCompleted
	e.clearLot()
	return DrawResult{Kind: DrawCompleted}, nil
}

func (e *Engine) eligible(set string) []models.Lot {
	var out []models.Lot
	for _, lot := range e.catalog.LotsInSet(set) {
		if e.closed[lot.ID] {
			continue
		}
		if e.currentLot != nil && e.currentLot.ID == lot.ID {
			continue
		}
		out = append(out, lot)
	}
	return out
}

// PlaceBid validates and applies a bid for the current lot.
func (e *Engine) PlaceBid(teamID string, amount int64) (models.Bid, error) {
	now := e.clock.Now()
	if e.currentLot == nil || e.deadline.IsZero() || !now.Before(e.deadline) {
		return models.Bid{}, ErrBiddingClosed
	}
	team, ok := e.ledger.team(teamID)
	if !ok {
		return models.Bid{}, ErrUnknownTeam
	}
	if amount <= e.currentBid {
		return models.Bid{}, ErrBidTooLow
	}
	if team.Budget < amount {
		return models.Bid{}, ErrInsufficientFunds
	}
	if e.cfg.MaxSquadSize > 0 && len(team.Squad) >= e.cfg.MaxSquadSize {
		return models.Bid{}, ErrSquadFull
	}
	if e.cfg.MaxOverseas > 0 && e.currentLot.IsOverseas(e.cfg.HomeNationality) &&
		team.OverseasCount(e.cfg.HomeNationality) >= e.cfg.MaxOverseas {
		return models.Bid{}, ErrOverseasLimit
	}

	bid := models.Bid{TeamID: teamID, Amount: amount, Timestamp: now}
	e.currentBid = amount
	e.currentBidder = teamID
	e.history = append([]models.Bid{bid}, e.history...)
	if len(e.history) > maxBidHistory {
		e.history = e.history[:maxBidHistory]
	}

	if window := e.cfg.AntiSnipeWindow; window > 0 && e.deadline.Sub(now) < window {
		e.deadline = now.Add(window)
	}
	return bid, nil
}

// ResolveLot closes the current lot: sold to the standing bidder, or unsold
// without one. It returns false when no lot is up.
func (e *Engine) ResolveLot() (Resolution, bool) {
	if e.currentLot == nil {
		return Resolution{}, false
	}
	lot := *e.currentLot
	res := Resolution{Lot: lot, Outcome: models.LotOutcomeUnsold}

	if e.currentBidder != "" {
		if err := e.ledger.debit(e.currentBidder, lot, e.currentBid); err == nil {
			res.Outcome = models.LotOutcomeSold
			res.TeamID = e.currentBidder
			res.Amount = e.currentBid
			e.sold = append(e.sold, models.SoldLot{Lot: lot, TeamID: res.TeamID, Amount: res.Amount})
		}
	}
	if res.Outcome == models.LotOutcomeUnsold {
		e.unsold = append(e.unsold, lot)
	}

	e.closed[lot.ID] = true
	e.clearLot()
	return res, true
}

// ForceResolve resolves the current lot ahead of its deadline.
func (e *Engine) ForceResolve() (Resolution, bool) {
	return e.ResolveLot()
}

// ForceUnsold passes the current lot as unsold even when a bid stands.
func (e *Engine) ForceUnsold() (Resolution, bool) {
	if e.currentLot == nil {
		return Resolution{}, false
	}
	e.currentBidder = ""
	return e.ResolveLot()
}

// StartCountdown re-arms the deadline for the current lot. A non-positive
// duration uses the configured timer duration.
func (e *Engine) StartCountdown(d time.Duration) (time.Time, bool) {
	if e.currentLot == nil {
		return time.Time{}, false
	}
	if d <= 0 {
		d = e.cfg.TimerDuration
	}
	e.deadline = e.clock.Now().Add(d)
	return e.deadline, true
}

// StopCountdown clears the deadline, which closes bidding until the
// countdown is started again.
func (e *Engine) StopCountdown() bool {
	if e.currentLot == nil || e.deadline.IsZero() {
		return false
	}
	e.deadline = time.Time{}
	return true
}

// Expired reports whether a countdown is armed and has elapsed.
func (e *Engine) Expired() bool {
	return e.currentLot != nil && !e.deadline.IsZero() && !e.clock.Now().Before(e.deadline)
}

func (e *Engine) clearLot() {
	e.currentLot = nil
	e.currentBid = 0
	e.currentBidder = ""
	e.history = nil
	e.deadline = time.Time{}
}

// Snapshot returns a deep copy of the session.
func (e *Engine) Snapshot() models.Snapshot {
	s := models.Snapshot{
		Status:     e.status,
		SetsOrder:  append([]string{}, e.setOrder...),
		CurrentBid: e.currentBid,
		BidHistory: append([]models.Bid{}, e.history...),
		Sold:       append([]models.SoldLot{}, e.sold...),
		Unsold:     append([]models.Lot{}, e.unsold...),
		Teams:      e.ledger.snapshot(),
		Config:     e.cfg,
	}
	if len(e.setOrder) > 0 {
		s.CurrentSet = e.setOrder[e.setIdx]
	}
	if e.currentLot != nil {
		lot := *e.currentLot
		s.CurrentLot = &lot
		s.MinNextBid = NextBidAmount(e.currentBid)
	}
	if e.currentBidder != "" {
		bidder := e.currentBidder
		s.CurrentBidder = &bidder
	}
	if !e.deadline.IsZero() {
		d := e.deadline
		s.Deadline = &d
	}
	if e.catalog != nil {
		s.RemainingLots = e.catalog.Len() - len(e.closed)
		if e.currentLot != nil {
			s.RemainingLots--
		}
	}
	return s
}
