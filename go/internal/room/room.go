package room

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/auction"
	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/models"
)

// Participant is one member of a room's roster.
type Participant struct {
	ID          string
	DisplayName string
	TeamID      string
	Connected   bool
	JoinedAt    time.Time

	// resumeToken re-attaches this participant on a later join. It is
	// handed only to the participant itself and never broadcast.
	resumeToken string
}

// Outcome is the result of a mutation: the new canonical snapshot and the
// events that were enqueued for broadcast, in order.
type Outcome struct {
	Snapshot events.SnapshotPayload
	Events   []*events.Event
}

// Room is one independent auction. Every entry point takes mu for the whole
// state transition and enqueues its broadcasts before releasing it, so the
// broadcasts of a room are produced in mutation order.
type Room struct {
	code string
	reg  *Registry

	mu           sync.Mutex
	engine       *auction.Engine
	hostID       string
	participants []*Participant
	byID         map[string]*Participant
	byToken      map[string]*Participant
	version      uint64
	unavailable  bool
	session      int
	lastActive   time.Time
	countdown    countdown
}

func newRoom(code string, engine *auction.Engine, host *Participant, reg *Registry) *Room {
	rm := &Room{
		code:       code,
		reg:        reg,
		engine:     engine,
		hostID:     host.ID,
		byID:       make(map[string]*Participant),
		byToken:    make(map[string]*Participant),
		lastActive: reg.clock.Now(),
	}
	rm.addParticipant(host)
	return rm
}

// Code returns the room code.
func (rm *Room) Code() string {
	return rm.code
}

func (rm *Room) addParticipant(p *Participant) {
	rm.participants = append(rm.participants, p)
	rm.byID[p.ID] = p
	if p.resumeToken != "" {
		rm.byToken[p.resumeToken] = p
	}
}

func (rm *Room) connectedCount() int {
	n := 0
	for _, p := range rm.participants {
		if p.Connected {
			n++
		}
	}
	return n
}

// authorize checks that the room accepts intents from participantID.
func (rm *Room) authorize(participantID string, hostOnly bool) error {
	if rm.unavailable {
		return ErrRoomUnavailable
	}
	if _, ok := rm.byID[participantID]; !ok {
		return ErrNotParticipant
	}
	if hostOnly && participantID != rm.hostID {
		return ErrNotHost
	}
	return nil
}

// ClaimTeam records which team a participant drives. The claim is for
// attribution only and is not enforced when bidding.
func (r *Registry) ClaimTeam(code, participantID, teamID string) (Outcome, error) {
	return r.mutate(code, participantID, false, func(rm *Room) ([]*events.Event, error) {
		if rm.engine.HasCatalog() && !rm.engine.HasTeam(teamID) {
			return nil, auction.ErrUnknownTeam
		}
		p := rm.byID[participantID]
		p.TeamID = teamID
		return rm.events(events.EventTypeTeamClaimed, events.TeamClaimedPayload{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			TeamID:        teamID,
		}), nil
	})
}

// LoadCatalog starts a fresh session over cat. A nil catalog selects the
// registry's default catalog.
func (r *Registry) LoadCatalog(code, participantID string, cat *catalog.Catalog, teams []models.TeamSpec) (Outcome, error) {
	if cat == nil {
		cat = r.defaultCatalog
	}
	return r.mutate(code, participantID, true, func(rm *Room) ([]*events.Event, error) {
		if cat == nil {
			return nil, auction.ErrNoCatalog
		}
		if err := rm.engine.LoadCatalog(cat, teams); err != nil {
			return nil, err
		}
		rm.session++
		snap := rm.engine.Snapshot()
		ids := make([]string, 0, len(snap.Teams))
		for _, t := range snap.Teams {
			ids = append(ids, t.ID)
		}
		for _, p := range rm.participants {
			if p.TeamID != "" && !rm.engine.HasTeam(p.TeamID) {
				p.TeamID = ""
			}
		}

		log.Info().
			Str("room_code", rm.code).
			Int("lots", cat.Len()).
			Int("teams", len(ids)).
			Msg("catalog loaded")

		return rm.events(events.EventTypeCatalogLoaded, events.CatalogLoadedPayload{
			Lots:  cat.Len(),
			Sets:  snap.SetsOrder,
			Teams: ids,
		}), nil
	})
}

// DrawNextLot puts the next lot up for bidding, moves to the next set, or
// completes the auction.
func (r *Registry) DrawNextLot(code, participantID string) (Outcome, error) {
	return r.mutate(code, participantID, true, func(rm *Room) ([]*events.Event, error) {
		previous := rm.engine.Snapshot().CurrentSet
		res, err := rm.engine.DrawNextLot()
		if err != nil {
			return nil, err
		}
		now := rm.reg.clock.Now()

		switch res.Kind {
		case auction.DrawLot:
			log.Info().
				Str("room_code", rm.code).
				Int("lot_id", res.Lot.ID).
				Str("set", res.Set).
				Time("deadline", res.Deadline).
				Msg("lot drawn")
			return append(
				rm.events(events.EventTypeLotDrawn, events.LotDrawnPayload{Lot: *res.Lot, Set: res.Set, Deadline: res.Deadline}),
				rm.events(events.EventTypeTimerStarted, events.TimerStartedPayload{
					LotID:      res.Lot.ID,
					Deadline:   res.Deadline,
					DurationMs: res.Deadline.Sub(now).Milliseconds(),
				})...,
			), nil
		case auction.DrawSetAdvanced:
			log.Info().Str("room_code", rm.code).Str("from", previous).Str("to", res.Set).Msg("set changed")
			return rm.events(events.EventTypeSetChanged, events.SetChangedPayload{Previous: previous, Set: res.Set}), nil
		case auction.DrawCompleted:
			snap := rm.engine.Snapshot()
			log.Info().
				Str("room_code", rm.code).
				Int("sold", len(snap.Sold)).
				Int("unsold", len(snap.Unsold)).
				Msg("auction completed")
			return rm.events(events.EventTypeAuctionCompleted, events.AuctionCompletedPayload{
				CompletedAt: now,
				Sold:        snap.Sold,
				Unsold:      snap.Unsold,
				Teams:       snap.Teams,
			}), nil
		default:
			return nil, errNoop
		}
	})
}

// StartCountdown re-arms the countdown of the current lot. d <= 0 uses the
// configured timer duration.
func (r *Registry) StartCountdown(code, participantID string, d time.Duration) (Outcome, error) {
	return r.mutate(code, participantID, true, func(rm *Room) ([]*events.Event, error) {
		deadline, ok := rm.engine.StartCountdown(d)
		if !ok {
			return nil, errNoop
		}
		lot, _ := rm.engine.CurrentLot()
		return rm.events(events.EventTypeTimerStarted, events.TimerStartedPayload{
			LotID:      lot.ID,
			Deadline:   deadline,
			DurationMs: deadline.Sub(rm.reg.clock.Now()).Milliseconds(),
		}), nil
	})
}

// StopCountdown cancels the countdown and any pending expiry.
func (r *Registry) StopCountdown(code, participantID string) (Outcome, error) {
	return r.mutate(code, participantID, true, func(rm *Room) ([]*events.Event, error) {
		if !rm.engine.StopCountdown() {
			return nil, errNoop
		}
		lot, _ := rm.engine.CurrentLot()
		return rm.events(events.EventTypeTimerStopped, events.TimerStoppedPayload{
			LotID:     lot.ID,
			StoppedAt: rm.reg.clock.Now(),
		}), nil
	})
}

// PlaceBid submits a bid on behalf of teamID. Any participant may bid for
// any team.
func (r *Registry) PlaceBid(code, participantID, teamID string, amount int64) (Outcome, error) {
	return r.mutate(code, participantID, false, func(rm *Room) ([]*events.Event, error) {
		bid, err := rm.engine.PlaceBid(teamID, amount)
		if err != nil {
			return nil, err
		}
		lot, _ := rm.engine.CurrentLot()
		deadline, _ := rm.engine.Deadline()

		log.Debug().
			Str("room_code", rm.code).
			Int("lot_id", lot.ID).
			Str("team_id", teamID).
			Int64("amount", amount).
			Time("deadline", deadline).
			Msg("bid accepted")

		return rm.events(events.EventTypeNewBid, events.NewBidPayload{
			LotID:     lot.ID,
			TeamID:    bid.TeamID,
			Amount:    bid.Amount,
			Timestamp: bid.Timestamp,
			Deadline:  deadline,
		}), nil
	})
}

// ForceResolve resolves the current lot ahead of the countdown.
func (r *Registry) ForceResolve(code, participantID string) (Outcome, error) {
	return r.mutate(code, participantID, true, func(rm *Room) ([]*events.Event, error) {
		res, ok := rm.engine.ForceResolve()
		if !ok {
			return nil, errNoop
		}
		return rm.resolved(res, true), nil
	})
}

// ForceUnsold passes the current lot as unsold regardless of bids.
func (r *Registry) ForceUnsold(code, participantID string) (Outcome, error) {
	return r.mutate(code, participantID, true, func(rm *Room) ([]*events.Event, error) {
		res, ok := rm.engine.ForceUnsold()
		if !ok {
			return nil, errNoop
		}
		return rm.resolved(res, true), nil
	})
}

// Sync re-sends the current snapshot to one participant.
func (r *Registry) Sync(code, participantID string) (events.SnapshotPayload, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return events.SnapshotPayload{}, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.byID[participantID]; !ok {
		return events.SnapshotPayload{}, ErrNotParticipant
	}
	snap := rm.snapshot()
	if e := rm.event(events.EventTypeStateUpdate, snap); e != nil {
		r.broadcaster.SendTo(rm.code, participantID, e)
	}
	return snap, nil
}

// Resync re-broadcasts the current snapshot to the whole room without
// bumping its version. The gateway uses it after dropping a queued message.
func (r *Registry) Resync(code string) error {
	rm, err := r.lookup(code)
	if err != nil {
		return err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if e := rm.event(events.EventTypeStateUpdate, rm.snapshot()); e != nil {
		r.broadcaster.Broadcast(rm.code, e)
	}
	return nil
}

// Leave marks a participant disconnected. When the host leaves the room
// becomes unavailable for good.
func (r *Registry) Leave(code, participantID string) error {
	rm, err := r.lookup(code)
	if err != nil {
		return err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	p, ok := rm.byID[participantID]
	if !ok {
		return ErrNotParticipant
	}
	if !p.Connected {
		return nil
	}
	p.Connected = false

	if rm.unavailable {
		rm.lastActive = r.clock.Now()
		return nil
	}
	if participantID != rm.hostID {
		log.Info().Str("room_code", rm.code).Str("participant_id", participantID).Msg("participant left room")
		rm.commit()
		return nil
	}

	rm.unavailable = true
	rm.engine.StopCountdown()
	rm.cancelTimer()
	log.Warn().Str("room_code", rm.code).Str("host_id", rm.hostID).Msg("host disconnected, room unavailable")
	rm.commit(rm.events(events.EventTypeRoomUnavailable, events.RoomUnavailablePayload{
		Reason: "host disconnected",
		At:     r.clock.Now(),
	})...)
	return nil
}

// errNoop marks an intent that was valid but changed nothing.
var errNoop = errors.New("no-op")

func (r *Registry) mutate(code, participantID string, hostOnly bool, fn func(rm *Room) ([]*events.Event, error)) (Outcome, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return Outcome{}, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if err := rm.authorize(participantID, hostOnly); err != nil {
		return Outcome{}, err
	}
	evts, err := fn(rm)
	if err == errNoop {
		return Outcome{Snapshot: rm.snapshot()}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return rm.commit(evts...), nil
}

// resolved builds the one-shot resolution events. Caller holds mu.
func (rm *Room) resolved(res auction.Resolution, forced bool) []*events.Event {
	log.Info().
		Str("room_code", rm.code).
		Int("lot_id", res.Lot.ID).
		Str("outcome", string(res.Outcome)).
		Str("team_id", res.TeamID).
		Int64("amount", res.Amount).
		Bool("forced", forced).
		Msg("lot resolved")

	return rm.events(events.EventTypeLotResolved, events.LotResolvedPayload{
		Key:        events.ResolutionKey(rm.code, rm.session, res.Lot.ID),
		Lot:        res.Lot,
		Outcome:    res.Outcome,
		TeamID:     res.TeamID,
		Amount:     res.Amount,
		Forced:     forced,
		ResolvedAt: rm.reg.clock.Now(),
	})
}

// commit bumps the snapshot version, enqueues evts followed by a
// state_update to the whole room, forwards domain events to the journal and
// re-arms the countdown. Caller holds mu.
func (rm *Room) commit(evts ...*events.Event) Outcome {
	rm.version++
	rm.lastActive = rm.reg.clock.Now()
	snap := rm.snapshot()

	out := Outcome{Snapshot: snap}
	out.Events = append(out.Events, evts...)
	if e := rm.event(events.EventTypeStateUpdate, snap); e != nil {
		out.Events = append(out.Events, e)
	}

	for _, e := range out.Events {
		rm.reg.broadcaster.Broadcast(rm.code, e)
		if e.Type.IsDomain() {
			rm.reg.journal.Record(e)
		}
	}

	rm.rearm()

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		if err := rm.engine.CheckInvariants(); err != nil {
			log.Error().Err(err).Str("room_code", rm.code).Uint64("version", rm.version).Msg("auction invariant violated")
		}
	}
	return out
}

// snapshot builds the canonical state payload. Caller holds mu.
func (rm *Room) snapshot() events.SnapshotPayload {
	now := rm.reg.clock.Now()
	session := rm.engine.Snapshot()

	roster := make([]events.RosterEntry, 0, len(rm.participants))
	for _, p := range rm.participants {
		roster = append(roster, events.RosterEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			TeamID:        p.TeamID,
			Host:          p.ID == rm.hostID,
			Connected:     p.Connected,
		})
	}

	s := events.SnapshotPayload{
		Version:     rm.version,
		Round:       rm.session,
		ServerTime:  now,
		Deadline:    session.Deadline,
		HostID:      rm.hostID,
		Unavailable: rm.unavailable,
		Roster:      roster,
		Session:     session,
	}
	if session.Deadline != nil {
		if remaining := session.Deadline.Sub(now); remaining > 0 {
			s.RemainingMs = remaining.Milliseconds()
		}
	}
	return s
}

func (rm *Room) events(t events.EventType, payload interface{}) []*events.Event {
	if e := rm.event(t, payload); e != nil {
		return []*events.Event{e}
	}
	return nil
}

func (rm *Room) event(t events.EventType, payload interface{}) *events.Event {
	e, err := events.New(rm.code, t, rm.reg.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", rm.code).Str("event_type", string(t)).Msg("failed to build event")
		return nil
	}
	return e
}
