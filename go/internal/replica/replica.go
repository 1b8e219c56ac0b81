// Package replica is the client side of the synchronization protocol: it
// keeps a read model of one room that converges on the server's snapshots.
package replica

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/auction"
	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/models"
)

// Handlers are optional callbacks invoked outside the replica lock.
type Handlers struct {
	// OnResolved fires once per resolution key.
	OnResolved func(events.LotResolvedPayload)
	OnRejected func(events.RejectionPayload)
	OnState    func(View)
}

// Replica reconciles server events into a local view. Snapshots are
// authoritative; new_bid and timer events are provisional until the next
// snapshot arrives.
type Replica struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	handlers Handlers

	roomCode      string
	participantID string
	resumeToken   string

	state    *events.SnapshotPayload
	offset   time.Duration
	deadline *time.Time

	provisional *models.Bid
	resolved    map[string]struct{}
}

// New creates an empty replica. A nil clock uses the real clock.
func New(clock clockwork.Clock, handlers Handlers) *Replica {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Replica{
		clock:    clock,
		handlers: handlers,
		resolved: make(map[string]struct{}),
	}
}

// Apply folds one server event into the replica.
func (r *Replica) Apply(e *events.Event) error {
	switch e.Type {
	case events.EventTypeStateUpdate:
		var snap events.SnapshotPayload
		if err := e.Decode(&snap); err != nil {
			return err
		}
		applied, missed := r.applySnapshot(e.RoomCode, &snap)
		if r.handlers.OnResolved != nil {
			for _, p := range missed {
				r.handlers.OnResolved(p)
			}
		}
		if applied && r.handlers.OnState != nil {
			r.handlers.OnState(r.View())
		}

	case events.EventTypeNewBid:
		var p events.NewBidPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.applyBid(p)

	case events.EventTypeTimerStarted:
		var p events.TimerStartedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.mu.Lock()
		deadline := p.Deadline
		r.deadline = &deadline
		r.mu.Unlock()

	case events.EventTypeTimerStopped:
		r.mu.Lock()
		r.deadline = nil
		r.mu.Unlock()

	case events.EventTypeLotResolved:
		var p events.LotResolvedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if r.markResolved(p.Key) && r.handlers.OnResolved != nil {
			r.handlers.OnResolved(p)
		}

	case events.EventTypeRoomCreated:
		var p events.RoomCreatedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.setIdentity(p.RoomCode, p.ParticipantID, p.ResumeToken)

	case events.EventTypeRoomJoined:
		var p events.RoomJoinedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.setIdentity(p.RoomCode, p.ParticipantID, p.ResumeToken)

	case events.EventTypeRejection:
		var p events.RejectionPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		log.Debug().Str("code", p.Code).Str("intent", string(p.Intent)).Msg("intent rejected by server")
		if r.handlers.OnRejected != nil {
			r.handlers.OnRejected(p)
		}
	}
	return nil
}

// applySnapshot replaces the view unless the snapshot is older than the one
// held. An equal version is applied again, which changes nothing. Lots that
// the snapshot shows resolved without a lot_resolved having been seen are
// returned so the one-shot callback still fires once per key.
func (r *Replica) applySnapshot(roomCode string, snap *events.SnapshotPayload) (bool, []events.LotResolvedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != nil && snap.Version < r.state.Version {
		log.Debug().
			Uint64("version", snap.Version).
			Uint64("held", r.state.Version).
			Msg("stale snapshot dropped")
		return false, nil
	}

	var missed []events.LotResolvedPayload
	if prev := r.state; prev != nil && snap.Version > prev.Version {
		if snap.Version > prev.Version+1 {
			log.Debug().
				Uint64("version", snap.Version).
				Uint64("held", prev.Version).
				Msg("snapshot version gap")
		}
		if roomCode == "" {
			roomCode = r.roomCode
		}
		missed = r.missedResolutionsLocked(roomCode, prev, snap)
	}

	r.state = snap
	r.offset = snap.ServerTime.Sub(r.clock.Now())
	r.deadline = snap.Deadline
	r.provisional = nil
	return true, missed
}

// missedResolutionsLocked marks and returns resolutions that appear in next
// but not in prev and whose key has not fired yet.
func (r *Replica) missedResolutionsLocked(roomCode string, prev, next *events.SnapshotPayload) []events.LotResolvedPayload {
	known := make(map[int]struct{})
	if prev.Round == next.Round {
		for _, s := range prev.Session.Sold {
			known[s.Lot.ID] = struct{}{}
		}
		for _, l := range prev.Session.Unsold {
			known[l.ID] = struct{}{}
		}
	}

	var missed []events.LotResolvedPayload
	add := func(p events.LotResolvedPayload) {
		if _, ok := known[p.Lot.ID]; ok {
			return
		}
		p.Key = events.ResolutionKey(roomCode, next.Round, p.Lot.ID)
		if _, ok := r.resolved[p.Key]; ok {
			return
		}
		r.resolved[p.Key] = struct{}{}
		p.ResolvedAt = next.ServerTime
		missed = append(missed, p)
	}
	for _, s := range next.Session.Sold {
		add(events.LotResolvedPayload{Lot: s.Lot, Outcome: models.LotOutcomeSold, TeamID: s.TeamID, Amount: s.Amount})
	}
	for _, l := range next.Session.Unsold {
		add(events.LotResolvedPayload{Lot: l, Outcome: models.LotOutcomeUnsold})
	}
	return missed
}

func (r *Replica) applyBid(p events.NewBidPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil || r.state.Session.CurrentLot == nil || r.state.Session.CurrentLot.ID != p.LotID {
		return
	}
	if p.Amount <= r.currentBidLocked() {
		return
	}
	r.provisional = &models.Bid{TeamID: p.TeamID, Amount: p.Amount, Timestamp: p.Timestamp}
	deadline := p.Deadline
	r.deadline = &deadline
}

func (r *Replica) markResolved(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resolved[key]; ok {
		return false
	}
	r.resolved[key] = struct{}{}
	r.provisional = nil
	return true
}

func (r *Replica) setIdentity(roomCode, participantID, resumeToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomCode = roomCode
	r.participantID = participantID
	r.resumeToken = resumeToken
}

func (r *Replica) currentBidLocked() int64 {
	if r.provisional != nil {
		return r.provisional.Amount
	}
	if r.state == nil {
		return 0
	}
	return r.state.Session.CurrentBid
}

// Identity returns the room and participant this replica belongs to.
func (r *Replica) Identity() (roomCode, participantID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomCode, r.participantID
}

// ResumeToken returns the secret that re-attaches this participant through
// join_room after a reconnect.
func (r *Replica) ResumeToken() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resumeToken
}

// Version returns the version of the snapshot held, or 0.
func (r *Replica) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == nil {
		return 0
	}
	return r.state.Version
}

// Offset is the estimated server clock minus the local clock.
func (r *Replica) Offset() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offset
}

// Remaining is the time left on the current lot, computed from the absolute
// deadline and the corrected local clock.
func (r *Replica) Remaining() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.remainingLocked()
}

func (r *Replica) remainingLocked() time.Duration {
	if r.deadline == nil {
		return 0
	}
	remaining := r.deadline.Sub(r.clock.Now().Add(r.offset))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// View is the read model a UI renders.
type View struct {
	Version       uint64
	RoomCode      string
	ParticipantID string
	HostID        string
	IsHost        bool
	Unavailable   bool
	Status        models.AuctionStatus
	CurrentSet    string
	CurrentLot    *models.Lot
	CurrentBid    int64
	CurrentBidder string
	// Provisional is true while CurrentBid comes from a new_bid event the
	// next snapshot has not confirmed yet.
	Provisional bool
	MinNextBid  int64
	Deadline    *time.Time
	Remaining   time.Duration
	BidHistory  []models.Bid
	Teams       []models.Team
	Sold        []models.SoldLot
	Unsold      []models.Lot
	Roster      []events.RosterEntry
}

// View derives the current read model. The view owns its slices and
// pointers; changing it does not affect the replica.
func (r *Replica) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := View{
		RoomCode:      r.roomCode,
		ParticipantID: r.participantID,
		Remaining:     r.remainingLocked(),
	}
	if r.deadline != nil {
		d := *r.deadline
		v.Deadline = &d
	}
	if r.state == nil {
		return v
	}

	s := r.state.Session
	v.Version = r.state.Version
	v.HostID = r.state.HostID
	v.IsHost = r.participantID != "" && r.participantID == r.state.HostID
	v.Unavailable = r.state.Unavailable
	v.Status = s.Status
	v.CurrentSet = s.CurrentSet
	v.CurrentBid = s.CurrentBid
	v.MinNextBid = s.MinNextBid
	v.BidHistory = append([]models.Bid{}, s.BidHistory...)
	v.Sold = append([]models.SoldLot{}, s.Sold...)
	v.Unsold = append([]models.Lot{}, s.Unsold...)
	v.Roster = append([]events.RosterEntry{}, r.state.Roster...)
	v.Teams = make([]models.Team, 0, len(s.Teams))
	for i := range s.Teams {
		v.Teams = append(v.Teams, s.Teams[i].Clone())
	}
	if s.CurrentLot != nil {
		lot := *s.CurrentLot
		v.CurrentLot = &lot
	}
	if s.CurrentBidder != nil {
		v.CurrentBidder = *s.CurrentBidder
	}

	if r.provisional != nil {
		v.Provisional = true
		v.CurrentBid = r.provisional.Amount
		v.CurrentBidder = r.provisional.TeamID
		v.MinNextBid = auction.NextBidAmount(r.provisional.Amount)
		v.BidHistory = append([]models.Bid{*r.provisional}, s.BidHistory...)
	}
	return v
}
