package room

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/auction"
	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/models"
)

// Broadcaster delivers events to the connections of a room. Implementations
// must not block: they are called while the room lock is held.
type Broadcaster interface {
	Broadcast(roomCode string, event *events.Event)
	SendTo(roomCode, participantID string, event *events.Event)
}

// Journal receives domain events for asynchronous publication. Record must
// not block.
type Journal interface {
	Record(event *events.Event)
}

// RegistryOptions configures a Registry. Zero values fall back to a real
// clock, policy-based selectors and no-op sinks.
type RegistryOptions struct {
	Clock          clockwork.Clock
	NewSelector    func(models.DrawPolicy) auction.LotSelector
	Broadcaster    Broadcaster
	Journal        Journal
	DefaultCatalog *catalog.Catalog
	GenerateCode   CodeGenerator
}

// Registry maps room codes to isolated rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	clock          clockwork.Clock
	newSelector    func(models.DrawPolicy) auction.LotSelector
	broadcaster    Broadcaster
	journal        Journal
	defaultCatalog *catalog.Catalog
	generateCode   CodeGenerator
}

// CreateResult is returned by CreateRoom. ResumeToken is private to the
// creator.
type CreateResult struct {
	Code          string
	ParticipantID string
	ResumeToken   string
	Snapshot      events.SnapshotPayload
}

// JoinResult is returned by JoinRoom. ResumeToken is private to the joiner.
type JoinResult struct {
	Code          string
	ParticipantID string
	ResumeToken   string
	DisplayName   string
	Resumed       bool
	Snapshot      events.SnapshotPayload
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		rooms:          make(map[string]*Room),
		clock:          opts.Clock,
		newSelector:    opts.NewSelector,
		broadcaster:    opts.Broadcaster,
		journal:        opts.Journal,
		defaultCatalog: opts.DefaultCatalog,
		generateCode:   opts.GenerateCode,
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.newSelector == nil {
		r.newSelector = auction.SelectorFor
	}
	if r.broadcaster == nil {
		r.broadcaster = nopBroadcaster{}
	}
	if r.journal == nil {
		r.journal = nopJournal{}
	}
	if r.generateCode == nil {
		r.generateCode = RandomCode
	}
	return r
}

// CreateRoom allocates a room with an IDLE session and makes the creator its
// host.
func (r *Registry) CreateRoom(cfg models.AuctionConfig, hostName string) (CreateResult, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return CreateResult{}, ErrNameRequired
	}
	engine, err := auction.NewEngine(cfg, r.clock, r.newSelector(cfg.DrawPolicy))
	if err != nil {
		return CreateResult{}, err
	}

	r.mu.Lock()
	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := r.generateCode()
		if err != nil {
			r.mu.Unlock()
			return CreateResult{}, err
		}
		candidate = NormalizeCode(candidate)
		if _, taken := r.rooms[candidate]; !taken {
			code = candidate
			break
		}
		log.Debug().Str("room_code", candidate).Int("attempt", attempt+1).Msg("room code collision")
	}
	if code == "" {
		r.mu.Unlock()
		return CreateResult{}, ErrCodeSpaceFull
	}

	host := &Participant{
		ID:          uuid.New().String(),
		DisplayName: hostName,
		Connected:   true,
		JoinedAt:    r.clock.Now(),
		resumeToken: newResumeToken(),
	}
	rm := newRoom(code, engine, host, r)
	r.rooms[code] = rm
	r.mu.Unlock()

	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := rm.commit()

	log.Info().
		Str("room_code", code).
		Str("host_id", host.ID).
		Int("total_teams", cfg.TotalTeams).
		Dur("timer", cfg.TimerDuration).
		Msg("room created")

	return CreateResult{Code: code, ParticipantID: host.ID, ResumeToken: host.resumeToken, Snapshot: out.Snapshot}, nil
}

// JoinRoom adds a participant to a room. A resumeToken issued by an earlier
// create or join of the same room re-attaches that participant instead.
// Participant ids are public and never resume anyone.
func (r *Registry) JoinRoom(code, displayName, resumeToken string) (JoinResult, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return JoinResult{}, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.unavailable {
		return JoinResult{}, ErrRoomUnavailable
	}

	res := JoinResult{Code: rm.code}
	if p, ok := rm.byToken[resumeToken]; ok && resumeToken != "" {
		p.Connected = true
		if name := strings.TrimSpace(displayName); name != "" {
			p.DisplayName = name
		}
		res.ParticipantID = p.ID
		res.ResumeToken = p.resumeToken
		res.DisplayName = p.DisplayName
		res.Resumed = true
	} else {
		name := strings.TrimSpace(displayName)
		if name == "" {
			return JoinResult{}, ErrNameRequired
		}
		p := &Participant{
			ID:          uuid.New().String(),
			DisplayName: name,
			Connected:   true,
			JoinedAt:    r.clock.Now(),
			resumeToken: newResumeToken(),
		}
		rm.addParticipant(p)
		res.ParticipantID = p.ID
		res.ResumeToken = p.resumeToken
		res.DisplayName = p.DisplayName
	}

	out := rm.commit()
	res.Snapshot = out.Snapshot

	log.Info().
		Str("room_code", rm.code).
		Str("participant_id", res.ParticipantID).
		Bool("resumed", res.Resumed).
		Msg("participant joined room")

	return res, nil
}

// Room returns the room for code.
func (r *Registry) Room(code string) (*Room, error) {
	return r.lookup(code)
}

// Snapshot returns the current canonical state of a room.
func (r *Registry) Snapshot(code string) (events.SnapshotPayload, error) {
	rm, err := r.lookup(code)
	if err != nil {
		return events.SnapshotPayload{}, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.snapshot(), nil
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Stats summarizes the registry for diagnostics.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	participants := 0
	connected := 0
	unavailable := 0
	statuses := make(map[string]int)
	for _, rm := range rooms {
		rm.mu.Lock()
		participants += len(rm.participants)
		connected += rm.connectedCount()
		if rm.unavailable {
			unavailable++
		}
		statuses[string(rm.engine.Status())]++
		rm.mu.Unlock()
	}

	return map[string]interface{}{
		"rooms":             len(rooms),
		"unavailable_rooms": unavailable,
		"participants":      participants,
		"connected":         connected,
		"rooms_by_status":   statuses,
	}
}

// Close cancels every room's countdown. Rooms stay readable.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rm := range r.rooms {
		rm.mu.Lock()
		rm.cancelTimer()
		rm.mu.Unlock()
	}
}

func (r *Registry) lookup(code string) (*Room, error) {
	code = NormalizeCode(code)
	r.mu.RLock()
	rm, ok := r.rooms[code]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", code, ErrRoomNotFound)
	}
	return rm, nil
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, *events.Event)      {}
func (nopBroadcaster) SendTo(string, string, *events.Event) {}

type nopJournal struct{}

func (nopJournal) Record(*events.Event) {}
