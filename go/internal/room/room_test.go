package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bidroom/go/internal/auction"
	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/models"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu       sync.Mutex
	room     []*events.Event
	direct   map[string][]*events.Event
	recorded []*events.Event
}

func newRecorder() *recorder {
	return &recorder{direct: make(map[string][]*events.Event)}
}

func (r *recorder) Broadcast(_ string, e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = append(r.room, e)
}

func (r *recorder) SendTo(_ string, participantID string, e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[participantID] = append(r.direct[participantID], e)
}

func (r *recorder) Record(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, e)
}

func (r *recorder) ofType(t events.EventType) []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*events.Event
	for _, e := range r.room {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.room))
	for _, e := range r.room {
		out = append(out, e.Type)
	}
	return out
}

func testConfig() models.AuctionConfig {
	cfg := models.DefaultAuctionConfig()
	cfg.TotalTeams = 2
	cfg.Budget = 10_000_000
	cfg.DrawPolicy = models.DrawPolicyOrdered
	return cfg
}

type fixture struct {
	reg    *Registry
	clock  *clockwork.FakeClock
	rec    *recorder
	code      string
	hostID    string
	hostToken string
}

func newFixture(t *testing.T, lots ...models.Lot) *fixture {
	t.Helper()
	if len(lots) == 0 {
		lots = []models.Lot{{ID: 1, Name: "Lot 1", Nationality: "India", Role: models.RoleBatter, BasePrice: 2_000_000, Set: "Marquee"}}
	}
	clock := clockwork.NewFakeClockAt(epoch)
	rec := newRecorder()
	reg := NewRegistry(RegistryOptions{Clock: clock, Broadcaster: rec, Journal: rec})

	created, err := reg.CreateRoom(testConfig(), "Host")
	require.NoError(t, err)

	cat, err := catalog.New(lots)
	require.NoError(t, err)
	_, err = reg.LoadCatalog(created.Code, created.ParticipantID, cat, []models.TeamSpec{{ID: "A"}, {ID: "B"}})
	require.NoError(t, err)

	return &fixture{reg: reg, clock: clock, rec: rec, code: created.Code, hostID: created.ParticipantID, hostToken: created.ResumeToken}
}

func (f *fixture) waitForTimer(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
}

func TestCreateRoom_CodeFormat(t *testing.T) {
	reg := NewRegistry(RegistryOptions{Clock: clockwork.NewFakeClockAt(epoch)})

	res, err := reg.CreateRoom(testConfig(), "Host")
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, res.Code)
	assert.Equal(t, uint64(1), res.Snapshot.Version)
	assert.Equal(t, res.ParticipantID, res.Snapshot.HostID)
	assert.Equal(t, models.AuctionStatusIdle, res.Snapshot.Session.Status)

	_, err = reg.CreateRoom(testConfig(), "  ")
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestCreateRoom_CollisionRetry(t *testing.T) {
	codes := []string{"abc123", "ABC123", "ZZZ999"}
	i := 0
	reg := NewRegistry(RegistryOptions{
		Clock: clockwork.NewFakeClockAt(epoch),
		GenerateCode: func() (string, error) {
			c := codes[i%len(codes)]
			i++
			return c, nil
		},
	})

	first, err := reg.CreateRoom(testConfig(), "One")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", first.Code)

	second, err := reg.CreateRoom(testConfig(), "Two")
	require.NoError(t, err)
	assert.Equal(t, "ZZZ999", second.Code)

	stuck := NewRegistry(RegistryOptions{GenerateCode: func() (string, error) { return "SAME01", nil }})
	_, err = stuck.CreateRoom(testConfig(), "One")
	require.NoError(t, err)
	_, err = stuck.CreateRoom(testConfig(), "Two")
	assert.ErrorIs(t, err, ErrCodeSpaceFull)
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t)

	joined, err := f.reg.JoinRoom("  "+lower(f.code)+" ", "Guest", "")
	require.NoError(t, err)
	assert.False(t, joined.Resumed)
	assert.Len(t, joined.Snapshot.Roster, 2)

	require.NotEmpty(t, joined.ResumeToken)
	assert.NotEqual(t, joined.ParticipantID, joined.ResumeToken)

	resumed, err := f.reg.JoinRoom(f.code, "", joined.ResumeToken)
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, joined.ParticipantID, resumed.ParticipantID)
	assert.Equal(t, joined.ResumeToken, resumed.ResumeToken)
	assert.Equal(t, "Guest", resumed.DisplayName)
	assert.Len(t, resumed.Snapshot.Roster, 2)

	_, err = f.reg.JoinRoom("NOPE00", "Guest", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoom_BroadcastIDsDoNotResume(t *testing.T) {
	f := newFixture(t)
	guest, err := f.reg.JoinRoom(f.code, "Guest", "")
	require.NoError(t, err)

	// host_id and roster ids are visible to every participant.
	hostID := guest.Snapshot.HostID
	require.Equal(t, f.hostID, hostID)

	impostor, err := f.reg.JoinRoom(f.code, "Mallory", hostID)
	require.NoError(t, err)
	assert.False(t, impostor.Resumed)
	assert.NotEqual(t, hostID, impostor.ParticipantID)
	assert.Equal(t, hostID, impostor.Snapshot.HostID)

	_, err = f.reg.DrawNextLot(f.code, impostor.ParticipantID)
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = f.reg.ForceResolve(f.code, impostor.ParticipantID)
	assert.ErrorIs(t, err, ErrNotHost)

	require.NoError(t, f.reg.Leave(f.code, impostor.ParticipantID))
	snap, err := f.reg.Snapshot(f.code)
	require.NoError(t, err)
	assert.False(t, snap.Unavailable)
	assert.Empty(t, f.rec.ofType(events.EventTypeRoomUnavailable))

	host, err := f.reg.JoinRoom(f.code, "", f.hostToken)
	require.NoError(t, err)
	assert.True(t, host.Resumed)
	assert.Equal(t, f.hostID, host.ParticipantID)
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func TestHostOnlyIntents(t *testing.T) {
	f := newFixture(t)
	guest, err := f.reg.JoinRoom(f.code, "Guest", "")
	require.NoError(t, err)

	_, err = f.reg.DrawNextLot(f.code, guest.ParticipantID)
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = f.reg.ForceResolve(f.code, guest.ParticipantID)
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = f.reg.LoadCatalog(f.code, guest.ParticipantID, nil, nil)
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = f.reg.DrawNextLot(f.code, "stranger")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)
	_, err = f.reg.PlaceBid(f.code, guest.ParticipantID, "B", 2_500_000)
	assert.NoError(t, err, "any participant may bid")
}

func TestBidFastPathOrdering(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)

	before := len(f.rec.types())
	out, err := f.reg.PlaceBid(f.code, f.hostID, "A", 2_500_000)
	require.NoError(t, err)

	require.Len(t, out.Events, 2)
	assert.Equal(t, events.EventTypeNewBid, out.Events[0].Type)
	assert.Equal(t, events.EventTypeStateUpdate, out.Events[1].Type)
	assert.Equal(t, []events.EventType{events.EventTypeNewBid, events.EventTypeStateUpdate}, f.rec.types()[before:])

	_, err = f.reg.PlaceBid(f.code, f.hostID, "B", 2_500_000)
	assert.ErrorIs(t, err, auction.ErrBidTooLow)
	assert.Len(t, f.rec.types(), before+2, "rejections are not broadcast")
}

func TestExpiryResolvesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)
	_, err = f.reg.PlaceBid(f.code, f.hostID, "A", 2_500_000)
	require.NoError(t, err)

	f.waitForTimer(t)
	f.clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool {
		return len(f.rec.ofType(events.EventTypeLotResolved)) == 1
	}, time.Second, 5*time.Millisecond)

	snap, err := f.reg.Snapshot(f.code)
	require.NoError(t, err)
	require.Len(t, snap.Session.Sold, 1)
	assert.Nil(t, snap.Session.CurrentLot)
	for _, tm := range snap.Session.Teams {
		if tm.ID == "A" {
			assert.Equal(t, int64(7_500_000), tm.Budget)
			assert.Equal(t, int64(2_500_000), tm.TotalSpent)
		}
	}

	out, err := f.reg.ForceResolve(f.code, f.hostID)
	require.NoError(t, err)
	assert.Empty(t, out.Events)

	f.clock.Advance(time.Minute)
	assert.Never(t, func() bool {
		return len(f.rec.ofType(events.EventTypeLotResolved)) > 1
	}, 50*time.Millisecond, 5*time.Millisecond)

	var payload events.LotResolvedPayload
	require.NoError(t, f.rec.ofType(events.EventTypeLotResolved)[0].Decode(&payload))
	assert.Equal(t, models.LotOutcomeSold, payload.Outcome)
	assert.Equal(t, "A", payload.TeamID)
	assert.False(t, payload.Forced)
}

func TestLateJoinerSeesExtendedDeadline(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)

	f.clock.Advance(27 * time.Second)
	_, err = f.reg.PlaceBid(f.code, f.hostID, "A", 2_500_000)
	require.NoError(t, err)

	joined, err := f.reg.JoinRoom(f.code, "Late", "")
	require.NoError(t, err)
	require.NotNil(t, joined.Snapshot.Deadline)
	assert.Equal(t, f.clock.Now().Add(10*time.Second), *joined.Snapshot.Deadline)
	assert.Equal(t, int64(10_000), joined.Snapshot.RemainingMs)
}

func TestStopCountdownCancelsExpiry(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)
	f.waitForTimer(t)

	out, err := f.reg.StopCountdown(f.code, f.hostID)
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeTimerStopped, out.Events[0].Type)

	f.clock.Advance(time.Minute)
	assert.Never(t, func() bool {
		return len(f.rec.ofType(events.EventTypeLotResolved)) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)

	out, err = f.reg.StartCountdown(f.code, f.hostID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeTimerStarted, out.Events[0].Type)
	f.waitForTimer(t)
	f.clock.Advance(5 * time.Second)

	require.Eventually(t, func() bool {
		return len(f.rec.ofType(events.EventTypeLotResolved)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHostLossMakesRoomUnavailable(t *testing.T) {
	f := newFixture(t)
	guest, err := f.reg.JoinRoom(f.code, "Guest", "")
	require.NoError(t, err)
	_, err = f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)

	require.NoError(t, f.reg.Leave(f.code, f.hostID))
	assert.Len(t, f.rec.ofType(events.EventTypeRoomUnavailable), 1)

	_, err = f.reg.PlaceBid(f.code, guest.ParticipantID, "A", 3_000_000)
	assert.ErrorIs(t, err, ErrRoomUnavailable)
	_, err = f.reg.JoinRoom(f.code, "Another", "")
	assert.ErrorIs(t, err, ErrRoomUnavailable)
	_, err = f.reg.JoinRoom(f.code, "Host", f.hostToken)
	assert.ErrorIs(t, err, ErrRoomUnavailable)

	f.clock.Advance(time.Minute)
	assert.Never(t, func() bool {
		return len(f.rec.ofType(events.EventTypeLotResolved)) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)

	snap, err := f.reg.Snapshot(f.code)
	require.NoError(t, err)
	assert.True(t, snap.Unavailable)
}

func TestConcurrentBidsAreSerialized(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 1; i <= 50; i++ {
		for _, team := range []string{"A", "B"} {
			wg.Add(1)
			go func(team string, amount int64) {
				defer wg.Done()
				_, err := f.reg.PlaceBid(f.code, f.hostID, team, amount)
				if err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
					return
				}
				assert.True(t, errors.Is(err, auction.ErrBidTooLow), "unexpected error: %v", err)
			}(team, 2_000_000+int64(i)*10_000)
		}
	}
	wg.Wait()

	bids := f.rec.ofType(events.EventTypeNewBid)
	assert.Len(t, bids, accepted)
	var last int64
	for _, e := range bids {
		var p events.NewBidPayload
		require.NoError(t, e.Decode(&p))
		assert.Greater(t, p.Amount, last)
		last = p.Amount
	}

	snap, err := f.reg.Snapshot(f.code)
	require.NoError(t, err)
	assert.Equal(t, last, snap.Session.CurrentBid)

	updates := f.rec.ofType(events.EventTypeStateUpdate)
	for i := 1; i < len(updates); i++ {
		var prev, cur events.SnapshotPayload
		require.NoError(t, updates[i-1].Decode(&prev))
		require.NoError(t, updates[i].Decode(&cur))
		assert.Equal(t, prev.Version+1, cur.Version)
	}
}

func TestClaimTeam(t *testing.T) {
	f := newFixture(t)

	_, err := f.reg.ClaimTeam(f.code, f.hostID, "Z")
	assert.ErrorIs(t, err, auction.ErrUnknownTeam)

	out, err := f.reg.ClaimTeam(f.code, f.hostID, "A")
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeTeamClaimed, out.Events[0].Type)
	assert.Equal(t, "A", out.Snapshot.Roster[0].TeamID)
}

func TestDomainEventsJournaled(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)
	_, err = f.reg.ForceUnsold(f.code, f.hostID)
	require.NoError(t, err)
	_, err = f.reg.DrawNextLot(f.code, f.hostID)
	require.NoError(t, err)

	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	var types []events.EventType
	for _, e := range f.rec.recorded {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventTypeCatalogLoaded,
		events.EventTypeLotDrawn,
		events.EventTypeLotResolved,
		events.EventTypeAuctionCompleted,
	}, types)
}

func TestSyncSendsToRequesterOnly(t *testing.T) {
	f := newFixture(t)
	snap, err := f.reg.Sync(f.code, f.hostID)
	require.NoError(t, err)

	f.rec.mu.Lock()
	direct := f.rec.direct[f.hostID]
	f.rec.mu.Unlock()
	require.Len(t, direct, 1)
	assert.Equal(t, events.EventTypeStateUpdate, direct[0].Type)
	assert.Equal(t, snap.Version, uint64(2))

	_, err = f.reg.Sync(f.code, "stranger")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSweepRemovesIdleRooms(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 0, f.reg.Sweep(time.Minute), "host still connected")

	require.NoError(t, f.reg.Leave(f.code, f.hostID))
	assert.Equal(t, 0, f.reg.Sweep(time.Minute))

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, f.reg.Sweep(time.Minute))
	_, err := f.reg.Snapshot(f.code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestResyncRebroadcastsCurrentVersion(t *testing.T) {
	f := newFixture(t)
	before, err := f.reg.Snapshot(f.code)
	require.NoError(t, err)
	updates := len(f.rec.ofType(events.EventTypeStateUpdate))

	require.NoError(t, f.reg.Resync(f.code))

	sent := f.rec.ofType(events.EventTypeStateUpdate)
	require.Len(t, sent, updates+1)
	var snap events.SnapshotPayload
	require.NoError(t, sent[len(sent)-1].Decode(&snap))
	assert.Equal(t, before.Version, snap.Version)
	assert.Equal(t, 1, snap.Round)

	assert.ErrorIs(t, f.reg.Resync("NOPE00"), ErrRoomNotFound)
}
