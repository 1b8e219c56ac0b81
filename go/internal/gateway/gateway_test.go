package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/models"
	"github.com/mcdev12/bidroom/go/internal/room"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	server *httptest.Server
	svc    *Service
	clock  *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)

	cfg := DefaultConfig()
	cfg.JanitorInterval = 0
	svc := NewService(cfg, room.RegistryOptions{Clock: clock})

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &harness{server: server, svc: svc, clock: clock}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial(t *testing.T) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(t events.IntentType, requestID string, data interface{}) {
	c.t.Helper()
	intent, err := events.NewIntent(t, requestID, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(intent))
}

// until reads events up to and including the first one of type want.
func (c *client) until(want events.EventType) []*events.Event {
	c.t.Helper()
	var seen []*events.Event
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var e events.Event
		require.NoError(c.t, c.conn.ReadJSON(&e), "waiting for %s, saw %v", want, typesOf(seen))
		seen = append(seen, &e)
		if e.Type == want {
			return seen
		}
	}
}

func (c *client) snapshot() events.SnapshotPayload {
	c.t.Helper()
	seen := c.until(events.EventTypeStateUpdate)
	var snap events.SnapshotPayload
	require.NoError(c.t, seen[len(seen)-1].Decode(&snap))
	return snap
}

func typesOf(evts []*events.Event) []events.EventType {
	out := make([]events.EventType, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

func last(evts []*events.Event) *events.Event {
	return evts[len(evts)-1]
}

func testLots() []models.Lot {
	return []models.Lot{
		{ID: 1, Name: "Opener", Nationality: "India", Role: models.RoleBatter, BasePrice: 2_000_000, Set: "Marquee"},
		{ID: 2, Name: "Quick", Nationality: "Australia", Role: models.RoleBowler, BasePrice: 1_000_000, Set: "Marquee"},
	}
}

// hostRoom creates a room with a loaded catalog and returns the host client
// and the room code.
func (h *harness) hostRoom(t *testing.T) (*client, string) {
	t.Helper()
	host := h.dial(t)
	host.send(events.IntentCreateRoom, "create", events.CreateRoomData{
		DisplayName: "Host",
		Settings: events.AuctionSettings{
			TotalTeams: 2,
			Budget:     10_000_000,
			DrawPolicy: models.DrawPolicyOrdered,
		},
	})

	var created events.RoomCreatedPayload
	require.NoError(t, last(host.until(events.EventTypeRoomCreated)).Decode(&created))
	require.Len(t, created.RoomCode, 6)
	host.snapshot()

	host.send(events.IntentLoadCatalog, "load", events.LoadCatalogData{
		Lots:  testLots(),
		Teams: []models.TeamSpec{{ID: "A", Name: "Alpha"}, {ID: "B", Name: "Beta"}},
	})
	snap := host.snapshot()
	require.Len(t, snap.Session.Teams, 2)
	return host, created.RoomCode
}

func TestGateway_BidAndExpiry(t *testing.T) {
	h := newHarness(t)
	host, code := h.hostRoom(t)

	host.send(events.IntentDrawLot, "draw", nil)
	drawn := host.snapshot()
	require.NotNil(t, drawn.Session.CurrentLot)
	assert.Equal(t, 1, drawn.Session.CurrentLot.ID)

	bidder := h.dial(t)
	bidder.send(events.IntentJoinRoom, "join", events.JoinRoomData{RoomCode: strings.ToLower(code), DisplayName: "Bidder"})
	var joined events.RoomJoinedPayload
	require.NoError(t, last(bidder.until(events.EventTypeRoomJoined)).Decode(&joined))
	assert.Equal(t, code, joined.RoomCode)

	late := bidder.snapshot()
	require.NotNil(t, late.Session.CurrentLot)
	require.NotNil(t, late.Deadline)
	assert.True(t, epoch.Add(30*time.Second).Equal(*late.Deadline))
	assert.Equal(t, int64(30_000), late.RemainingMs)

	bidder.send(events.IntentPlaceBid, "bid", events.PlaceBidData{TeamID: "A", Amount: 2_500_000})
	seen := bidder.until(events.EventTypeStateUpdate)
	types := typesOf(seen)
	require.Contains(t, types, events.EventTypeNewBid)
	assert.Equal(t, events.EventTypeNewBid, types[len(types)-2], "new_bid precedes its state_update")

	var afterBid events.SnapshotPayload
	require.NoError(t, last(seen).Decode(&afterBid))
	assert.Equal(t, int64(2_500_000), afterBid.Session.CurrentBid)
	assert.Greater(t, afterBid.Version, late.Version)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(30 * time.Second)

	for _, c := range []*client{host, bidder} {
		seen := c.until(events.EventTypeLotResolved)
		var res events.LotResolvedPayload
		require.NoError(t, last(seen).Decode(&res))
		assert.Equal(t, models.LotOutcomeSold, res.Outcome)
		assert.Equal(t, "A", res.TeamID)
		assert.Equal(t, int64(2_500_000), res.Amount)

		snap := c.snapshot()
		assert.Nil(t, snap.Session.CurrentLot)
		require.Len(t, snap.Session.Sold, 1)
		assert.Equal(t, int64(7_500_000), snap.Session.Teams[0].Budget)
	}
}

func TestGateway_Rejections(t *testing.T) {
	h := newHarness(t)
	host, code := h.hostRoom(t)

	guest := h.dial(t)
	guest.send(events.IntentDrawLot, "early", nil)
	var rej events.RejectionPayload
	require.NoError(t, last(guest.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeNotInRoom, rej.Code)
	assert.Equal(t, "early", rej.RequestID)

	guest.send(events.IntentJoinRoom, "join", events.JoinRoomData{RoomCode: code, DisplayName: "Guest"})
	guest.snapshot()

	guest.send(events.IntentDrawLot, "draw", nil)
	require.NoError(t, last(guest.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeNotHost, rej.Code)
	assert.Equal(t, events.IntentDrawLot, rej.Intent)

	guest.send(events.IntentPlaceBid, "bid", events.PlaceBidData{TeamID: "A", Amount: 3_000_000})
	require.NoError(t, last(guest.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeBiddingClosed, rej.Code)

	guest.send(events.IntentPlaceBid, "zero", events.PlaceBidData{TeamID: "A"})
	require.NoError(t, last(guest.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeBadRequest, rej.Code)

	guest.send(events.IntentStartCountdown, "huge", events.StartCountdownData{DurationSeconds: 10_000_000_000})
	require.NoError(t, last(guest.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeBadRequest, rej.Code)
	assert.Equal(t, "huge", rej.RequestID)

	require.NoError(t, guest.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, last(guest.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeBadRequest, rej.Code)

	other := h.dial(t)
	other.send(events.IntentJoinRoom, "missing", events.JoinRoomData{RoomCode: "ZZZZZZ", DisplayName: "Lost"})
	require.NoError(t, last(other.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeRoomNotFound, rej.Code)

	other.send(events.IntentCreateRoom, "slow", events.CreateRoomData{
		DisplayName: "Lost",
		Settings:    events.AuctionSettings{TimerSeconds: 10_000_000_000},
	})
	require.NoError(t, last(other.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeBadRequest, rej.Code)

	// The host is unaffected by the guest's rejections.
	host.send(events.IntentSync, "sync", nil)
	snap := host.snapshot()
	assert.Len(t, snap.Roster, 2)
}

func TestGateway_ResumeTokenStaysPrivate(t *testing.T) {
	h := newHarness(t)
	host, code := h.hostRoom(t)

	guest := h.dial(t)
	guest.send(events.IntentJoinRoom, "join", events.JoinRoomData{RoomCode: code, DisplayName: "Guest"})
	var joined events.RoomJoinedPayload
	require.NoError(t, last(guest.until(events.EventTypeRoomJoined)).Decode(&joined))
	require.NotEmpty(t, joined.ResumeToken)
	guestSnap := guest.snapshot()

	update := last(host.until(events.EventTypeStateUpdate))
	assert.NotContains(t, string(update.Data), joined.ResumeToken)

	impostor := h.dial(t)
	impostor.send(events.IntentJoinRoom, "hijack", events.JoinRoomData{
		RoomCode:    code,
		DisplayName: "Mallory",
		ResumeToken: guestSnap.HostID,
	})
	var hijack events.RoomJoinedPayload
	require.NoError(t, last(impostor.until(events.EventTypeRoomJoined)).Decode(&hijack))
	assert.False(t, hijack.Resumed)
	assert.NotEqual(t, guestSnap.HostID, hijack.ParticipantID)
	impostor.snapshot()

	impostor.send(events.IntentDrawLot, "draw", nil)
	var rej events.RejectionPayload
	require.NoError(t, last(impostor.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeNotHost, rej.Code)

	again := h.dial(t)
	again.send(events.IntentJoinRoom, "resume", events.JoinRoomData{RoomCode: code, ResumeToken: joined.ResumeToken})
	var resumed events.RoomJoinedPayload
	require.NoError(t, last(again.until(events.EventTypeRoomJoined)).Decode(&resumed))
	assert.True(t, resumed.Resumed)
	assert.Equal(t, joined.ParticipantID, resumed.ParticipantID)
}

func TestGateway_HostDisconnectMakesRoomUnavailable(t *testing.T) {
	h := newHarness(t)
	host, code := h.hostRoom(t)

	guest := h.dial(t)
	guest.send(events.IntentJoinRoom, "join", events.JoinRoomData{RoomCode: code, DisplayName: "Guest"})
	guest.snapshot()

	require.NoError(t, host.conn.Close())

	guest.until(events.EventTypeRoomUnavailable)
	snap := guest.snapshot()
	assert.True(t, snap.Unavailable)

	guest.send(events.IntentPlaceBid, "bid", events.PlaceBidData{TeamID: "A", Amount: 3_000_000})
	var rej events.RejectionPayload
	require.NoError(t, last(guest.until(events.EventTypeRejection)).Decode(&rej))
	assert.Equal(t, CodeRoomUnavailable, rej.Code)
}

func TestGateway_StateEndpoint(t *testing.T) {
	h := newHarness(t)
	_, code := h.hostRoom(t)

	resp, err := http.Get(h.server.URL + "/api/rooms/" + code + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap events.SnapshotPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, models.AuctionStatusIdle, snap.Session.Status)
	assert.Len(t, snap.Roster, 1)

	missing, err := http.Get(h.server.URL + "/api/rooms/NOPE00/state")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGateway_Stats(t *testing.T) {
	h := newHarness(t)
	h.hostRoom(t)

	stats := h.svc.GetStats()
	assert.Equal(t, 1, stats["total_connections"])
	assert.Equal(t, 1, stats["active_rooms"])
	assert.Equal(t, 1, stats["rooms"].(map[string]interface{})["rooms"])
}
