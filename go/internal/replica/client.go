package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/models"
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("client closed")

const writeTimeout = 10 * time.Second

// Client follows one room over a WebSocket and feeds every event into a
// Replica.
type Client struct {
	conn    *websocket.Conn
	replica *Replica

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to a gateway WebSocket endpoint, e.g. ws://host:8080/ws, and
// starts the read loop.
func Dial(ctx context.Context, url string, replica *Replica) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		replica: replica,
		done:    make(chan struct{}),
	}
	go c.readLoop()

	log.Debug().Str("url", url).Msg("connected to auction gateway")
	return c, nil
}

// Replica returns the replica fed by this client.
func (c *Client) Replica() *Replica {
	return c.replica
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = err
			}
			return
		}

		var event events.Event
		if err := json.Unmarshal(message, &event); err != nil {
			log.Warn().Err(err).Msg("failed to parse event")
			continue
		}
		if err := c.replica.Apply(&event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to apply event")
		}
	}
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the read loop, if any. Only valid after
// Done is closed.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Send writes an intent and returns its request id.
func (c *Client) Send(t events.IntentType, data interface{}) (string, error) {
	select {
	case <-c.done:
		return "", ErrClosed
	default:
	}

	requestID := uuid.New().String()
	intent, err := events.NewIntent(t, requestID, data)
	if err != nil {
		return "", err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(intent); err != nil {
		return "", fmt.Errorf("failed to send %s: %w", t, err)
	}
	return requestID, nil
}

func (c *Client) CreateRoom(displayName string, settings events.AuctionSettings) (string, error) {
	return c.Send(events.IntentCreateRoom, events.CreateRoomData{DisplayName: displayName, Settings: settings})
}

// JoinRoom joins by code. A non-empty resumeToken, taken from an earlier
// replica's ResumeToken, re-attaches that participant.
func (c *Client) JoinRoom(code, displayName, resumeToken string) (string, error) {
	return c.Send(events.IntentJoinRoom, events.JoinRoomData{RoomCode: code, DisplayName: displayName, ResumeToken: resumeToken})
}

func (c *Client) ClaimTeam(teamID string) (string, error) {
	return c.Send(events.IntentClaimTeam, events.ClaimTeamData{TeamID: teamID})
}

// LoadCatalog uploads lots and teams. Empty lots load the server's default
// catalog.
func (c *Client) LoadCatalog(lots []models.Lot, setOrder []string, teams []models.TeamSpec) (string, error) {
	return c.Send(events.IntentLoadCatalog, events.LoadCatalogData{Lots: lots, SetOrder: setOrder, Teams: teams})
}

func (c *Client) DrawLot() (string, error) {
	return c.Send(events.IntentDrawLot, nil)
}

func (c *Client) StartCountdown(d time.Duration) (string, error) {
	return c.Send(events.IntentStartCountdown, events.StartCountdownData{DurationSeconds: int(d / time.Second)})
}

func (c *Client) StopCountdown() (string, error) {
	return c.Send(events.IntentStopCountdown, nil)
}

func (c *Client) PlaceBid(teamID string, amount int64) (string, error) {
	return c.Send(events.IntentPlaceBid, events.PlaceBidData{TeamID: teamID, Amount: amount})
}

// BidNext bids the ladder increment above the current view.
func (c *Client) BidNext(teamID string) (string, error) {
	return c.PlaceBid(teamID, c.replica.View().MinNextBid)
}

func (c *Client) ForceResolve() (string, error) {
	return c.Send(events.IntentForceResolve, nil)
}

func (c *Client) ForceUnsold() (string, error) {
	return c.Send(events.IntentForceUnsold, nil)
}

func (c *Client) Sync() (string, error) {
	return c.Send(events.IntentSync, nil)
}

// Close sends a close frame and waits for the read loop to finish.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(time.Second):
		}
		err = c.conn.Close()
		<-c.done
	})
	return err
}
