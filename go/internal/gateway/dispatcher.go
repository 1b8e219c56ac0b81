package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/events"
	"github.com/mcdev12/bidroom/go/internal/models"
	"github.com/mcdev12/bidroom/go/internal/room"
)

// Dispatcher turns client intents into registry calls. Every mutation goes
// through the registry, which validates and broadcasts; the dispatcher only
// answers the requester.
type Dispatcher struct {
	registry *room.Registry
	cm       *ConnectionManager
	defaults models.AuctionConfig
	clock    clockwork.Clock
}

func NewDispatcher(registry *room.Registry, cm *ConnectionManager, defaults models.AuctionConfig, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{registry: registry, cm: cm, defaults: defaults, clock: clock}
}

// HandleIntent decodes and executes one client message.
func (d *Dispatcher) HandleIntent(conn *Connection, message []byte) {
	var intent events.Intent
	if err := json.Unmarshal(message, &intent); err != nil || intent.Type == "" {
		d.reject(conn, &intent, fmt.Errorf("%w: expected {\"type\": ..., \"data\": ...}", errBadRequest))
		return
	}

	if err := d.dispatch(conn, &intent); err != nil {
		d.reject(conn, &intent, err)
	}
}

func (d *Dispatcher) dispatch(conn *Connection, intent *events.Intent) error {
	switch intent.Type {
	case events.IntentCreateRoom:
		return d.createRoom(conn, intent)
	case events.IntentJoinRoom:
		return d.joinRoom(conn, intent)
	}

	code, pid := d.cm.Binding(conn)
	if code == "" {
		return errNotInRoom
	}

	var err error
	switch intent.Type {
	case events.IntentClaimTeam:
		var data events.ClaimTeamData
		if err := decode(intent, &data); err != nil {
			return err
		}
		if data.TeamID == "" {
			return fmt.Errorf("%w: team_id is required", errBadRequest)
		}
		_, err = d.registry.ClaimTeam(code, pid, data.TeamID)

	case events.IntentLoadCatalog:
		var data events.LoadCatalogData
		if err := decode(intent, &data); err != nil {
			return err
		}
		var cat *catalog.Catalog
		if len(data.Lots) > 0 {
			if cat, err = catalog.New(data.Lots, catalog.WithSetOrder(data.SetOrder...)); err != nil {
				return err
			}
		}
		_, err = d.registry.LoadCatalog(code, pid, cat, data.Teams)

	case events.IntentDrawLot:
		_, err = d.registry.DrawNextLot(code, pid)

	case events.IntentStartCountdown:
		var data events.StartCountdownData
		if err := decode(intent, &data); err != nil {
			return err
		}
		var duration time.Duration
		if duration, err = data.Duration(); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		_, err = d.registry.StartCountdown(code, pid, duration)

	case events.IntentStopCountdown:
		_, err = d.registry.StopCountdown(code, pid)

	case events.IntentPlaceBid:
		var data events.PlaceBidData
		if err := decode(intent, &data); err != nil {
			return err
		}
		if data.TeamID == "" || data.Amount <= 0 {
			return fmt.Errorf("%w: team_id and a positive amount are required", errBadRequest)
		}
		_, err = d.registry.PlaceBid(code, pid, data.TeamID, data.Amount)

	case events.IntentForceResolve:
		_, err = d.registry.ForceResolve(code, pid)

	case events.IntentForceUnsold:
		_, err = d.registry.ForceUnsold(code, pid)

	case events.IntentSync:
		_, err = d.registry.Sync(code, pid)

	default:
		return fmt.Errorf("%w: unknown intent %q", errBadRequest, intent.Type)
	}
	return err
}

func (d *Dispatcher) createRoom(conn *Connection, intent *events.Intent) error {
	if code, _ := d.cm.Binding(conn); code != "" {
		return errAlreadyInRoom
	}
	var data events.CreateRoomData
	if err := decode(intent, &data); err != nil {
		return err
	}

	if err := data.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	cfg := data.Settings.Apply(d.defaults)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	res, err := d.registry.CreateRoom(cfg, data.DisplayName)
	if err != nil {
		return err
	}

	d.cm.Attach(conn, res.Code, res.ParticipantID)
	d.reply(conn, res.Code, events.EventTypeRoomCreated, events.RoomCreatedPayload{
		RoomCode:      res.Code,
		ParticipantID: res.ParticipantID,
		ResumeToken:   res.ResumeToken,
	})
	_, err = d.registry.Sync(res.Code, res.ParticipantID)
	return err
}

func (d *Dispatcher) joinRoom(conn *Connection, intent *events.Intent) error {
	if code, _ := d.cm.Binding(conn); code != "" {
		return errAlreadyInRoom
	}
	var data events.JoinRoomData
	if err := decode(intent, &data); err != nil {
		return err
	}
	if strings.TrimSpace(data.RoomCode) == "" {
		return fmt.Errorf("%w: room_code is required", errBadRequest)
	}

	res, err := d.registry.JoinRoom(data.RoomCode, data.DisplayName, data.ResumeToken)
	if err != nil {
		return err
	}

	d.cm.Attach(conn, res.Code, res.ParticipantID)
	d.reply(conn, res.Code, events.EventTypeRoomJoined, events.RoomJoinedPayload{
		RoomCode:      res.Code,
		ParticipantID: res.ParticipantID,
		ResumeToken:   res.ResumeToken,
		DisplayName:   res.DisplayName,
		Resumed:       res.Resumed,
	})
	_, err = d.registry.Sync(res.Code, res.ParticipantID)
	return err
}

// Disconnected leaves the room unless another connection still serves the
// same participant.
func (d *Dispatcher) Disconnected(conn *Connection) {
	code, pid := d.cm.Binding(conn)
	if code == "" || d.cm.HasParticipant(code, pid, conn) {
		return
	}
	if err := d.registry.Leave(code, pid); err != nil {
		log.Debug().Err(err).Str("room_code", code).Str("participant_id", pid).Msg("leave after disconnect failed")
	}
}

func (d *Dispatcher) reject(conn *Connection, intent *events.Intent, err error) {
	code, reason := rejectionFor(err)
	roomCode, _ := d.cm.Binding(conn)

	log.Debug().
		Err(err).
		Str("connection_id", conn.ID).
		Str("room_code", roomCode).
		Str("intent", string(intent.Type)).
		Str("code", code).
		Msg("intent rejected")

	d.reply(conn, roomCode, events.EventTypeRejection, events.RejectionPayload{
		RequestID: intent.RequestID,
		Intent:    intent.Type,
		Code:      code,
		Reason:    reason,
	})
}

func (d *Dispatcher) reply(conn *Connection, roomCode string, t events.EventType, payload interface{}) {
	e, err := events.New(roomCode, t, d.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build reply")
		return
	}
	d.cm.Reply(conn, e)
}

func decode(intent *events.Intent, v interface{}) error {
	if err := intent.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
