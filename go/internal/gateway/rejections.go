package gateway

import (
	"errors"

	"github.com/mcdev12/bidroom/go/internal/auction"
	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/room"
)

// Rejection codes sent to clients.
const (
	CodeBadRequest        = "bad_request"
	CodeNotInRoom         = "not_in_room"
	CodeAlreadyInRoom     = "already_in_room"
	CodeRoomNotFound      = "room_not_found"
	CodeRoomUnavailable   = "room_unavailable"
	CodeNotHost           = "not_host"
	CodeNotParticipant    = "not_participant"
	CodeBiddingClosed     = "bidding_closed"
	CodeBidTooLow         = "bid_too_low"
	CodeInsufficientFunds = "insufficient_funds"
	CodeUnknownTeam       = "unknown_team"
	CodeSquadFull         = "squad_full"
	CodeOverseasLimit     = "overseas_limit"
	CodeLotInProgress     = "lot_in_progress"
	CodeNoCatalog         = "no_catalog"
	CodeInvalidCatalog    = "invalid_catalog"
	CodeInternal          = "internal"
)

var (
	errBadRequest    = errors.New("malformed request")
	errNotInRoom     = errors.New("join or create a room first")
	errAlreadyInRoom = errors.New("connection already belongs to a room")
)

var rejectionTable = []struct {
	err    error
	code   string
	reason string
}{
	{errNotInRoom, CodeNotInRoom, "Join or create a room first"},
	{errAlreadyInRoom, CodeAlreadyInRoom, "This connection is already in a room"},
	{room.ErrRoomNotFound, CodeRoomNotFound, "Room not found"},
	{room.ErrRoomUnavailable, CodeRoomUnavailable, "Room unavailable: the host disconnected"},
	{room.ErrNotHost, CodeNotHost, "Only the host can do that"},
	{room.ErrNotParticipant, CodeNotParticipant, "You are not part of this room"},
	{room.ErrNameRequired, CodeBadRequest, "A display name is required"},
	{room.ErrCodeSpaceFull, CodeInternal, "Could not create a room, try again"},
	{auction.ErrBiddingClosed, CodeBiddingClosed, "Bidding is closed"},
	{auction.ErrBidTooLow, CodeBidTooLow, "Bid must be higher than the current bid"},
	{auction.ErrInsufficientFunds, CodeInsufficientFunds, "Insufficient funds"},
	{auction.ErrUnknownTeam, CodeUnknownTeam, "Unknown team"},
	{auction.ErrSquadFull, CodeSquadFull, "Squad is full"},
	{auction.ErrOverseasLimit, CodeOverseasLimit, "Overseas player limit reached"},
	{auction.ErrLotInProgress, CodeLotInProgress, "Resolve the current lot first"},
	{auction.ErrNoCatalog, CodeNoCatalog, "No player catalog loaded"},
	{auction.ErrInvalidTeams, CodeInvalidCatalog, "Invalid team list"},
	{catalog.ErrInvalidLot, CodeInvalidCatalog, "Invalid player catalog"},
	{catalog.ErrEmptyCatalog, CodeInvalidCatalog, "Player catalog is empty"},
}

// rejectionFor maps an intent error to a machine code and a user-facing
// reason that never includes other participants' data.
func rejectionFor(err error) (code, reason string) {
	for _, r := range rejectionTable {
		if errors.Is(err, r.err) {
			return r.code, r.reason
		}
	}
	if errors.Is(err, errBadRequest) {
		return CodeBadRequest, err.Error()
	}
	return CodeInternal, "Something went wrong"
}
