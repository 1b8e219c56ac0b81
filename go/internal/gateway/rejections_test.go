package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/bidroom/go/internal/auction"
	"github.com/mcdev12/bidroom/go/internal/catalog"
	"github.com/mcdev12/bidroom/go/internal/room"
)

func TestRejectionFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"wrapped room not found", fmt.Errorf("ABC123: %w", room.ErrRoomNotFound), CodeRoomNotFound},
		{"unavailable", room.ErrRoomUnavailable, CodeRoomUnavailable},
		{"not host", room.ErrNotHost, CodeNotHost},
		{"missing name", room.ErrNameRequired, CodeBadRequest},
		{"closed", auction.ErrBiddingClosed, CodeBiddingClosed},
		{"too low", fmt.Errorf("bid 100: %w", auction.ErrBidTooLow), CodeBidTooLow},
		{"funds", auction.ErrInsufficientFunds, CodeInsufficientFunds},
		{"squad", auction.ErrSquadFull, CodeSquadFull},
		{"overseas", auction.ErrOverseasLimit, CodeOverseasLimit},
		{"in progress", auction.ErrLotInProgress, CodeLotInProgress},
		{"no catalog", auction.ErrNoCatalog, CodeNoCatalog},
		{"invalid lot", fmt.Errorf("lot 3: %w", catalog.ErrInvalidLot), CodeInvalidCatalog},
		{"not in room", errNotInRoom, CodeNotInRoom},
		{"unknown", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, reason := rejectionFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestRejectionFor_BadRequestKeepsDetail(t *testing.T) {
	code, reason := rejectionFor(fmt.Errorf("%w: team_id is required", errBadRequest))

	assert.Equal(t, CodeBadRequest, code)
	assert.Contains(t, reason, "team_id is required")
}

func TestRejectionFor_InternalHidesDetail(t *testing.T) {
	_, reason := rejectionFor(errors.New("pq: password authentication failed"))

	assert.NotContains(t, reason, "pq")
}
