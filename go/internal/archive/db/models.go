package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type AuctionResult struct {
	ID          uuid.UUID
	RoomCode    string
	CompletedAt time.Time
	SoldCount   int32
	UnsoldCount int32
	TotalSpent  int64
	Sold        pqtype.NullRawMessage
	Unsold      pqtype.NullRawMessage
	TeamIds     []string
	CreatedAt   time.Time
}

type AuctionResultTeam struct {
	ResultID      uuid.UUID
	TeamID        string
	Name          string
	InitialBudget int64
	Budget        int64
	TotalSpent    int64
	Squad         pqtype.NullRawMessage
}
