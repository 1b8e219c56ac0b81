package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const createSchema = `-- name: CreateSchema :exec
CREATE TABLE IF NOT EXISTS auction_results (
    id           UUID PRIMARY KEY,
    room_code    TEXT        NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,
    sold_count   INTEGER     NOT NULL,
    unsold_count INTEGER     NOT NULL,
    total_spent  BIGINT      NOT NULL,
    sold         JSONB,
    unsold       JSONB,
    team_ids     TEXT[]      NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS auction_results_room_code_idx ON auction_results (room_code, completed_at DESC);
CREATE TABLE IF NOT EXISTS auction_result_teams (
    result_id      UUID   NOT NULL REFERENCES auction_results (id) ON DELETE CASCADE,
    team_id        TEXT   NOT NULL,
    name           TEXT   NOT NULL,
    initial_budget BIGINT NOT NULL,
    budget         BIGINT NOT NULL,
    total_spent    BIGINT NOT NULL,
    squad          JSONB,
    PRIMARY KEY (result_id, team_id)
)
`

func (q *Queries) CreateSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, createSchema)
	return err
}

const insertAuctionResult = `-- name: InsertAuctionResult :execrows
INSERT INTO auction_results (id, room_code, completed_at, sold_count, unsold_count, total_spent, sold, unsold, team_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`

type InsertAuctionResultParams struct {
	ID          uuid.UUID
	RoomCode    string
	CompletedAt time.Time
	SoldCount   int32
	UnsoldCount int32
	TotalSpent  int64
	Sold        pqtype.NullRawMessage
	Unsold      pqtype.NullRawMessage
	TeamIds     []string
}

func (q *Queries) InsertAuctionResult(ctx context.Context, arg InsertAuctionResultParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertAuctionResult,
		arg.ID,
		arg.RoomCode,
		arg.CompletedAt,
		arg.SoldCount,
		arg.UnsoldCount,
		arg.TotalSpent,
		arg.Sold,
		arg.Unsold,
		pq.Array(arg.TeamIds),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertAuctionResultTeam = `-- name: InsertAuctionResultTeam :exec
INSERT INTO auction_result_teams (result_id, team_id, name, initial_budget, budget, total_spent, squad)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertAuctionResultTeamParams struct {
	ResultID      uuid.UUID
	TeamID        string
	Name          string
	InitialBudget int64
	Budget        int64
	TotalSpent    int64
	Squad         pqtype.NullRawMessage
}

func (q *Queries) InsertAuctionResultTeam(ctx context.Context, arg InsertAuctionResultTeamParams) error {
	_, err := q.db.ExecContext(ctx, insertAuctionResultTeam,
		arg.ResultID,
		arg.TeamID,
		arg.Name,
		arg.InitialBudget,
		arg.Budget,
		arg.TotalSpent,
		arg.Squad,
	)
	return err
}

const getAuctionResult = `-- name: GetAuctionResult :one
SELECT id, room_code, completed_at, sold_count, unsold_count, total_spent, sold, unsold, team_ids, created_at
FROM auction_results
WHERE id = $1
`

func (q *Queries) GetAuctionResult(ctx context.Context, id uuid.UUID) (AuctionResult, error) {
	row := q.db.QueryRowContext(ctx, getAuctionResult, id)
	var i AuctionResult
	err := row.Scan(
		&i.ID,
		&i.RoomCode,
		&i.CompletedAt,
		&i.SoldCount,
		&i.UnsoldCount,
		&i.TotalSpent,
		&i.Sold,
		&i.Unsold,
		pq.Array(&i.TeamIds),
		&i.CreatedAt,
	)
	return i, err
}

const listAuctionResultsByRoom = `-- name: ListAuctionResultsByRoom :many
SELECT id, room_code, completed_at, sold_count, unsold_count, total_spent, sold, unsold, team_ids, created_at
FROM auction_results
WHERE room_code = $1
ORDER BY completed_at DESC
LIMIT $2
`

type ListAuctionResultsByRoomParams struct {
	RoomCode string
	Limit    int32
}

func (q *Queries) ListAuctionResultsByRoom(ctx context.Context, arg ListAuctionResultsByRoomParams) ([]AuctionResult, error) {
	rows, err := q.db.QueryContext(ctx, listAuctionResultsByRoom, arg.RoomCode, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuctionResult
	for rows.Next() {
		var i AuctionResult
		if err := rows.Scan(
			&i.ID,
			&i.RoomCode,
			&i.CompletedAt,
			&i.SoldCount,
			&i.UnsoldCount,
			&i.TotalSpent,
			&i.Sold,
			&i.Unsold,
			pq.Array(&i.TeamIds),
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAuctionResultTeams = `-- name: ListAuctionResultTeams :many
SELECT result_id, team_id, name, initial_budget, budget, total_spent, squad
FROM auction_result_teams
WHERE result_id = $1
ORDER BY team_id
`

func (q *Queries) ListAuctionResultTeams(ctx context.Context, resultID uuid.UUID) ([]AuctionResultTeam, error) {
	rows, err := q.db.QueryContext(ctx, listAuctionResultTeams, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuctionResultTeam
	for rows.Next() {
		var i AuctionResultTeam
		if err := rows.Scan(
			&i.ResultID,
			&i.TeamID,
			&i.Name,
			&i.InitialBudget,
			&i.Budget,
			&i.TotalSpent,
			&i.Squad,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
