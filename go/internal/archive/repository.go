package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/bidroom/go/internal/archive/db"
	"github.com/mcdev12/bidroom/go/internal/models"
	"github.com/mcdev12/bidroom/go/internal/sqlutil"
)

var ErrResultNotFound = errors.New("auction result not found")

// Querier is the subset of generated queries the repository uses.
type Querier interface {
	CreateSchema(ctx context.Context) error
	InsertAuctionResult(ctx context.Context, arg db.InsertAuctionResultParams) (int64, error)
	InsertAuctionResultTeam(ctx context.Context, arg db.InsertAuctionResultTeamParams) error
	GetAuctionResult(ctx context.Context, id uuid.UUID) (db.AuctionResult, error)
	ListAuctionResultsByRoom(ctx context.Context, arg db.ListAuctionResultsByRoomParams) ([]db.AuctionResult, error)
	ListAuctionResultTeams(ctx context.Context, resultID uuid.UUID) ([]db.AuctionResultTeam, error)
}

// Result is the archived outcome of one completed auction.
type Result struct {
	ID          uuid.UUID        `json:"id"`
	RoomCode    string           `json:"room_code"`
	CompletedAt time.Time        `json:"completed_at"`
	Sold        []models.SoldLot `json:"sold"`
	Unsold      []models.Lot     `json:"unsold"`
	Teams       []models.Team    `json:"teams"`
}

// TotalSpent sums the hammer prices of all sold lots.
func (r Result) TotalSpent() int64 {
	var total int64
	for _, s := range r.Sold {
		total += s.Amount
	}
	return total
}

// Store persists auction results.
type Store interface {
	SaveResult(ctx context.Context, result Result) error
}

// Repository stores results in Postgres.
type Repository struct {
	queries Querier
	runTx   func(ctx context.Context, fn func(q Querier) error) error
}

// NewRepository creates a repository over a Postgres database.
func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		queries: db.New(database),
		runTx: func(ctx context.Context, fn func(q Querier) error) error {
			return sqlutil.Run(ctx, database, func(tx *sql.Tx) Querier { return db.New(tx) }, fn)
		},
	}
}

// EnsureSchema creates the archive tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := r.queries.CreateSchema(ctx); err != nil {
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	return nil
}

// SaveResult writes a result and its team rows in one transaction. Saving
// the same result id twice is a no-op.
func (r *Repository) SaveResult(ctx context.Context, result Result) error {
	sold, err := jsonColumn(result.Sold)
	if err != nil {
		return fmt.Errorf("failed to encode sold lots: %w", err)
	}
	unsold, err := jsonColumn(result.Unsold)
	if err != nil {
		return fmt.Errorf("failed to encode unsold lots: %w", err)
	}
	teamIDs := make([]string, 0, len(result.Teams))
	for _, t := range result.Teams {
		teamIDs = append(teamIDs, t.ID)
	}

	return r.runTx(ctx, func(q Querier) error {
		n, err := q.InsertAuctionResult(ctx, db.InsertAuctionResultParams{
			ID:          result.ID,
			RoomCode:    result.RoomCode,
			CompletedAt: result.CompletedAt,
			SoldCount:   int32(len(result.Sold)),
			UnsoldCount: int32(len(result.Unsold)),
			TotalSpent:  result.TotalSpent(),
			Sold:        sold,
			Unsold:      unsold,
			TeamIds:     teamIDs,
		})
		if err != nil {
			return fmt.Errorf("failed to insert auction result: %w", err)
		}
		if n == 0 {
			return nil
		}

		for _, t := range result.Teams {
			squad, err := jsonColumn(t.Squad)
			if err != nil {
				return fmt.Errorf("failed to encode squad of %s: %w", t.ID, err)
			}
			if err := q.InsertAuctionResultTeam(ctx, db.InsertAuctionResultTeamParams{
				ResultID:      result.ID,
				TeamID:        t.ID,
				Name:          t.Name,
				InitialBudget: t.InitialBudget,
				Budget:        t.Budget,
				TotalSpent:    t.TotalSpent,
				Squad:         squad,
			}); err != nil {
				return fmt.Errorf("failed to insert team %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// GetResult loads one archived result with its teams.
func (r *Repository) GetResult(ctx context.Context, id uuid.UUID) (*Result, error) {
	row, err := r.queries.GetAuctionResult(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get auction result: %w", err)
	}
	teams, err := r.queries.ListAuctionResultTeams(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list result teams: %w", err)
	}
	return dbResultToModel(row, teams)
}

// ListByRoom returns the most recent results of a room, newest first.
func (r *Repository) ListByRoom(ctx context.Context, roomCode string, limit int32) ([]*Result, error) {
	rows, err := r.queries.ListAuctionResultsByRoom(ctx, db.ListAuctionResultsByRoomParams{RoomCode: roomCode, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list auction results: %w", err)
	}
	out := make([]*Result, 0, len(rows))
	for _, row := range rows {
		res, err := dbResultToModel(row, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func dbResultToModel(row db.AuctionResult, teams []db.AuctionResultTeam) (*Result, error) {
	res := &Result{
		ID:          row.ID,
		RoomCode:    row.RoomCode,
		CompletedAt: row.CompletedAt,
		Sold:        []models.SoldLot{},
		Unsold:      []models.Lot{},
		Teams:       make([]models.Team, 0, len(teams)),
	}
	if row.Sold.Valid {
		if err := json.Unmarshal(row.Sold.RawMessage, &res.Sold); err != nil {
			return nil, fmt.Errorf("failed to decode sold lots: %w", err)
		}
	}
	if row.Unsold.Valid {
		if err := json.Unmarshal(row.Unsold.RawMessage, &res.Unsold); err != nil {
			return nil, fmt.Errorf("failed to decode unsold lots: %w", err)
		}
	}
	for _, t := range teams {
		team := models.Team{
			ID:            t.TeamID,
			Name:          t.Name,
			InitialBudget: t.InitialBudget,
			Budget:        t.Budget,
			TotalSpent:    t.TotalSpent,
			Squad:         []models.Lot{},
		}
		if t.Squad.Valid {
			if err := json.Unmarshal(t.Squad.RawMessage, &team.Squad); err != nil {
				return nil, fmt.Errorf("failed to decode squad of %s: %w", t.TeamID, err)
			}
		}
		res.Teams = append(res.Teams, team)
	}
	return res, nil
}

func jsonColumn(v interface{}) (pqtype.NullRawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: string(raw) != "null"}, nil
}
