package auction

import (
	"fmt"

	"github.com/mcdev12/bidroom/go/internal/models"
)

// ledger holds per-team budgets and squads. Only the engine's resolution
// path calls debit.
type ledger struct {
	teams []*models.Team
	byID  map[string]*models.Team
}

func newLedger(specs []models.TeamSpec, budget int64) (*ledger, error) {
	l := &ledger{
		teams: make([]*models.Team, 0, len(specs)),
		byID:  make(map[string]*models.Team, len(specs)),
	}
	for _, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("team id is required: %w", ErrInvalidTeams)
		}
		if _, dup := l.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate team id %q: %w", s.ID, ErrInvalidTeams)
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		t := &models.Team{
			ID:            s.ID,
			Name:          name,
			ShortName:     s.ShortName,
			Color:         s.Color,
			InitialBudget: budget,
			Budget:        budget,
			Squad:         []models.Lot{},
		}
		l.teams = append(l.teams, t)
		l.byID[s.ID] = t
	}
	return l, nil
}

func (l *ledger) team(id string) (*models.Team, bool) {
	if l == nil {
		return nil, false
	}
	t, ok := l.byID[id]
	return t, ok
}

func (l *ledger) debit(id string, lot models.Lot, amount int64) error {
	t, ok := l.team(id)
	if !ok {
		return fmt.Errorf("debit %q: %w", id, ErrUnknownTeam)
	}
	if t.Budget < amount {
		return fmt.Errorf("debit %q for %d: %w", id, amount, ErrInsufficientFunds)
	}
	t.Budget -= amount
	t.TotalSpent += amount
	t.Squad = append(t.Squad, lot)
	return nil
}

func (l *ledger) snapshot() []models.Team {
	if l == nil {
		return []models.Team{}
	}
	out := make([]models.Team, 0, len(l.teams))
	for _, t := range l.teams {
		out = append(out, t.Clone())
	}
	return out
}
