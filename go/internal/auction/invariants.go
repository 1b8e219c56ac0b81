package auction

import "fmt"

// CheckInvariants verifies the session-level invariants and returns the
// first violation found.
func (e *Engine) CheckInvariants() error {
	for _, t := range e.ledger.snapshot() {
		if t.Budget+t.TotalSpent != t.InitialBudget {
			return fmt.Errorf("team %s: budget %d + spent %d != initial %d", t.ID, t.Budget, t.TotalSpent, t.InitialBudget)
		}
		if t.Budget < 0 {
			return fmt.Errorf("team %s: negative budget %d", t.ID, t.Budget)
		}
	}

	seen := make(map[int]string)
	mark := func(id int, where string) error {
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("lot %d appears in both %s and %s", id, prev, where)
		}
		seen[id] = where
		return nil
	}
	for _, s := range e.sold {
		if err := mark(s.Lot.ID, "sold"); err != nil {
			return err
		}
	}
	for _, l := range e.unsold {
		if err := mark(l.ID, "unsold"); err != nil {
			return err
		}
	}
	if e.currentLot != nil {
		if err := mark(e.currentLot.ID, "current"); err != nil {
			return err
		}
	}
	squads := make(map[int]string)
	for _, t := range e.ledger.snapshot() {
		for _, l := range t.Squad {
			if owner, dup := squads[l.ID]; dup {
				return fmt.Errorf("lot %d in squads of %s and %s", l.ID, owner, t.ID)
			}
			squads[l.ID] = t.ID
			if seen[l.ID] != "sold" {
				return fmt.Errorf("lot %d in squad of %s but not sold", l.ID, t.ID)
			}
		}
	}

	if e.currentLot != nil {
		if len(e.history) == 0 && e.currentBid != e.currentLot.BasePrice {
			return fmt.Errorf("current bid %d without bids differs from base price %d", e.currentBid, e.currentLot.BasePrice)
		}
		if len(e.history) > 0 && e.currentBid != e.history[0].Amount {
			return fmt.Errorf("current bid %d differs from latest bid %d", e.currentBid, e.history[0].Amount)
		}
	}

	if e.currentBidder != "" {
		t, ok := e.ledger.team(e.currentBidder)
		if !ok {
			return fmt.Errorf("current bidder %q is not a team", e.currentBidder)
		}
		if t.Budget < e.currentBid {
			return fmt.Errorf("current bidder %s cannot cover %d", t.ID, e.currentBid)
		}
	}

	if len(e.history) > maxBidHistory {
		return fmt.Errorf("bid history has %d entries", len(e.history))
	}
	for i := 1; i < len(e.history); i++ {
		if e.history[i].Timestamp.After(e.history[i-1].Timestamp) {
			return fmt.Errorf("bid history not most-recent-first at %d", i)
		}
	}
	return nil
}
