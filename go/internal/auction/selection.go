package auction

import (
	"math/rand"
	"time"

	"github.com/mcdev12/bidroom/go/internal/models"
)

// LotSelector picks the next lot to offer from the eligible lots of the
// current set. eligible is never empty and is in catalog order.
type LotSelector interface {
	Select(eligible []models.Lot) models.Lot
}

// RandomSelector draws uniformly at random.
type RandomSelector struct {
	rng *rand.Rand
}

// NewRandomSelector creates a selector seeded from the current time.
func NewRandomSelector() *RandomSelector {
	return NewSeededSelector(time.Now().UnixNano())
}

// NewSeededSelector creates a random selector with a fixed seed.
func NewSeededSelector(seed int64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSelector) Select(eligible []models.Lot) models.Lot {
	return eligible[s.rng.Intn(len(eligible))]
}

// OrderedSelector always offers the first eligible lot in catalog order.
type OrderedSelector struct{}

func (OrderedSelector) Select(eligible []models.Lot) models.Lot {
	return eligible[0]
}

// SelectorFor returns a fresh selector for the given draw policy.
func SelectorFor(policy models.DrawPolicy) LotSelector {
	if policy == models.DrawPolicyOrdered {
		return OrderedSelector{}
	}
	return NewRandomSelector()
}
