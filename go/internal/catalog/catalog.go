package catalog

import (
	"errors"
	"fmt"

	"github.com/mcdev12/bidroom/go/internal/models"
)

var (
	ErrEmptyCatalog = errors.New("catalog has no lots")
	ErrInvalidLot   = errors.New("invalid lot")
)

// Catalog is an ordered, read-only collection of lots grouped into sets.
// It is never mutated after New returns and may be shared between rooms.
type Catalog struct {
	lots     []models.Lot
	byID     map[int]int
	setOrder []string
	bySet    map[string][]int
}

// Option customizes catalog construction.
type Option func(*options)

type options struct {
	setOrder []string
}

// WithSetOrder places the named sets first in traversal order. Sets without
// lots are ignored and sets not named keep their catalog order after them.
func WithSetOrder(names ...string) Option {
	return func(o *options) {
		o.setOrder = append(o.setOrder, names...)
	}
}

// New validates lots and builds a catalog from a copy of them.
func New(lots []models.Lot, opts ...Option) (*Catalog, error) {
	if len(lots) == 0 {
		return nil, ErrEmptyCatalog
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catalog{
		lots:  make([]models.Lot, 0, len(lots)),
		byID:  make(map[int]int, len(lots)),
		bySet: make(map[string][]int),
	}

	var catalogOrder []string
	for i, lot := range lots {
		if err := validateLot(lot); err != nil {
			return nil, fmt.Errorf("lot at index %d: %w", i, err)
		}
		if _, dup := c.byID[lot.ID]; dup {
			return nil, fmt.Errorf("lot at index %d: duplicate id %d: %w", i, lot.ID, ErrInvalidLot)
		}
		c.byID[lot.ID] = len(c.lots)
		if _, seen := c.bySet[lot.Set]; !seen {
			catalogOrder = append(catalogOrder, lot.Set)
		}
		c.bySet[lot.Set] = append(c.bySet[lot.Set], len(c.lots))
		c.lots = append(c.lots, lot)
	}

	placed := make(map[string]bool, len(catalogOrder))
	for _, name := range o.setOrder {
		if _, ok := c.bySet[name]; !ok || placed[name] {
			continue
		}
		placed[name] = true
		c.setOrder = append(c.setOrder, name)
	}
	for _, name := range catalogOrder {
		if !placed[name] {
			c.setOrder = append(c.setOrder, name)
		}
	}

	return c, nil
}

func validateLot(lot models.Lot) error {
	switch {
	case lot.Name == "":
		return fmt.Errorf("id %d: name is required: %w", lot.ID, ErrInvalidLot)
	case lot.Set == "":
		return fmt.Errorf("id %d: set is required: %w", lot.ID, ErrInvalidLot)
	case lot.BasePrice <= 0:
		return fmt.Errorf("id %d: base price must be positive: %w", lot.ID, ErrInvalidLot)
	case !lot.Role.Valid():
		return fmt.Errorf("id %d: unknown role %q: %w", lot.ID, lot.Role, ErrInvalidLot)
	}
	return nil
}

// Len returns the number of lots.
func (c *Catalog) Len() int {
	return len(c.lots)
}

// Lots returns a copy of all lots in catalog order.
func (c *Catalog) Lots() []models.Lot {
	out := make([]models.Lot, len(c.lots))
	copy(out, c.lots)
	return out
}

// Lot looks a lot up by id.
func (c *Catalog) Lot(id int) (models.Lot, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Lot{}, false
	}
	return c.lots[i], true
}

// SetOrder returns the set traversal order.
func (c *Catalog) SetOrder() []string {
	out := make([]string, len(c.setOrder))
	copy(out, c.setOrder)
	return out
}

// LotsInSet returns the lots of one set in catalog order.
func (c *Catalog) LotsInSet(name string) []models.Lot {
	idx := c.bySet[name]
	out := make([]models.Lot, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.lots[i])
	}
	return out
}
