package models

// Role is the playing specialism of a lot.
type Role string

const (
	RoleBatter       Role = "BAT"
	RoleBowler       Role = "BOWL"
	RoleAllRounder   Role = "AR"
	RoleWicketkeeper Role = "WK"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBatter, RoleBowler, RoleAllRounder, RoleWicketkeeper:
		return true
	}
	return false
}

// LotStats holds career numbers. They are carried for display only.
type LotStats struct {
	Matches int     `json:"matches" yaml:"matches"`
	Runs    int     `json:"runs" yaml:"runs"`
	Wickets int     `json:"wickets" yaml:"wickets"`
	Average float64 `json:"avg" yaml:"avg"`
	Strike  float64 `json:"sr" yaml:"sr"`
	Economy float64 `json:"econ" yaml:"econ"`
}

// Lot is a player offered in the auction. Lots never change once a catalog
// has been loaded.
type Lot struct {
	ID           int      `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Nationality  string   `json:"nationality" yaml:"nationality"`
	Role         Role     `json:"role" yaml:"role"`
	BasePrice    int64    `json:"base_price" yaml:"base_price"`
	Set          string   `json:"set" yaml:"set"`
	Age          int      `json:"age,omitempty" yaml:"age"`
	BattingStyle string   `json:"batting_style,omitempty" yaml:"batting_style"`
	BowlingStyle string   `json:"bowling_style,omitempty" yaml:"bowling_style"`
	Stats        LotStats `json:"stats" yaml:"stats"`
}

// IsOverseas reports whether the lot counts against a team's overseas quota.
func (l Lot) IsOverseas(homeNationality string) bool {
	return homeNationality != "" && l.Nationality != homeNationality
}
