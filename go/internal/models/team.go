package models

// TeamSpec describes a team before the auction starts.
type TeamSpec struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	ShortName string `json:"short_name" yaml:"short_name"`
	Color     string `json:"color" yaml:"color"`
}

// Team is the ledger entry of one bidder: remaining budget, spend and squad.
// Budget + TotalSpent always equals InitialBudget.
type Team struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ShortName     string `json:"short_name"`
	Color         string `json:"color"`
	InitialBudget int64  `json:"initial_budget"`
	Budget        int64  `json:"budget"`
	TotalSpent    int64  `json:"total_spent"`
	Squad         []Lot  `json:"squad"`
}

// OverseasCount returns how many squad members are overseas players.
func (t *Team) OverseasCount(homeNationality string) int {
	n := 0
	for _, l := range t.Squad {
		if l.IsOverseas(homeNationality) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the team.
func (t *Team) Clone() Team {
	c := *t
	c.Squad = append([]Lot(nil), t.Squad...)
	return c
}

// DefaultTeams are the franchises used when a host loads a catalog without
// an explicit team list.
var DefaultTeams = []TeamSpec{
	{ID: "CSK", Name: "Chennai Super Kings", ShortName: "CSK", Color: "#FFFF00"},
	{ID: "MI", Name: "Mumbai Indians", ShortName: "MI", Color: "#004BA0"},
	{ID: "RCB", Name: "Royal Challengers Bangalore", ShortName: "RCB", Color: "#EC1C24"},
	{ID: "KKR", Name: "Kolkata Knight Riders", ShortName: "KKR", Color: "#3A225D"},
	{ID: "RR", Name: "Rajasthan Royals", ShortName: "RR", Color: "#EA1A85"},
	{ID: "PBKS", Name: "Punjab Kings", ShortName: "PBKS", Color: "#DD1F2D"},
	{ID: "SRH", Name: "Sunrisers Hyderabad", ShortName: "SRH", Color: "#F7A721"},
	{ID: "LSG", Name: "Lucknow Super Giants", ShortName: "LSG", Color: "#A0CEF8"},
	{ID: "GT", Name: "Gujarat Titans", ShortName: "GT", Color: "#1B2133"},
	{ID: "DC", Name: "Delhi Capitals", ShortName: "DC", Color: "#00008B"},
}
