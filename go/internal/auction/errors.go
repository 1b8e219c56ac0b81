package auction

import "errors"

// Validation errors returned by engine operations. They never mutate state.
var (
	ErrNoCatalog         = errors.New("no catalog loaded")
	ErrLotInProgress     = errors.New("a lot is already up for bidding")
	ErrBiddingClosed     = errors.New("bidding is closed")
	ErrUnknownTeam       = errors.New("unknown team")
	ErrBidTooLow         = errors.New("bid must be higher than the current bid")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSquadFull         = errors.New("squad is full")
	ErrOverseasLimit     = errors.New("overseas player limit reached")
	ErrInvalidTeams      = errors.New("invalid team list")
)
