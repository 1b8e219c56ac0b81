package auction

const (
	lakh  int64 = 100_000
	crore int64 = 100 * lakh
)

// NextBidAmount returns the suggested next bid on the bid ladder. The
// ladder is a hint for clients; any amount above the current bid is valid.
func NextBidAmount(current int64) int64 {
	switch {
	case current < 1*crore:
		return current + 5*lakh
	case current < 2*crore:
		return current + 10*lakh
	case current < 5*crore:
		return current + 20*lakh
	default:
		return current + 25*lakh
	}
}
