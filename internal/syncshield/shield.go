// Package syncshield implements the grace window that suppresses spurious
// "zero positions" conclusions right after an order is sent: a broker can
// take a moment to reflect a just-placed position, and without this shield
// the engine would read that gap as the position having already closed.
package syncshield

import "time"

// GraceWindow is the duration an order stays "in flight" after being sent.
const GraceWindow = 5 * time.Second

// InFlight reports whether an order sent at lastOrderSentTS is still
// within the grace window as of now. A zero lastOrderSentTS means no
// order has been sent and nothing is in flight.
func InFlight(lastOrderSentTS float64, now time.Time) bool {
	if lastOrderSentTS == 0 {
		return false
	}
	sentAt := time.Unix(0, int64(lastOrderSentTS*float64(time.Second)))
	return now.Sub(sentAt) < GraceWindow
}
