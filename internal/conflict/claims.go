package conflict

import (
	"sync"

	"seatrace/internal/booking"
)

// SeatClaims hands each concurrently running trial its own seat. A seat stays
// claimed once any contender reached select on it; claims of trials that
// never touched their seat are returned.
type SeatClaims struct {
	mu     sync.Mutex
	claims map[int64]struct{}
}

func NewSeatClaims() *SeatClaims {
	return &SeatClaims{claims: make(map[int64]struct{})}
}

// Claim takes the first listed seat no other trial holds.
func (c *SeatClaims) Claim(seats []booking.Seat) (booking.Seat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range seats {
		if _, taken := c.claims[s.ID]; !taken {
			c.claims[s.ID] = struct{}{}
			return s, true
		}
	}
	return booking.Seat{}, false
}

// Return gives an untouched seat back.
func (c *SeatClaims) Return(seatID int64) {
	c.mu.Lock()
	delete(c.claims, seatID)
	c.mu.Unlock()
}

// Len returns the number of claimed seats.
func (c *SeatClaims) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claims)
}
