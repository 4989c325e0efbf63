package conflict

import (
	"fmt"
	"math/rand/v2"
	"time"

	"seatrace/internal/config"
)

// Distribution draws the delay a contender waits between creating its
// booking and selecting the contested seat.
type Distribution interface {
	Draw() time.Duration
}

// Uniform draws from [Min, Max).
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

func (u Uniform) Draw() time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + rand.N(u.Max-u.Min)
}

func (u Uniform) String() string {
	return fmt.Sprintf("uniform[%s,%s)", u.Min, u.Max)
}

// Fixed always waits Delay.
type Fixed struct {
	Delay time.Duration
}

func (f Fixed) Draw() time.Duration { return f.Delay }

func (f Fixed) String() string { return "fixed " + f.Delay.String() }

// None selects immediately.
type None struct{}

func (None) Draw() time.Duration { return 0 }

func (None) String() string { return "none" }

// NewDistribution builds a distribution from its configured kind.
// A fixed distribution waits min.
func NewDistribution(kind string, min, max time.Duration) (Distribution, error) {
	switch kind {
	case config.JitterUniform, "":
		return Uniform{Min: min, Max: max}, nil
	case config.JitterFixed:
		return Fixed{Delay: min}, nil
	case config.JitterNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown jitter kind %q", kind)
	}
}
