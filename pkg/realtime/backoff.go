package realtime

import (
	"math/rand"
	"time"
)

// DefaultReconnectDelay is the fixed pause before the single reconnect
// attempt that follows a failure.
const DefaultReconnectDelay = 5 * time.Second

// BackoffConfig is the reconnect delay policy. The zero Multiplier and
// Multiplier 1 both keep the delay at InitialDelay.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration // 0 means no cap
	Jitter       bool          // spread the delay over ±20%
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: DefaultReconnectDelay,
		Multiplier:   1,
	}
}

// Delay returns the pause before reconnect attempt n, counted from 1 since
// the last successful open. rng may be nil, which disables jitter.
func (b BackoffConfig) Delay(n int, rng *rand.Rand) time.Duration {
	d := b.InitialDelay
	if d <= 0 {
		return 0
	}
	if b.Multiplier > 1 {
		for i := 1; i < n; i++ {
			d = time.Duration(float64(d) * b.Multiplier)
			if b.MaxDelay > 0 && d >= b.MaxDelay {
				break
			}
		}
	}
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	if b.Jitter && rng != nil {
		d = time.Duration(float64(d) * (0.8 + 0.4*rng.Float64()))
	}
	return d
}
