package push

import (
	"math/rand/v2"
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/config"
)

// Backoff computes reconnect delays: min(Base*2^attempt, Max) plus a
// random jitter in [0, MaxJitter).
type Backoff struct {
	Base      time.Duration
	Max       time.Duration
	MaxJitter time.Duration

	jitter func(n time.Duration) time.Duration
}

func NewBackoff(cfg config.PushConfig) Backoff {
	return Backoff{
		Base:      cfg.BaseDelay,
		Max:       cfg.MaxDelay,
		MaxJitter: cfg.MaxJitter,
	}
}

func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Max
	if attempt < 0 {
		attempt = 0
	}
	if attempt < 32 {
		if v := b.Base << attempt; v > 0 && v < b.Max {
			d = v
		}
	}
	return d + b.randJitter()
}

func (b Backoff) randJitter() time.Duration {
	if b.MaxJitter <= 0 {
		return 0
	}
	if b.jitter != nil {
		return b.jitter(b.MaxJitter)
	}
	return rand.N(b.MaxJitter)
}
