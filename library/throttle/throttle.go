// Package throttle limits how fast chat users can hit the bot.
package throttle

import (
	"sync"

	"github.com/Laisky/errors/v2"
	"golang.org/x/time/rate"
)

// maxKeys caps the per key limiters kept in memory, the map is reset beyond it.
const maxKeys = 100000

// Cfg configuration for Throttle
type Cfg struct {
	TotalNPerSec, TotalBurst     int
	EachKeyNPerSec, EachKeyBurst int
}

// Throttle is a global token bucket plus one bucket per key.
type Throttle struct {
	mu    sync.Mutex
	cfg   Cfg
	total *rate.Limiter
	keys  map[int64]*rate.Limiter
}

// New create new Throttle
func New(cfg Cfg) (*Throttle, error) {
	if cfg.TotalNPerSec <= 0 || cfg.EachKeyNPerSec <= 0 {
		return nil, errors.New("NPerSec must bigger than 0")
	}
	if cfg.TotalBurst < cfg.TotalNPerSec || cfg.EachKeyBurst < cfg.EachKeyNPerSec {
		return nil, errors.New("burst must bigger than NPerSec")
	}

	return &Throttle{
		cfg:   cfg,
		total: rate.NewLimiter(rate.Limit(cfg.TotalNPerSec), cfg.TotalBurst),
		keys:  map[int64]*rate.Limiter{},
	}, nil
}

// Allow reports whether key may proceed now. A denied key does not
// consume from the global bucket.
func (t *Throttle) Allow(key int64) bool {
	t.mu.Lock()
	lim, ok := t.keys[key]
	if !ok {
		if len(t.keys) >= maxKeys {
			t.keys = map[int64]*rate.Limiter{}
		}
		lim = rate.NewLimiter(rate.Limit(t.cfg.EachKeyNPerSec), t.cfg.EachKeyBurst)
		t.keys[key] = lim
	}
	t.mu.Unlock()

	return lim.Allow() && t.total.Allow()
}
