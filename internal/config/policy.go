package config

import "fmt"

// Policy limits. Values outside these bounds are clamped rather than rejected.
const (
	MinWorkers    = 1
	MaxWorkersCap = 3
	MinRetryLimit = 1
	MaxRetryLimit = 3
	MinDelaySecs  = 5.0
	MaxDelaySecs  = 15.0
)

// Adjustment records one value changed by ApplyPolicy.
type Adjustment struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

func (a Adjustment) String() string {
	return fmt.Sprintf("%s: %v -> %v", a.Field, a.From, a.To)
}

// ApplyPolicy clamps max_workers, retry_limit and delay_range into their
// allowed ranges and returns every change made. Calling it twice is a no-op
// the second time.
func (c *Config) ApplyPolicy() []Adjustment {
	var adj []Adjustment

	if w := clampInt(c.MaxWorkers, MinWorkers, MaxWorkersCap); w != c.MaxWorkers {
		adj = append(adj, Adjustment{Field: "max_workers", From: c.MaxWorkers, To: w})
		c.MaxWorkers = w
	}
	if r := clampInt(c.RetryLimit, MinRetryLimit, MaxRetryLimit); r != c.RetryLimit {
		adj = append(adj, Adjustment{Field: "retry_limit", From: c.RetryLimit, To: r})
		c.RetryLimit = r
	}

	if len(c.DelayRange) == 2 {
		lo := clampFloat(c.DelayRange[0], MinDelaySecs, MaxDelaySecs)
		hi := clampFloat(c.DelayRange[1], MinDelaySecs, MaxDelaySecs)
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo != c.DelayRange[0] || hi != c.DelayRange[1] {
			adj = append(adj, Adjustment{
				Field: "delay_range",
				From:  []float64{c.DelayRange[0], c.DelayRange[1]},
				To:    []float64{lo, hi},
			})
			c.DelayRange = []float64{lo, hi}
		}
	}

	return adj
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
