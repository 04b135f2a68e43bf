// Package pacing computes randomized inter-request delays that follow a
// human browsing cadence.
package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy yields the delay to wait before the next request.
type Policy interface {
	NextDelay() time.Duration
}

// Band is a delay range expressed in pacing units.
type Band struct {
	Min float64
	Max float64
}

var (
	PeakBand    = Band{Min: 10, Max: 15} // 09:00-18:59
	EveningBand = Band{Min: 7, Max: 12}  // 19:00-23:59
	NightBand   = Band{Min: 3, Max: 7}
)

// BandFor returns the band for an hour of the day.
func BandFor(hour int) Band {
	switch {
	case hour >= 9 && hour <= 18:
		return PeakBand
	case hour >= 19 && hour <= 23:
		return EveningBand
	default:
		return NightBand
	}
}

// Adaptive picks a uniformly random delay from the band of the current hour.
type Adaptive struct {
	Now  func() time.Time
	Rand func() float64
	Unit time.Duration
}

// NewAdaptive returns a policy reading the wall clock in loc, in seconds.
func NewAdaptive(loc *time.Location) *Adaptive {
	if loc == nil {
		loc = time.Local
	}
	return &Adaptive{
		Now:  func() time.Time { return time.Now().In(loc) },
		Rand: rand.Float64,
		Unit: time.Second,
	}
}

// NextDelay implements Policy.
func (a *Adaptive) NextDelay() time.Duration {
	b := BandFor(a.now().Hour())
	return scale(b, a.random(), a.unit())
}

func (a *Adaptive) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Adaptive) random() float64 {
	if a.Rand == nil {
		return rand.Float64()
	}
	return a.Rand()
}

func (a *Adaptive) unit() time.Duration {
	if a.Unit <= 0 {
		return time.Second
	}
	return a.Unit
}

// Fixed picks a uniformly random delay from a configured range regardless of
// the time of day.
type Fixed struct {
	Min  time.Duration
	Max  time.Duration
	Rand func() float64
}

// NewFixed returns a Fixed policy, swapping min and max if needed.
func NewFixed(min, max time.Duration) *Fixed {
	if min > max {
		min, max = max, min
	}
	return &Fixed{Min: min, Max: max, Rand: rand.Float64}
}

// NextDelay implements Policy.
func (f *Fixed) NextDelay() time.Duration {
	r := rand.Float64
	if f.Rand != nil {
		r = f.Rand
	}
	return f.Min + time.Duration(r()*float64(f.Max-f.Min))
}

func scale(b Band, r float64, unit time.Duration) time.Duration {
	v := b.Min + r*(b.Max-b.Min)
	return time.Duration(v * float64(unit))
}

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
