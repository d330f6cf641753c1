// Package stats holds the pure incremental statistics behind the performance
// metrics: the recent-score window, extremes, consistency, streaks and weekly
// activity buckets. Nothing here performs I/O.
//
// Calendar days are UTC days throughout.
package stats

import "time"

const (
	InitialBest  = 0.0
	InitialWorst = 100.0

	MasteredThreshold   = 80.0
	ProficientThreshold = 70.0
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant. Set moves it.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

func (c *FixedClock) Set(t time.Time) { c.T = t }

func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
