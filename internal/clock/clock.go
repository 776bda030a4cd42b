package clock

import (
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the civil timezone used when none is configured.
const DefaultTimezone = "Asia/Kolkata"

// Clock is the only source of "now" for publication decisions and stamps.
type Clock interface {
	Now() time.Time
	Location() *time.Location
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Zoned is the system clock pinned to a civil timezone.
type Zoned struct {
	loc *time.Location
}

// NewZoned returns a system clock reporting times in loc.
func NewZoned(loc *time.Location) *Zoned {
	if loc == nil {
		loc = time.UTC
	}
	return &Zoned{loc: loc}
}

// LoadZoned resolves a timezone name and returns a clock for it.
func LoadZoned(name string) (*Zoned, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return NewZoned(loc), nil
}

func (z *Zoned) Now() time.Time {
	return time.Now().In(z.loc)
}

func (z *Zoned) Location() *time.Location {
	return z.loc
}

func (z *Zoned) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }

func (s *systemTicker) Stop() { s.t.Stop() }

var _ Clock = (*Zoned)(nil)
