package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// SunTimes returns fixed-offset sunrise and sunset for any date: sunrise at
// Sunrise past local midnight, sunset at Sunset past local midnight.
type SunTimes struct {
	recorder

	Location *time.Location
	Sunrise  time.Duration
	Sunset   time.Duration
}

var _ observatory.SunTimesProvider = (*SunTimes)(nil)

// NewSunTimes returns a provider with sunrise and sunset at the given
// times of day in loc.
func NewSunTimes(loc *time.Location, sunrise, sunset time.Duration) *SunTimes {
	return &SunTimes{Location: loc, Sunrise: sunrise, Sunset: sunset}
}

func (s *SunTimes) SunTimes(_ context.Context, date time.Time, _, _ float64) (time.Time, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SunTimes", date.Format("2006-01-02")); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %w", observatory.ErrSunTimesUnavailable, err)
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	d := date.In(loc)
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(s.Sunrise), midnight.Add(s.Sunset), nil
}
