package cue

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
	c "lautenbacher.net/gointerval/config"
)

// QuietHours reports whether audible actuators should stay silent. It is
// night between sunset and the next sunrise at the configured location.
type QuietHours struct {
	latitude  float64
	longitude float64
	now       func() time.Time
}

// NewQuietHours returns nil when quiet hours are disabled. A nil
// *QuietHours is never active.
func NewQuietHours(cfg c.QuietHoursConfig) *QuietHours {
	if !cfg.Enabled {
		return nil
	}
	return &QuietHours{
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		now:       time.Now,
	}
}

func (q *QuietHours) Active() bool {
	if q == nil {
		return false
	}
	return IsNight(q.latitude, q.longitude, q.now())
}

// IsNight computes sunrise and sunset for the UTC day of now. Where the sun
// does not rise or set that day (polar regions) it is never night.
func IsNight(latitude, longitude float64, now time.Time) bool {
	utc := now.UTC()
	rise, set := sunrise.SunriseSunset(latitude, longitude, utc.Year(), utc.Month(), utc.Day())
	if rise.IsZero() || set.IsZero() {
		return false
	}
	return utc.Before(rise) || utc.After(set)
}
