package scheduler

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SunProvider supplies sunrise and sunset instants for a calendar day.
// ok is false when the data is unavailable, in which case sunrise and
// sunset triggers simply do not arm for that day (fail-safe).
type SunProvider interface {
	SunTimes(year int, month time.Month, day int) (sunriseAt, sunsetAt time.Time, ok bool)
}

// SolarCalculator computes sunrise and sunset from the site's
// coordinates. Returned instants are in UTC.
type SolarCalculator struct {
	Latitude  float64
	Longitude float64
}

// SunTimes returns the sunrise and sunset instants for the given day.
// During polar day or polar night no rise/set occurs and ok is false.
func (c SolarCalculator) SunTimes(year int, month time.Month, day int) (time.Time, time.Time, bool) {
	rise, set := sunrise.SunriseSunset(c.Latitude, c.Longitude, year, month, day)
	if rise.IsZero() || set.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return rise, set, true
}
