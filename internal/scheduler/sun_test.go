package scheduler

import (
	"testing"
	"time"
)

func TestSolarCalculatorMidLatitudes(t *testing.T) {
	// London on an equinox: sunrise and sunset both exist and span
	// roughly twelve hours.
	calc := SolarCalculator{Latitude: 51.5074, Longitude: -0.1278}

	sunriseAt, sunsetAt, ok := calc.SunTimes(2026, time.March, 20)
	if !ok {
		t.Fatal("SunTimes() ok = false, want sunrise/sunset at mid latitudes")
	}
	if !sunriseAt.Before(sunsetAt) {
		t.Errorf("sunrise %v not before sunset %v", sunriseAt, sunsetAt)
	}

	daylight := sunsetAt.Sub(sunriseAt)
	if daylight < 10*time.Hour || daylight > 14*time.Hour {
		t.Errorf("daylight = %v, want roughly 12h around the equinox", daylight)
	}
}

func TestSolarCalculatorPolarNight(t *testing.T) {
	// Longyearbyen in midwinter: the sun never rises.
	calc := SolarCalculator{Latitude: 78.2232, Longitude: 15.6267}

	if _, _, ok := calc.SunTimes(2026, time.December, 21); ok {
		t.Error("SunTimes() ok = true during polar night, want false")
	}
}
