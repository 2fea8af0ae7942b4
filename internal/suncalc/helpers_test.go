package suncalc

import "time"

// São Paulo coordinates for testing
const (
	testLatitude  = -23.5505
	testLongitude = -46.6333
)

// newTestSunCalc creates a SunCalc instance with São Paulo coordinates.
func newTestSunCalc() *SunCalc {
	return NewSunCalc(testLatitude, testLongitude)
}

// equinoxDate returns March 20, 2024 UTC.
func equinoxDate() time.Time {
	return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
}
