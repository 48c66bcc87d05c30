package services

import "math"

const earthRadiusM = 6371000.0

// DefaultHysteresisM is the dead-band half-width around a zone boundary.
// A device only transitions once it is clearly past the boundary, so a
// sample jittering around the radius never flaps.
const DefaultHysteresisM = 20.0

// Distance returns the great-circle distance in meters between two
// WGS84 coordinates using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type Transition string

const (
	TransitionNone  Transition = "NONE"
	TransitionEnter Transition = "ENTER"
	TransitionExit  Transition = "EXIT"
)

// Evaluate applies the hysteresis rule. While outside, the device
// enters only at distance <= radius - hysteresis (floored at zero so a
// small zone still has an enterable core). While inside, it exits only
// at distance >= radius + hysteresis. Anything in between holds the
// current state.
func Evaluate(isInside bool, distanceM, radiusM, hysteresisM float64) Transition {
	if hysteresisM < 0 {
		hysteresisM = 0
	}
	if isInside {
		if distanceM >= radiusM+hysteresisM {
			return TransitionExit
		}
		return TransitionNone
	}
	enterThreshold := radiusM - hysteresisM
	if enterThreshold < 0 {
		enterThreshold = 0
	}
	if distanceM <= enterThreshold {
		return TransitionEnter
	}
	return TransitionNone
}
