package spline

import "math"

const (
	Gravity           = 19.29110527038574
	TerminalVelocity  = 60.148003
	terminalFallTime  = TerminalVelocity / Gravity
	terminalFallLen   = TerminalVelocity * TerminalVelocity / (2 * Gravity)
	minimalDurationMS = 1
)

// FallTime returns seconds needed to fall height yards from rest.
func FallTime(height float64) float64 {
	if height < 0 {
		return 0
	}
	if height >= terminalFallLen {
		return (height-terminalFallLen)/TerminalVelocity + terminalFallTime
	}
	return math.Sqrt(2 * height / Gravity)
}

// FallElevation returns how far a body falls from rest in t seconds.
func FallElevation(t float64) float64 {
	if t > terminalFallTime {
		return TerminalVelocity*(t-terminalFallTime) + Gravity*terminalFallTime*terminalFallTime*0.5
	}
	return t * t * Gravity * 0.5
}
