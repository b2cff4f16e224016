package domain

import "time"

// Recognized speed range, in milliseconds of delay between steps.
// Lower values replay faster.
const (
	MinSpeed     = 0
	MaxSpeed     = 1000
	DefaultSpeed = 300
)

// ClampSpeed bounds ms to [MinSpeed, MaxSpeed].
func ClampSpeed(ms int) int {
	if ms < MinSpeed {
		return MinSpeed
	}
	if ms > MaxSpeed {
		return MaxSpeed
	}
	return ms
}

// SpeedFromLevel maps an inverted UI slider (0 = slowest, MaxSpeed = fastest)
// to a delay setting.
func SpeedFromLevel(level int) int {
	return MaxSpeed - ClampSpeed(level)
}

// SpeedToDelay converts a (clamped) speed setting into a wait duration.
func SpeedToDelay(ms int) time.Duration {
	return time.Duration(ClampSpeed(ms)) * time.Millisecond
}
