package algo

import "time"

// SecondsToDuration converts a cost in seconds to a time.Duration.
func SecondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// DurationToSeconds is the inverse of SecondsToDuration.
func DurationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}
