package util

import (
	"fmt"
	"math"
	"time"
)

// RoundTripStats summarizes a series of measured round trips
type RoundTripStats struct {
	Count  int
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

// NewRoundTripStats computes min, max, mean and the population standard deviation
func NewRoundTripStats(samples []time.Duration) RoundTripStats {
	if len(samples) == 0 {
		return RoundTripStats{}
	}

	lo, hi := samples[0], samples[0]
	var sum float64
	for _, s := range samples {
		sum += float64(s)
		lo = min(lo, s)
		hi = max(hi, s)
	}
	mean := sum / float64(len(samples))

	var sumSquaredDiffs float64
	for _, s := range samples {
		diff := float64(s) - mean
		sumSquaredDiffs += diff * diff
	}

	return RoundTripStats{
		Count:  len(samples),
		Min:    lo,
		Max:    hi,
		Mean:   time.Duration(mean),
		StdDev: time.Duration(math.Sqrt(sumSquaredDiffs / float64(len(samples)))),
	}
}

func (s RoundTripStats) String() string {
	return fmt.Sprintf("%d round trips, min/avg/max/stddev = %s/%s/%s/%s", s.Count, s.Min, s.Mean, s.Max, s.StdDev)
}
