package auth

import "time"

// IsWithinThresholdPeriod checks if t happened less than window before now
func IsWithinThresholdPeriod(t, now time.Time, window time.Duration) bool {
	return t.After(now.Add(-window))
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t, now time.Time, window time.Duration) bool {
	return !IsWithinThresholdPeriod(t, now, window)
}
