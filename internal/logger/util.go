package logger

import (
	"time"
)

// Status maps an error to a unified status string for logs.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Took returns the rounded duration since start for compact logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds a duration to the nearest millisecond for consistent logging.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// TokenPrefix returns a short credential prefix safe to include in logs.
func TokenPrefix(token string) string {
	const keep = 10
	if len(token) <= keep {
		return token
	}
	return token[:keep] + "..."
}
