package cli

import (
	"fmt"
	"math"
	"time"
)

// FormatDuration formats a duration to a short human readable string
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	secs = secs - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// FormatDB formats a level in decibels; silence shows as -inf.
func FormatDB(db float64) string {
	if math.IsInf(db, -1) || db < -200 {
		return "-inf dB"
	}
	return fmt.Sprintf("%.1f dB", db)
}

// FormatPercent formats a ratio in [0, 1] as a percentage.
func FormatPercent(r float64) string {
	return fmt.Sprintf("%.0f%%", r*100)
}

// Bar draws a fixed-width bar for a value in [0, 1].
func Bar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	v = math.Max(0, math.Min(1, v))
	filled := int(math.Round(v * float64(width)))
	b := make([]rune, width)
	for i := range b {
		if i < filled {
			b[i] = '█'
		} else {
			b[i] = '░'
		}
	}
	return string(b)
}
