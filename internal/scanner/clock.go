package scanner

import (
	"fmt"
	"math"
)

// formatMinutesSeconds renders seconds as zero-padded MM:SS; minutes are not wrapped
// into hours.
func formatMinutesSeconds(seconds float64) string {
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// formatShortClock renders seconds as M:SS.
func formatShortClock(seconds float64) string {
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func usableDuration(seconds float64, ok bool) bool {
	return ok && seconds > 0 && !math.IsInf(seconds, 0) && !math.IsNaN(seconds)
}
