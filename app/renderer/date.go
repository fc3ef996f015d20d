package renderer

import (
	"strconv"
	"time"
)

// formatDay renders a date as "1st January", "22nd March", "17th October".
func formatDay(t time.Time) string {
	day := t.Day()
	return strconv.Itoa(day) + ordinalSuffix(day) + " " + t.Month().String()
}

func ordinalSuffix(day int) string {
	switch day {
	case 1, 21, 31:
		return "st"
	case 2, 22:
		return "nd"
	case 3, 23:
		return "rd"
	default:
		return "th"
	}
}
