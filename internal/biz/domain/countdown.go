package domain

import "fmt"

// Warning is a one-shot notice sent while a topic counts down
type Warning struct {
	At        int // Seconds left when the warning fires
	MinBudget int // Smallest topic budget for which the warning is meaningful
	Text      string
}

// Warnings fire at fixed thresholds, each only when the budget is large enough.
var Warnings = []Warning{
	{At: 120, MinBudget: 240, Text: "2 minute warning!"},
	{At: 60, MinBudget: 60, Text: "1 minute warning!"},
	{At: 15, MinBudget: 60, Text: "15 second warning!"},
}

// WarningAt returns the warning to send when a countdown of the given budget
// has just reached timeLeft. The starting value never triggers a warning.
func WarningAt(budget, timeLeft int) (Warning, bool) {
	if timeLeft >= budget {
		return Warning{}, false
	}
	for _, w := range Warnings {
		if w.At == timeLeft && budget >= w.MinBudget {
			return w, true
		}
	}
	return Warning{}, false
}

// FormatMinutesSeconds renders seconds as "MM minutes SS seconds"
func FormatMinutesSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d minutes %02d seconds", seconds/60%60, seconds%60)
}
