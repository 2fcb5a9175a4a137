package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PercentFunded returns collected/target as a percentage in [0, 100],
// truncated to two decimals so that 100 is only reported once the target is
// met. A non-positive target yields 0.
func PercentFunded(collected, target int64) float64 {
	if target <= 0 || collected <= 0 {
		return 0
	}

	pct := decimal.NewFromInt(collected).
		Mul(hundred).
		Div(decimal.NewFromInt(target))

	return decimal.Min(pct, hundred).Truncate(2).InexactFloat64()
}

// DaysLeft returns the number of started days until deadline, never negative.
func DaysLeft(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}

	const day = 24 * time.Hour

	days := remaining / day
	if remaining%day != 0 {
		days++
	}

	return int(days)
}

// Progress is the derived display state of a campaign.
type Progress struct {
	PercentFunded float64
	DaysLeft      int
}

// ProgressOf derives the progress fields of c at now.
func ProgressOf(c *Campaign, now time.Time) Progress {
	return Progress{
		PercentFunded: PercentFunded(c.CollectedAmount, c.TargetAmount),
		DaysLeft:      DaysLeft(c.Deadline, now),
	}
}
