package analytics

import (
	"github.com/username/tradeledger/src/models"
)

// Returns expresses the trade set's results relative to capitalBase
// (starting balance plus deposits). Every percentage is 0 when the base is
// not positive.
func Returns(trades []models.Trade, capitalBase float64) models.ReturnMetrics {
	total := 0.0
	for _, t := range trades {
		total += t.PnLUSD
	}
	m := models.ReturnMetrics{
		CapitalBase:   round2(capitalBase),
		EndingBalance: round2(capitalBase + total),
	}
	if capitalBase <= 0 || len(trades) == 0 {
		return m
	}

	o := tally(trades)
	pct := func(v float64) float64 { return round2(v / capitalBase * 100) }

	m.TotalReturnPercent = pct(total)
	m.AvgReturnPercent = pct(total / float64(len(trades)))
	m.ExpectancyPercent = pct(Expectancy(trades))
	m.AvgWinPercent = pct(o.avgWin())
	m.AvgLossPercent = pct(-o.avgLoss())
	m.MaxDrawdownPercent = maxDrawdownPercent(trades, capitalBase)
	return m
}

// maxDrawdownPercent measures the worst equity decline relative to the
// equity peak reached before it, with equity starting at capitalBase.
func maxDrawdownPercent(trades []models.Trade, capitalBase float64) float64 {
	equity, peak, worst := capitalBase, capitalBase, 0.0
	for _, t := range trades {
		equity += t.PnLUSD
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (equity - peak) / peak * 100; dd < worst {
				worst = dd
			}
		}
	}
	return round2(worst)
}
