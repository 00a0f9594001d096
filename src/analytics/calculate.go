package analytics

import (
	"time"

	"github.com/username/tradeledger/src/models"
)

// Calculate computes the store's statistics block. total_pnl is the plain
// sum of pnl_usd in slice order.
func Calculate(trades []models.Trade, capitalBase float64, now time.Time) models.Statistics {
	stats := models.EmptyStatistics()
	stats.ComputedAt = now.UTC().Format(time.RFC3339)
	stats.Returns = Returns(trades, capitalBase)
	if len(trades) == 0 {
		return stats
	}

	o := tally(trades)
	total := 0.0
	volume := 0
	largestWin, largestLoss := 0.0, 0.0
	for _, t := range trades {
		total += t.PnLUSD
		volume += t.PositionSize
		if t.PnLUSD > largestWin {
			largestWin = t.PnLUSD
		}
		if t.PnLUSD < largestLoss {
			largestLoss = t.PnLUSD
		}
	}
	n := float64(len(trades))

	stats.TotalTrades = len(trades)
	stats.WinningTrades = o.wins
	stats.LosingTrades = o.losses
	stats.BreakevenTrades = o.breakevens
	stats.WinRate = round2(float64(o.wins) / n * 100)
	stats.TotalPnL = total
	stats.AvgPnL = round2(total / n)
	stats.AvgWinner = round2(o.avgWin())
	stats.AvgLoser = round2(-o.avgLoss())
	stats.LargestWin = round2(largestWin)
	stats.LargestLoss = round2(largestLoss)
	stats.GrossProfit = round2(o.grossProfit)
	stats.GrossLoss = round2(o.grossLoss)
	stats.TotalVolume = volume
	stats.Expectancy = Expectancy(trades)
	stats.ProfitFactor = ProfitFactor(trades)
	stats.MaxWinStreak, stats.MaxLossStreak = Streaks(trades)
	stats.MaxDrawdown = MaxDrawdown(trades)
	stats.MaxDrawdownPercent = stats.Returns.MaxDrawdownPercent
	stats.KellyCriterion = KellyCriterion(trades)
	stats.ByStrategy = AggregateBy(trades, FieldStrategy, OrderByTotalPnLDesc)
	stats.ByStrategyTag = AggregateBy(trades, FieldStrategyTags, OrderByTotalPnLDesc)
	return stats
}

// BuildAnalytics produces the dashboard document.
func BuildAnalytics(trades []models.Trade, capitalBase float64, now time.Time) models.Analytics {
	series := Drawdown(trades)
	maxWin, maxLoss := Streaks(trades)
	return models.Analytics{
		TotalTrades:    len(trades),
		Expectancy:     Expectancy(trades),
		ProfitFactor:   ProfitFactor(trades),
		MaxWinStreak:   maxWin,
		MaxLossStreak:  maxLoss,
		MaxDrawdown:    minValue(series.Values),
		KellyCriterion: KellyCriterion(trades),
		ByStrategy:     AggregateBy(trades, FieldStrategy, OrderByTotalPnLDesc),
		BySetup:        AggregateBy(trades, FieldSetupTags, OrderByTotalPnLDesc),
		BySession:      AggregateBy(trades, FieldSessionTags, OrderByTotalPnLDesc),
		DrawdownSeries: series,
		Returns:        Returns(trades, capitalBase),
		GeneratedAt:    now.UTC().Format(time.RFC3339),
	}
}
