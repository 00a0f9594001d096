// Package analytics computes trading performance metrics over a trade set.
// Every function is total: empty or degenerate input yields finite zeros.
// Inputs are never re-sorted or modified; callers order them with
// SortForAnalysis first.
package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/utils"
)

// ProfitFactorCap stands in for an infinite profit factor (profits with no
// losses) and bounds every computed value.
const ProfitFactorCap = 999.99

// SortForAnalysis returns a copy ordered by exit date, falling back to the
// entry date. Equal keys keep their input order.
func SortForAnalysis(trades []models.Trade) []models.Trade {
	sorted := append([]models.Trade(nil), trades...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i]) < sortKey(sorted[j])
	})
	return sorted
}

func sortKey(t models.Trade) string {
	if strings.TrimSpace(t.ExitDate) != "" {
		return utils.DatePart(t.ExitDate) + " " + t.ExitTime
	}
	return utils.DatePart(t.EntryDate) + " " + t.EntryTime
}

type outcome struct {
	wins, losses, breakevens int
	grossProfit, grossLoss   float64 // grossLoss is a positive magnitude
}

func tally(trades []models.Trade) outcome {
	var o outcome
	for _, t := range trades {
		switch {
		case t.PnLUSD > 0:
			o.wins++
			o.grossProfit += t.PnLUSD
		case t.PnLUSD < 0:
			o.losses++
			o.grossLoss += -t.PnLUSD
		default:
			o.breakevens++
		}
	}
	return o
}

func (o outcome) avgWin() float64  { return utils.SafeDiv(o.grossProfit, float64(o.wins)) }
func (o outcome) avgLoss() float64 { return utils.SafeDiv(o.grossLoss, float64(o.losses)) }

// Expectancy is win_rate*avg_win - loss_rate*avg_loss in dollars per trade.
// Breakeven trades count toward the total.
func Expectancy(trades []models.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	o := tally(trades)
	n := float64(len(trades))
	winRate := float64(o.wins) / n
	lossRate := float64(o.losses) / n
	return round2(winRate*o.avgWin() - lossRate*o.avgLoss())
}

// ProfitFactor is gross profit over gross loss. It is 0 when there is
// neither, and ProfitFactorCap when there are profits but no losses.
func ProfitFactor(trades []models.Trade) float64 {
	o := tally(trades)
	if o.grossLoss == 0 {
		if o.grossProfit == 0 {
			return 0
		}
		return ProfitFactorCap
	}
	return math.Min(round2(o.grossProfit/o.grossLoss), ProfitFactorCap)
}

// Streaks returns the longest runs of winning and losing trades. A
// breakeven trade ends both runs.
func Streaks(trades []models.Trade) (maxWin, maxLoss int) {
	win, loss := 0, 0
	for _, t := range trades {
		switch {
		case t.PnLUSD > 0:
			win++
			loss = 0
		case t.PnLUSD < 0:
			loss++
			win = 0
		default:
			win, loss = 0, 0
		}
		if win > maxWin {
			maxWin = win
		}
		if loss > maxLoss {
			maxLoss = loss
		}
	}
	return maxWin, maxLoss
}

// Drawdown returns, per trade, the distance of cumulative P&L below its
// running peak. The peak starts at 0.
func Drawdown(trades []models.Trade) models.DrawdownSeries {
	series := models.DrawdownSeries{
		Labels: make([]string, 0, len(trades)),
		Values: make([]float64, 0, len(trades)),
	}
	cumulative, peak := 0.0, 0.0
	for _, t := range trades {
		cumulative += t.PnLUSD
		if cumulative > peak {
			peak = cumulative
		}
		series.Labels = append(series.Labels, drawdownLabel(t))
		series.Values = append(series.Values, round2(cumulative-peak))
	}
	return series
}

func drawdownLabel(t models.Trade) string {
	date := t.ExitDate
	if strings.TrimSpace(date) == "" {
		date = t.EntryDate
	}
	d, err := utils.ParseTradeDate(date)
	if err != nil {
		return date
	}
	return d.Format("01/02")
}

// MaxDrawdown is the most negative drawdown value, or 0.
func MaxDrawdown(trades []models.Trade) float64 {
	return minValue(Drawdown(trades).Values)
}

func minValue(values []float64) float64 {
	min := 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}

// KellyCriterion returns the Kelly fraction as a percentage,
// W - (1-W)/R with R = avg_win/avg_loss. It is 0 without both wins and
// losses.
func KellyCriterion(trades []models.Trade) float64 {
	o := tally(trades)
	if o.wins == 0 || o.losses == 0 || o.avgLoss() == 0 {
		return 0
	}
	w := float64(o.wins) / float64(len(trades))
	r := o.avgWin() / o.avgLoss()
	return round1((w - (1-w)/r) * 100)
}

// round2 rounds to cents and folds negative zero into zero.
func round2(v float64) float64 {
	r := utils.RoundFloat(v, 2)
	if r == 0 {
		return 0
	}
	return r
}

func round1(v float64) float64 {
	r := utils.RoundFloat(v, 1)
	if r == 0 {
		return 0
	}
	return r
}
