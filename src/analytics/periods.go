package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/utils"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var Periods = []Period{PeriodWeek, PeriodMonth, PeriodYear}

func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods {
		if string(p) == strings.ToLower(strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q (want week, month or year)", s)
}

// FileName is the summary document name for the period type.
func (p Period) FileName() string {
	switch p {
	case PeriodWeek:
		return "weekly.json"
	case PeriodMonth:
		return "monthly.json"
	default:
		return "yearly.json"
	}
}

// PeriodKey labels the period containing d: "2025-W03", "2025-01" or "2025".
// Weeks use ISO week numbering, including the ISO year.
func PeriodKey(d time.Time, p Period) string {
	switch p {
	case PeriodWeek:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonth:
		return d.Format("2006-01")
	default:
		return d.Format("2006")
	}
}

// Summarize groups trades by the period of their entry date. Periods are
// returned in chronological order.
func Summarize(trades []models.Trade, p Period, now time.Time) models.PeriodReport {
	groups := make(map[string][]models.Trade)
	for _, t := range trades {
		d, err := utils.ParseTradeDate(t.EntryDate)
		if err != nil {
			logger.L.Warn("Skipping trade with unparseable entry date", "trade_number", t.TradeNumber, "entry_date", t.EntryDate)
			continue
		}
		key := PeriodKey(d, p)
		groups[key] = append(groups[key], t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report := models.PeriodReport{
		PeriodType:  string(p),
		Periods:     make([]models.PeriodSummary, 0, len(keys)),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	for _, k := range keys {
		report.Periods = append(report.Periods, summarizePeriod(k, groups[k]))
	}
	return report
}

func summarizePeriod(key string, trades []models.Trade) models.PeriodSummary {
	o := tally(trades)
	s := models.PeriodSummary{
		Period:        key,
		TotalTrades:   len(trades),
		WinningTrades: o.wins,
		LosingTrades:  o.losses,
		Strategies:    make(map[string]models.StrategyTally),
	}

	total := 0.0
	var best, worst *models.Trade
	for i := range trades {
		t := &trades[i]
		total += t.PnLUSD
		s.TotalVolume += t.PositionSize
		if best == nil || t.PnLUSD > best.PnLUSD {
			best = t
		}
		if worst == nil || t.PnLUSD < worst.PnLUSD {
			worst = t
		}

		name := strings.TrimSpace(t.Strategy)
		if name == "" {
			name = Unclassified
		}
		tallied := s.Strategies[name]
		tallied.Count++
		tallied.PnL = round2(tallied.PnL + t.PnLUSD)
		s.Strategies[name] = tallied
	}

	n := float64(len(trades))
	s.WinRate = round2(float64(o.wins) / n * 100)
	s.TotalPnL = round2(total)
	s.AvgPnL = round2(total / n)
	s.BestTrade = &models.TradeRef{TradeNumber: best.TradeNumber, Ticker: best.Ticker, PnL: round2(best.PnLUSD)}
	s.WorstTrade = &models.TradeRef{TradeNumber: worst.TradeNumber, Ticker: worst.Ticker, PnL: round2(worst.PnLUSD)}
	return s
}
