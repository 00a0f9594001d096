package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/username/tradeledger/src/models"
)

const Unclassified = "Unclassified"

// Field names a classification a trade can be grouped by.
type Field string

const (
	FieldStrategy            Field = "strategy"
	FieldStrategyTags        Field = "strategy_tags"
	FieldSetupTags           Field = "setup_tags"
	FieldSessionTags         Field = "session_tags"
	FieldMarketConditionTags Field = "market_condition_tags"
	FieldTags                Field = "tags"
	FieldTicker              Field = "ticker"
	FieldBroker              Field = "broker"
	FieldDirection           Field = "direction"
)

var fields = []Field{
	FieldStrategy, FieldStrategyTags, FieldSetupTags, FieldSessionTags,
	FieldMarketConditionTags, FieldTags, FieldTicker, FieldBroker, FieldDirection,
}

func ParseField(s string) (Field, error) {
	for _, f := range fields {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown aggregation field %q", s)
}

// Order selects how AggregateBy orders its groups.
type Order int

const (
	// OrderByTotalPnLDesc ranks groups by total P&L, ties by name.
	OrderByTotalPnLDesc Order = iota
	// OrderInsertion keeps groups in order of first appearance.
	OrderInsertion
)

// groupKeys returns every group a trade belongs to. Tag-set fields put a
// trade in each of its tags.
func groupKeys(t models.Trade, field Field) []string {
	var values []string
	switch field {
	case FieldStrategy:
		values = []string{t.Strategy}
	case FieldStrategyTags:
		values = t.StrategyTags
	case FieldSetupTags:
		values = t.SetupTags
	case FieldSessionTags:
		values = t.SessionTags
	case FieldMarketConditionTags:
		values = t.MarketConditionTags
	case FieldTags:
		values = t.Tags
	case FieldTicker:
		values = []string{strings.ToUpper(t.Ticker)}
	case FieldBroker:
		values = []string{t.Broker}
	case FieldDirection:
		values = []string{strings.ToUpper(string(t.Direction))}
	}

	keys := models.NewTagSet(values...)
	if len(keys) == 0 {
		return []string{Unclassified}
	}
	return keys
}

// AggregateBy groups trades by field and computes per-group statistics.
func AggregateBy(trades []models.Trade, field Field, order Order) models.Breakdown {
	var names []string
	groups := make(map[string][]models.Trade)
	for _, t := range trades {
		for _, key := range groupKeys(t, field) {
			if _, ok := groups[key]; !ok {
				names = append(names, key)
			}
			groups[key] = append(groups[key], t)
		}
	}

	out := make(models.Breakdown, 0, len(names))
	for _, name := range names {
		out = append(out, groupStats(name, groups[name]))
	}
	if order == OrderByTotalPnLDesc {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].TotalPnL != out[j].TotalPnL {
				return out[i].TotalPnL > out[j].TotalPnL
			}
			return out[i].Name < out[j].Name
		})
	}
	return out
}

func groupStats(name string, trades []models.Trade) models.GroupStats {
	o := tally(trades)
	total := 0.0
	for _, t := range trades {
		total += t.PnLUSD
	}
	n := float64(len(trades))
	winRate, avg := 0.0, 0.0
	if n > 0 {
		winRate = float64(o.wins) / n * 100
		avg = total / n
	}
	return models.GroupStats{
		Name:          name,
		TotalTrades:   len(trades),
		WinningTrades: o.wins,
		LosingTrades:  o.losses,
		WinRate:       round1(winRate),
		TotalPnL:      round2(total),
		AvgPnL:        round2(avg),
		Expectancy:    Expectancy(trades),
	}
}
