package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Statistics is the summary block stored alongside the trades. It is always
// recomputed from the full trade set, never patched.
type Statistics struct {
	TotalTrades        int           `json:"total_trades"`
	WinningTrades      int           `json:"winning_trades"`
	LosingTrades       int           `json:"losing_trades"`
	BreakevenTrades    int           `json:"breakeven_trades"`
	WinRate            float64       `json:"win_rate"`
	TotalPnL           float64       `json:"total_pnl"`
	AvgPnL             float64       `json:"avg_pnl"`
	AvgWinner          float64       `json:"avg_winner"`
	AvgLoser           float64       `json:"avg_loser"`
	LargestWin         float64       `json:"largest_win"`
	LargestLoss        float64       `json:"largest_loss"`
	GrossProfit        float64       `json:"gross_profit"`
	GrossLoss          float64       `json:"gross_loss"`
	TotalVolume        int           `json:"total_volume"`
	Expectancy         float64       `json:"expectancy"`
	ProfitFactor       float64       `json:"profit_factor"`
	MaxWinStreak       int           `json:"max_win_streak"`
	MaxLossStreak      int           `json:"max_loss_streak"`
	MaxDrawdown        float64       `json:"max_drawdown"`
	MaxDrawdownPercent float64       `json:"max_drawdown_percent"`
	KellyCriterion     float64       `json:"kelly_criterion"`
	Returns            ReturnMetrics `json:"returns"`
	ByStrategy         Breakdown     `json:"by_strategy"`
	ByStrategyTag      Breakdown     `json:"by_strategy_tag"`
	ComputedAt         string        `json:"computed_at,omitempty"`
}

func EmptyStatistics() Statistics {
	return Statistics{
		ByStrategy:    Breakdown{},
		ByStrategyTag: Breakdown{},
	}
}

// ReturnMetrics expresses P&L relative to the account's capital base
// (starting balance plus deposits).
type ReturnMetrics struct {
	CapitalBase        float64 `json:"capital_base"`
	EndingBalance      float64 `json:"ending_balance"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	AvgReturnPercent   float64 `json:"avg_return_percent"`
	ExpectancyPercent  float64 `json:"expectancy_percent"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	AvgWinPercent      float64 `json:"avg_win_percent"`
	AvgLossPercent     float64 `json:"avg_loss_percent"`
}

type DrawdownSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// GroupStats is one row of a Breakdown.
type GroupStats struct {
	Name          string  `json:"-"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	AvgPnL        float64 `json:"avg_pnl"`
	Expectancy    float64 `json:"expectancy"`
}

// Breakdown is an ordered set of groups. It marshals as a JSON object whose
// keys appear in slice order.
type Breakdown []GroupStats

func (b Breakdown) Get(name string) (GroupStats, bool) {
	for _, g := range b {
		if g.Name == name {
			return g, true
		}
	}
	return GroupStats{}, false
}

func (b Breakdown) Names() []string {
	names := make([]string, len(b))
	for i, g := range b {
		names[i] = g.Name
	}
	return names
}

func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(g.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("breakdown: expected object, got %v", tok)
	}
	out := Breakdown{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("breakdown: unexpected key %v", keyTok)
		}
		var g GroupStats
		if err := dec.Decode(&g); err != nil {
			return fmt.Errorf("breakdown group %q: %w", name, err)
		}
		g.Name = name
		out = append(out, g)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}

// Analytics is the document consumed by the chart dashboard.
type Analytics struct {
	TotalTrades    int            `json:"total_trades"`
	Expectancy     float64        `json:"expectancy"`
	ProfitFactor   float64        `json:"profit_factor"`
	MaxWinStreak   int            `json:"max_win_streak"`
	MaxLossStreak  int            `json:"max_loss_streak"`
	MaxDrawdown    float64        `json:"max_drawdown"`
	KellyCriterion float64        `json:"kelly_criterion"`
	ByStrategy     Breakdown      `json:"by_strategy"`
	BySetup        Breakdown      `json:"by_setup"`
	BySession      Breakdown      `json:"by_session"`
	DrawdownSeries DrawdownSeries `json:"drawdown_series"`
	Returns        ReturnMetrics  `json:"returns"`
	GeneratedAt    string         `json:"generated_at"`
}

type TradeRef struct {
	TradeNumber int     `json:"trade_number"`
	Ticker      string  `json:"ticker"`
	PnL         float64 `json:"pnl"`
}

type StrategyTally struct {
	Count int     `json:"count"`
	PnL   float64 `json:"pnl"`
}

// PeriodSummary aggregates the trades entered within one week, month or year.
type PeriodSummary struct {
	Period        string                   `json:"period"`
	TotalTrades   int                      `json:"total_trades"`
	WinningTrades int                      `json:"winning_trades"`
	LosingTrades  int                      `json:"losing_trades"`
	WinRate       float64                  `json:"win_rate"`
	TotalPnL      float64                  `json:"total_pnl"`
	AvgPnL        float64                  `json:"avg_pnl"`
	BestTrade     *TradeRef                `json:"best_trade,omitempty"`
	WorstTrade    *TradeRef                `json:"worst_trade,omitempty"`
	TotalVolume   int                      `json:"total_volume"`
	Strategies    map[string]StrategyTally `json:"strategies"`
}

type PeriodReport struct {
	PeriodType  string          `json:"period_type"`
	Periods     []PeriodSummary `json:"periods"`
	GeneratedAt string          `json:"generated_at"`
}
