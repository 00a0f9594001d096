package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/username/tradeledger/src/analytics"
	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/security/validation"
	"github.com/username/tradeledger/src/store"
	"github.com/username/tradeledger/src/utils"
)

var exportColumns = []string{
	"trade_number", "ticker", "entry_date", "entry_time", "entry_price",
	"exit_date", "exit_time", "exit_price", "position_size", "direction",
	"broker", "strategy", "pnl_usd", "pnl_percent", "risk_reward_ratio",
	"time_in_trade", "notes",
}

type reportServiceImpl struct {
	repo *store.Repository
	now  func() time.Time
}

func NewReportService(repo *store.Repository) ReportService {
	return &reportServiceImpl{repo: repo, now: time.Now}
}

func (s *reportServiceImpl) loadTrades() ([]models.Trade, error) {
	doc, err := s.repo.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	return doc.Trades, nil
}

// Export writes the filtered trades as CSV. Nothing is written when no
// trade passes the filters.
func (s *reportServiceImpl) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	from, err := parseFilterDate(req.From, "--from")
	if err != nil {
		return nil, err
	}
	to, err := parseFilterDate(req.To, "--to")
	if err != nil {
		return nil, err
	}

	trades, err := s.loadTrades()
	if err != nil {
		return nil, err
	}
	res := &ExportResult{Total: len(trades)}

	selected := filterTrades(trades, req.Strategy, from, to)
	res.Exported = len(selected)
	if len(selected) == 0 {
		logger.L.Info("No trades to export", "total", len(trades), "strategy", req.Strategy, "from", req.From, "to", req.To)
		return res, nil
	}

	data, err := renderCSV(selected)
	if err != nil {
		return nil, err
	}
	if err := store.WriteFileAtomic(req.OutputPath, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	res.OutputPath = req.OutputPath
	logger.L.Info("Trades exported", "path", req.OutputPath, "exported", res.Exported, "total", res.Total)
	return res, nil
}

func parseFilterDate(value, flag string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := time.Parse(utils.DateFormat, strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid %s date %q (expected YYYY-MM-DD)", flag, value)
	}
	return &d, nil
}

// filterTrades applies the strategy match (case-insensitive) and the
// inclusive entry-date bounds. Trades without a parseable entry date are
// excluded once a date bound is set.
func filterTrades(trades []models.Trade, strategy string, from, to *time.Time) []models.Trade {
	var out []models.Trade
	for _, t := range trades {
		if strategy != "" && !strings.EqualFold(strings.TrimSpace(t.Strategy), strings.TrimSpace(strategy)) {
			continue
		}
		if from != nil || to != nil {
			d, err := time.Parse(utils.DateFormat, utils.DatePart(t.EntryDate))
			if err != nil {
				continue
			}
			if from != nil && d.Before(*from) {
				continue
			}
			if to != nil && d.After(*to) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func renderCSV(trades []models.Trade) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportColumns); err != nil {
		return nil, err
	}
	for _, t := range trades {
		rr := ""
		if t.RiskRewardRatio != nil {
			rr = formatNumber(*t.RiskRewardRatio)
		}
		record := []string{
			strconv.Itoa(t.TradeNumber),
			text(t.Ticker),
			text(t.EntryDate),
			text(t.EntryTime),
			formatNumber(t.EntryPrice),
			text(t.ExitDate),
			text(t.ExitTime),
			formatNumber(t.ExitPrice),
			strconv.Itoa(t.PositionSize),
			text(string(t.Direction)),
			text(t.Broker),
			text(t.Strategy),
			formatNumber(t.PnLUSD),
			formatNumber(t.PnLPercent),
			rr,
			TimeInTrade(t),
			text(t.NotesText()),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}
	return buf.Bytes(), nil
}

func text(s string) string { return validation.EscapeCell(s) }

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TimeInTrade renders the holding period as "45 minutes" or "2.5 hours".
// It is empty unless both entry and exit carry a time of day.
func TimeInTrade(t models.Trade) string {
	if strings.TrimSpace(t.EntryTime) == "" || strings.TrimSpace(t.ExitTime) == "" || strings.TrimSpace(t.ExitDate) == "" {
		return ""
	}
	entry, err1 := t.EntryTimestamp()
	exit, err2 := t.ExitTimestamp()
	if err1 != nil || err2 != nil {
		return "Unknown"
	}
	d := exit.Sub(entry)
	if d.Hours() < 1 {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}

// Summaries writes one JSON summary document per requested period type.
// "all" selects week, month and year.
func (s *reportServiceImpl) Summaries(ctx context.Context, periods []string, outputDir string) (*SummariesResult, error) {
	selected, err := parsePeriods(periods)
	if err != nil {
		return nil, err
	}
	trades, err := s.loadTrades()
	if err != nil {
		return nil, err
	}

	res := &SummariesResult{}
	now := s.now()
	for _, p := range selected {
		report := analytics.Summarize(trades, p, now)
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s summaries: %w", p, err)
		}
		path := filepath.Join(outputDir, p.FileName())
		if err := store.WriteFileAtomic(path, append(data, '\n')); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}
		logger.L.Info("Period summaries written", "period", p, "periods", len(report.Periods), "path", path)
		res.Files = append(res.Files, path)
		res.Reports = append(res.Reports, report)
	}
	return res, nil
}

func parsePeriods(values []string) ([]analytics.Period, error) {
	if len(values) == 0 {
		return analytics.Periods, nil
	}
	var out []analytics.Period
	seen := make(map[analytics.Period]bool)
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), "all") {
			return analytics.Periods, nil
		}
		p, err := analytics.ParsePeriod(v)
		if err != nil {
			return nil, err
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}
