package handlers

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/username/tradeledger/src/config"
	"github.com/username/tradeledger/src/services"
)

type AnalyticsHandler struct {
	analyticsService services.AnalyticsService
	reportService    services.ReportService
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService, reportService services.ReportService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		reportService:    reportService,
	}
}

// HandleAnalyze always exits 0; problems are reported as warnings.
func (h *AnalyticsHandler) HandleAnalyze(c *cli.Context) error {
	output := c.String("output")
	if output == "" && config.Cfg != nil {
		output = config.Cfg.AnalyticsOutputPath
	}
	res := h.analyticsService.Analyze(c.Context, output)
	return render(c, res, func(w io.Writer) {
		s := res.Statistics
		fmt.Fprintf(w, "Trades: %d (won %d, lost %d, breakeven %d)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades, s.BreakevenTrades)
		fmt.Fprintf(w, "Win rate: %.2f%%\n", s.WinRate)
		fmt.Fprintf(w, "Total P&L: %.2f (avg %.2f)\n", s.TotalPnL, s.AvgPnL)
		fmt.Fprintf(w, "Expectancy: %.2f  Profit factor: %.2f  Kelly: %.1f%%\n", s.Expectancy, s.ProfitFactor, s.KellyCriterion)
		fmt.Fprintf(w, "Max drawdown: %.2f (%.2f%%)\n", s.MaxDrawdown, s.Returns.MaxDrawdownPercent)
		fmt.Fprintf(w, "Streaks: %d wins / %d losses\n", s.MaxWinStreak, s.MaxLossStreak)
		fmt.Fprintf(w, "Return on %.2f: %.2f%%\n", s.Returns.CapitalBase, s.Returns.TotalReturnPercent)
		fmt.Fprintf(w, "Analytics written to %s\n", res.OutputPath)
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warning)
		}
	})
}

// HandleExport runs "export [--output] [--strategy] [--from] [--to]".
func (h *AnalyticsHandler) HandleExport(c *cli.Context) error {
	req := services.ExportRequest{
		OutputPath: c.String("output"),
		Strategy:   c.String("strategy"),
		From:       c.String("from"),
		To:         c.String("to"),
	}
	res, err := h.reportService.Export(c.Context, req)
	if err != nil {
		return exitError("export", err)
	}
	return render(c, res, func(w io.Writer) {
		if res.Exported == 0 {
			fmt.Fprintf(w, "No trades to export (%d in store)\n", res.Total)
			return
		}
		fmt.Fprintf(w, "Exported %d of %d trade(s) to %s\n", res.Exported, res.Total, res.OutputPath)
	})
}

// HandleSummaries runs "summaries [--period week|month|year|all] [--output-dir]".
func (h *AnalyticsHandler) HandleSummaries(c *cli.Context) error {
	dir := c.String("output-dir")
	if dir == "" && config.Cfg != nil {
		dir = config.Cfg.SummariesDir
	}
	res, err := h.reportService.Summaries(c.Context, c.StringSlice("period"), dir)
	if err != nil {
		return exitError("summaries", err)
	}
	return render(c, res, func(w io.Writer) {
		for i, path := range res.Files {
			fmt.Fprintf(w, "%s: %d period(s) -> %s\n", res.Reports[i].PeriodType, len(res.Reports[i].Periods), path)
		}
	})
}
