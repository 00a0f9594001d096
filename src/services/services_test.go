package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradeledger/src/database"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers"
	"github.com/username/tradeledger/src/processors"
	"github.com/username/tradeledger/src/schema"
	"github.com/username/tradeledger/src/store"
)

const ibkrCSV = "Symbol,Date/Time,Quantity,T. Price,Proceeds,Comm/Fee\n" +
	"AAPL,2025-01-15 09:30:00,100,150.25,-15025,-1.00\n" +
	"AAPL,2025-01-15 14:00:00,-100,155.75,15575,-1.00\n"

type testEnv struct {
	dir       string
	repo      *store.Repository
	ledger    *database.Ledger
	analytics AnalyticsService
	imports   ImportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	repo := store.NewRepository(filepath.Join(dir, "trades-index.json"), time.Second)
	ledger, err := database.Open(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	accountPath := filepath.Join(dir, "account-config.json")
	an := NewAnalyticsService(repo, accountPath, cache.New(DefaultCacheExpiration, CacheCleanupInterval), filepath.Join(dir, "analytics-cache.json"))
	imp := NewImportService(parsers.NewDefaultRegistry(), processors.NewTransactionProcessor(), processors.NewPositionMatcher(),
		repo, ledger, an, accountPath, 1<<20)
	return &testEnv{dir: dir, repo: repo, ledger: ledger, analytics: an, imports: imp}
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) saveTrades(t *testing.T, trades ...models.Trade) {
	t.Helper()
	doc := models.NewTradeStore(models.CurrentSchemaVersion)
	doc.Trades = schema.ConformAll(trades, models.CurrentSchemaVersion)
	require.NoError(t, e.repo.Save(doc))
}

func TestImportAndReimport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	csvPath := env.writeFile(t, "flex.csv", ibkrCSV)

	res, err := env.imports.Import(ctx, ImportRequest{Path: csvPath})
	require.NoError(t, err)
	assert.Equal(t, "ibkr", res.Broker)
	assert.Equal(t, 2, res.Transactions)
	assert.Equal(t, 1, res.TradesMatched)
	assert.Equal(t, 1, res.TradesAdded)
	assert.Equal(t, 1, res.TotalTrades)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Added, 1)
	assert.Equal(t, 550.0, res.Added[0].PnLUSD)

	doc, err := env.repo.Load()
	require.NoError(t, err)
	require.Len(t, doc.Trades, 1)
	assert.Equal(t, models.CurrentSchemaVersion, doc.Version)
	assert.Equal(t, 1, doc.Trades[0].TradeNumber)
	assert.NotNil(t, doc.Trades[0].StrategyTags, "new trades are conformed to the store schema")
	assert.Equal(t, 1, doc.Statistics.TotalTrades)
	assert.Equal(t, 550.0, doc.Statistics.TotalPnL)

	before, err := os.ReadFile(env.repo.Path())
	require.NoError(t, err)

	again, err := env.imports.Import(ctx, ImportRequest{Path: csvPath})
	require.NoError(t, err)
	assert.Zero(t, again.TradesAdded)
	assert.Equal(t, 1, again.TotalTrades)

	after, err := os.ReadFile(env.repo.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	runs, err := NewHistoryService(env.ledger).Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, res.RunID, runs[1].ID)
	assert.Equal(t, runs[0].FileFingerprint, runs[1].FileFingerprint)

	recorded, err := env.ledger.TransactionCount(ctx, again.RunID)
	require.NoError(t, err)
	assert.Zero(t, recorded, "identical transactions are recorded once")
}

func TestImportDryRunWritesNoStore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	csvPath := env.writeFile(t, "flex.csv", ibkrCSV)

	res, err := env.imports.Import(ctx, ImportRequest{Path: csvPath, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.TradesAdded)
	assert.False(t, env.repo.Exists())

	runs, err := env.ledger.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].DryRun)
	count, err := env.ledger.TransactionCount(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportWithNoClosedPositions(t *testing.T) {
	env := newTestEnv(t)
	csvPath := env.writeFile(t, "buys.csv", "Symbol,Date/Time,Quantity,T. Price,Proceeds,Comm/Fee\n"+
		"MSFT,2025-01-15 09:30:00,10,400,-4000,-1.00\n")

	res, err := env.imports.Import(context.Background(), ImportRequest{Path: csvPath, Broker: "IBKR"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transactions)
	assert.Zero(t, res.TradesMatched)
	assert.Zero(t, res.TradesAdded)
}

func TestImportErrors(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name    string
		content string
		broker  string
		missing bool
		wantErr []error
	}{
		{name: "missing file", missing: true, wantErr: []error{ErrInputUnreadable}},
		{name: "binary content", content: "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", wantErr: []error{ErrInvalidContent}},
		{name: "unknown header", content: "foo,bar\n1,2\n", wantErr: []error{ErrBrokerUndetected}},
		{name: "unknown broker", content: ibkrCSV, broker: "nope", wantErr: []error{parsers.ErrUnknownBroker}},
		{name: "not implemented", content: ibkrCSV, broker: "etrade", wantErr: []error{ErrParsingFailed, parsers.ErrBrokerNotImplemented}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(env.dir, "absent.csv")
			if !tt.missing {
				path = env.writeFile(t, "input.csv", tt.content)
			}
			_, err := env.imports.Import(context.Background(), ImportRequest{Path: path, Broker: tt.broker})
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
	assert.False(t, env.repo.Exists())
}

func TestImportRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t)
	small := NewImportService(parsers.NewDefaultRegistry(), processors.NewTransactionProcessor(), processors.NewPositionMatcher(),
		env.repo, nil, env.analytics, "", 10)
	path := env.writeFile(t, "flex.csv", ibkrCSV)
	_, err := small.Import(context.Background(), ImportRequest{Path: path})
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestAddTrades(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.saveTrades(t, models.Trade{TradeNumber: 7, Ticker: "AAPL", Direction: models.DirectionLong, EntryDate: "2025-02-01", EntryPrice: 1, ExitPrice: 2, PositionSize: 1, PnLUSD: 1})

	corpus := env.writeFile(t, "trades.yaml", `
- ticker: NVDA
  direction: LONG
  entry_date: "2025-02-10"
  exit_date: "2025-02-10"
  entry_price: 100
  exit_price: 110
  position_size: 5
  strategy: Breakout
  screenshot: chart.png
- direction: SHORT
  entry_date: "2025-02-11"
  position_size: 1
- ticker: aapl
  direction: LONG
  entry_date: "2025-02-01"
  entry_price: 5
  exit_price: 6
  position_size: 1
`)

	res, err := env.imports.AddTrades(ctx, corpus, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Transactions)
	assert.Equal(t, 1, res.TradesRejected)
	assert.Equal(t, 1, res.TradesAdded, "same-day AAPL is treated as already present")

	doc, err := env.repo.Load()
	require.NoError(t, err)
	require.Len(t, doc.Trades, 2)
	nvda := doc.Trades[1]
	assert.Equal(t, 8, nvda.TradeNumber)
	assert.Equal(t, 50.0, nvda.PnLUSD)
	assert.Equal(t, 10.0, nvda.PnLPercent)
	assert.Equal(t, models.NewTagSet("Breakout"), nvda.StrategyTags)
	assert.JSONEq(t, `"chart.png"`, string(nvda.Extra["screenshot"]))
}

func TestAddTradesJSONAndDryRun(t *testing.T) {
	env := newTestEnv(t)
	corpus := env.writeFile(t, "trades.json", `{"trades": [{"ticker": "TSLA", "direction": "SHORT", "entry_date": "2025-03-03", "entry_price": 200, "exit_price": 190, "position_size": 2}]}`)

	res, err := env.imports.AddTrades(context.Background(), corpus, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TradesAdded)
	require.Len(t, res.Added, 1)
	assert.Equal(t, 20.0, res.Added[0].PnLUSD)
	assert.False(t, env.repo.Exists())
}

func TestAddTradesBadInput(t *testing.T) {
	env := newTestEnv(t)
	for name, content := range map[string]string{
		"empty":      "",
		"scalar":     "just text",
		"no trades":  "version: 1.1\n",
		"bad record": "- [1, 2]\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := env.writeFile(t, "bad.yaml", content)
			_, err := env.imports.AddTrades(context.Background(), path, false)
			assert.ErrorIs(t, err, ErrParsingFailed)
		})
	}
	_, err := env.imports.AddTrades(context.Background(), filepath.Join(env.dir, "missing.yaml"), false)
	assert.ErrorIs(t, err, ErrInputUnreadable)
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	out := filepath.Join(env.dir, "charts", "analytics-data.json")

	empty := env.analytics.Analyze(ctx, out)
	assert.Empty(t, empty.Warnings)
	assert.False(t, empty.StoreUpdated)
	assert.Zero(t, empty.Statistics.TotalTrades)
	assert.FileExists(t, out)

	env.saveTrades(t,
		models.Trade{TradeNumber: 1, Ticker: "A", Direction: models.DirectionLong, EntryDate: "2025-01-02", PositionSize: 1, PnLUSD: 100},
		models.Trade{TradeNumber: 2, Ticker: "B", Direction: models.DirectionLong, EntryDate: "2025-01-03", PositionSize: 1, PnLUSD: -40},
	)
	first := env.analytics.Analyze(ctx, out)
	assert.Empty(t, first.Warnings)
	assert.True(t, first.StoreUpdated)
	assert.Equal(t, 2, first.Statistics.TotalTrades)
	assert.Equal(t, 60.0, first.Statistics.TotalPnL)
	assert.Equal(t, 2.5, first.Statistics.ProfitFactor)
	assert.Equal(t, 1060.0, first.Statistics.Returns.EndingBalance)

	doc, err := env.repo.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Statistics.TotalTrades)

	var written models.Analytics
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, []float64{0, -40}, written.DrawdownSeries.Values)

	second := env.analytics.Analyze(ctx, out)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Statistics.TotalPnL, second.Statistics.TotalPnL)
}

func TestSnapshotCacheCarriesAcrossRuns(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cachePath := filepath.Join(env.dir, "analytics-cache.json")
	accountPath := filepath.Join(env.dir, "account-config.json")
	out := filepath.Join(env.dir, "analytics.json")

	_, err := env.imports.Import(ctx, ImportRequest{Path: env.writeFile(t, "flex.csv", ibkrCSV)})
	require.NoError(t, err)
	require.FileExists(t, cachePath)

	// analyze in a later process reuses the snapshot import computed
	next := NewAnalyticsService(env.repo, accountPath, OpenReportCache(cachePath), cachePath)
	res := next.Analyze(ctx, out)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, res.Statistics.TotalTrades)
	assert.Equal(t, 550.0, res.Statistics.TotalPnL)
	assert.NotEmpty(t, res.Statistics.ComputedAt)

	cold := NewAnalyticsService(env.repo, accountPath, OpenReportCache(""), "")
	assert.False(t, cold.Analyze(ctx, out).FromCache)
}

func TestOpenReportCacheIgnoresBadFiles(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o644))
	assert.Zero(t, OpenReportCache(garbage).ItemCount())

	expired := filepath.Join(dir, "expired.json")
	require.NoError(t, os.WriteFile(expired, []byte(`{"res_snapshot_x": {"snapshot": {}, "expiration": 1}}`), 0o644))
	assert.Zero(t, OpenReportCache(expired).ItemCount())

	assert.Zero(t, OpenReportCache(filepath.Join(dir, "missing.json")).ItemCount())
}

func TestAnalyzeCorruptStore(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.repo.Path(), []byte("{not json"), 0o644))
	out := filepath.Join(env.dir, "analytics.json")

	res := env.analytics.Analyze(context.Background(), out)
	assert.NotEmpty(t, res.Warnings)
	assert.False(t, res.StoreUpdated)
	assert.Zero(t, res.Statistics.TotalTrades)
	assert.FileExists(t, out)
}

const legacyStore = `{
  "trades": [
    {"trade_number": 1, "ticker": "AAPL", "direction": "LONG", "entry_date": "2025-01-02", "entry_price": 100, "exit_date": "2025-01-02", "exit_price": 110, "position_size": 10, "pnl_usd": 100, "pnl_percent": 10, "strategy": "Breakout"}
  ],
  "statistics": {}
}
`

func TestMigrateSchema(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewSchemaService(env.repo)

	_, err := svc.Migrate(ctx, MigrateRequest{})
	assert.ErrorIs(t, err, ErrInputUnreadable)

	require.NoError(t, os.WriteFile(env.repo.Path(), []byte(legacyStore), 0o644))

	report, err := svc.Migrate(ctx, MigrateRequest{ValidateOnly: true})
	require.NoError(t, err)
	require.NotNil(t, report.Report)
	assert.True(t, report.Report.NeedsMigration)
	assert.Equal(t, "1.0", report.StoreVersion)

	dry, err := svc.Migrate(ctx, MigrateRequest{DryRun: true})
	require.NoError(t, err)
	assert.True(t, dry.Changed)
	assert.Equal(t, 1, dry.TradesUpdated)
	data, err := os.ReadFile(env.repo.Path())
	require.NoError(t, err)
	assert.Equal(t, legacyStore, string(data), "dry run leaves the file alone")

	res, err := svc.Migrate(ctx, MigrateRequest{})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	doc, err := env.repo.Load()
	require.NoError(t, err)
	assert.Equal(t, models.CurrentSchemaVersion, doc.Version)
	assert.Equal(t, models.NewTagSet("Breakout"), doc.Trades[0].StrategyTags)

	migrated, err := os.ReadFile(env.repo.Path())
	require.NoError(t, err)
	again, err := svc.Migrate(ctx, MigrateRequest{})
	require.NoError(t, err)
	assert.False(t, again.Changed)
	unchanged, err := os.ReadFile(env.repo.Path())
	require.NoError(t, err)
	assert.Equal(t, string(migrated), string(unchanged))

	_, err = svc.Migrate(ctx, MigrateRequest{TargetVersion: "9.9"})
	assert.ErrorIs(t, err, schema.ErrNoMigrationPath)
}

const scalarTagStore = `{
  "version": "1.1",
  "trades": [
    {"trade_number": 1, "ticker": "MSFT", "direction": "LONG", "entry_date": "2025-01-02", "entry_price": 100, "exit_date": "2025-01-02", "exit_price": 110, "position_size": 10, "pnl_usd": 100, "pnl_percent": 10, "strategy": "Breakout", "tags": "scalp", "strategy_tags": ["Breakout"], "setup_tags": [], "session_tags": [], "market_condition_tags": [], "notes": ""}
  ],
  "statistics": {}
}
`

func TestStoreWithScalarTagsStaysUsable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.repo.Path(), []byte(scalarTagStore), 0o644))

	report, err := NewSchemaService(env.repo).Migrate(ctx, MigrateRequest{ValidateOnly: true})
	require.NoError(t, err)
	require.Len(t, report.Report.Issues, 1)
	assert.Equal(t, "tags", report.Report.Issues[0].Field)

	res, err := env.imports.Import(ctx, ImportRequest{Path: env.writeFile(t, "flex.csv", ibkrCSV)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TradesAdded)
	assert.Equal(t, 2, res.TotalTrades)

	analyzed := env.analytics.Analyze(ctx, filepath.Join(env.dir, "analytics.json"))
	assert.Empty(t, analyzed.Warnings)
	assert.Equal(t, 2, analyzed.Statistics.TotalTrades)
	assert.Equal(t, 650.0, analyzed.Statistics.TotalPnL)

	doc, err := env.repo.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TagSet{"scalp"}, doc.Trades[0].Tags)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	notes := "=HYPERLINK(\"http://x\")"
	rr := 2.5
	env.saveTrades(t,
		models.Trade{TradeNumber: 1, Ticker: "AAPL", Direction: models.DirectionLong, EntryDate: "2025-01-02", EntryTime: "09:30", ExitDate: "2025-01-02", ExitTime: "09:45", EntryPrice: 100, ExitPrice: 95, PositionSize: 10, Strategy: "Breakout", PnLUSD: -50, PnLPercent: -5, Notes: &notes, RiskRewardRatio: &rr},
		models.Trade{TradeNumber: 2, Ticker: "TSLA", Direction: models.DirectionLong, EntryDate: "2025-02-10", EntryPrice: 200, ExitPrice: 210, PositionSize: 1, Strategy: "dip", PnLUSD: 10, PnLPercent: 5},
		models.Trade{TradeNumber: 3, Ticker: "NVDA", Direction: models.DirectionLong, EntryDate: "garbage", PositionSize: 1, Strategy: "breakout"},
	)
	svc := NewReportService(env.repo)
	out := filepath.Join(env.dir, "export.csv")

	res, err := svc.Export(ctx, ExportRequest{OutputPath: out, Strategy: "BREAKOUT", To: "2025-01-31"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Exported)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "trade_number,ticker,entry_date,entry_time,entry_price,exit_date,exit_time,exit_price,position_size,direction,broker,strategy,pnl_usd,pnl_percent,risk_reward_ratio,time_in_trade,notes\n")
	assert.Contains(t, content, "1,AAPL,2025-01-02,09:30,100,2025-01-02,09:45,95,10,LONG,,Breakout,-50,-5,2.5,15 minutes,")
	assert.Contains(t, content, `"'=HYPERLINK(""http://x"")"`)

	all, err := svc.Export(ctx, ExportRequest{OutputPath: out, Strategy: "breakout"})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Exported, "no date bound keeps unparseable dates")

	none, err := svc.Export(ctx, ExportRequest{OutputPath: filepath.Join(env.dir, "none.csv"), From: "2030-01-01"})
	require.NoError(t, err)
	assert.Zero(t, none.Exported)
	assert.NoFileExists(t, filepath.Join(env.dir, "none.csv"))

	_, err = svc.Export(ctx, ExportRequest{OutputPath: out, From: "01/02/2025"})
	assert.Error(t, err)
}

func TestTimeInTrade(t *testing.T) {
	tests := []struct {
		name  string
		trade models.Trade
		want  string
	}{
		{"minutes", models.Trade{EntryDate: "2025-01-02", EntryTime: "09:30", ExitDate: "2025-01-02", ExitTime: "10:10"}, "40 minutes"},
		{"hours", models.Trade{EntryDate: "2025-01-02", EntryTime: "09:30:00", ExitDate: "2025-01-02", ExitTime: "12:00:00"}, "2.5 hours"},
		{"overnight", models.Trade{EntryDate: "2025-01-02", EntryTime: "15:00", ExitDate: "2025-01-03", ExitTime: "09:00"}, "18.0 hours"},
		{"no times", models.Trade{EntryDate: "2025-01-02", ExitDate: "2025-01-02"}, ""},
		{"bad date", models.Trade{EntryDate: "someday", EntryTime: "09:00", ExitDate: "2025-01-02", ExitTime: "10:00"}, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeInTrade(tt.trade))
		})
	}
}

func TestSummaries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.saveTrades(t,
		models.Trade{TradeNumber: 1, Ticker: "A", Direction: models.DirectionLong, EntryDate: "2025-01-13", PositionSize: 1, PnLUSD: 10},
		models.Trade{TradeNumber: 2, Ticker: "B", Direction: models.DirectionLong, EntryDate: "2025-02-03", PositionSize: 1, PnLUSD: -5},
	)
	svc := NewReportService(env.repo)
	dir := filepath.Join(env.dir, "summaries")

	res, err := svc.Summaries(ctx, []string{"all"}, dir)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	for _, name := range []string{"weekly.json", "monthly.json", "yearly.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	var monthly models.PeriodReport
	data, err := os.ReadFile(filepath.Join(dir, "monthly.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &monthly))
	assert.Equal(t, "month", monthly.PeriodType)
	require.Len(t, monthly.Periods, 2)
	assert.Equal(t, "2025-01", monthly.Periods[0].Period)

	one, err := svc.Summaries(ctx, []string{"week", "week"}, dir)
	require.NoError(t, err)
	assert.Len(t, one.Files, 1)

	_, err = svc.Summaries(ctx, []string{"decade"}, dir)
	assert.Error(t, err)
}

func TestHistoryWithoutLedger(t *testing.T) {
	_, err := NewHistoryService(nil).Runs(context.Background(), 5)
	assert.Error(t, err)
}
