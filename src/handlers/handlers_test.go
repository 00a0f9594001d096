package handlers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/username/tradeledger/src/database"
	"github.com/username/tradeledger/src/parsers"
	"github.com/username/tradeledger/src/processors"
	"github.com/username/tradeledger/src/services"
	"github.com/username/tradeledger/src/store"
)

const ibkrCSV = "Symbol,Date/Time,Quantity,T. Price,Proceeds,Comm/Fee\n" +
	"AAPL,2025-01-15 09:30:00,100,150.25,-15025,-1.00\n" +
	"AAPL,2025-01-15 14:00:00,-100,155.75,15575,-1.00\n"

type harness struct {
	dir string
	out *bytes.Buffer
	app *cli.App
}

func newHarness(t *testing.T, withLedger bool) *harness {
	t.Helper()
	dir := t.TempDir()
	registry := parsers.NewDefaultRegistry()
	repo := store.NewRepository(filepath.Join(dir, "trades-index.json"), time.Second)
	accountPath := filepath.Join(dir, "account-config.json")

	var ledger *database.Ledger
	if withLedger {
		var err error
		ledger, err = database.Open(filepath.Join(dir, "audit.db"))
		require.NoError(t, err)
		t.Cleanup(func() { ledger.Close() })
	}

	an := services.NewAnalyticsService(repo, accountPath, cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval), "")
	imp := services.NewImportService(registry, processors.NewTransactionProcessor(), processors.NewPositionMatcher(),
		repo, ledger, an, accountPath, 1<<20)

	app := NewApp("test",
		NewImportHandler(imp),
		NewAnalyticsHandler(an, services.NewReportService(repo)),
		NewSchemaHandler(services.NewSchemaService(repo)),
		NewBrokerHandler(registry, services.NewHistoryService(ledger)),
	)
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return &harness{dir: dir, out: out, app: app}
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	return h.app.Run(append([]string{"tradeledger"}, args...))
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var coder cli.ExitCoder
	require.ErrorAs(t, err, &coder)
	return coder.ExitCode()
}

func TestImportAnalyzeExportFlow(t *testing.T) {
	h := newHarness(t, true)
	csvPath := h.path("flex.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(ibkrCSV), 0o644))

	require.NoError(t, h.run("import", "--dry-run", csvPath))
	assert.Contains(t, h.out.String(), "[dry run] Broker: ibkr")
	assert.Contains(t, h.out.String(), "Would add 1 new trade(s)")
	assert.NoFileExists(t, h.path("trades-index.json"))

	require.NoError(t, h.run("import", csvPath))
	assert.Contains(t, h.out.String(), "Added 1 new trade(s); store holds 1")
	assert.Contains(t, h.out.String(), "#1 2025-01-15 AAPL LONG x100 pnl 550.00")
	assert.FileExists(t, h.path("trades-index.json"))

	require.NoError(t, h.run("--json", "import", csvPath))
	var res services.ImportResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	assert.Zero(t, res.TradesAdded)
	assert.Equal(t, 1, res.TotalTrades)

	analyticsPath := h.path("charts/analytics-data.json")
	require.NoError(t, h.run("analyze", "--output", analyticsPath))
	assert.Contains(t, h.out.String(), "Trades: 1 (won 1, lost 0, breakeven 0)")
	assert.Contains(t, h.out.String(), "Total P&L: 550.00")
	assert.FileExists(t, analyticsPath)

	exportPath := h.path("export.csv")
	require.NoError(t, h.run("export", "--output", exportPath))
	assert.Contains(t, h.out.String(), "Exported 1 of 1 trade(s)")
	assert.FileExists(t, exportPath)

	require.NoError(t, h.run("export", "--output", h.path("none.csv"), "--strategy", "Scalp"))
	assert.Contains(t, h.out.String(), "No trades to export (1 in store)")
	assert.NoFileExists(t, h.path("none.csv"))

	require.NoError(t, h.run("history"))
	assert.Contains(t, h.out.String(), "flex.csv")
	assert.Contains(t, h.out.String(), "(dry run)")

	require.NoError(t, h.run("--json", "history", "--limit", "1"))
	var runs []database.ImportRun
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "ibkr", runs[0].Broker)
}

func TestFlagsAfterFileArgument(t *testing.T) {
	h := newHarness(t, false)
	csvPath := h.path("flex.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(ibkrCSV), 0o644))

	require.NoError(t, h.run("import", csvPath, "--dry-run"))
	assert.Contains(t, h.out.String(), "[dry run] Broker: ibkr")
	assert.NoFileExists(t, h.path("trades-index.json"))

	err := h.run("import", csvPath, "--broker", "fidelity")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
	assert.NoFileExists(t, h.path("trades-index.json"))

	err = h.run("import", csvPath, "--bogus")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(t, err))

	err = h.run("import", csvPath, "other.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected arguments")

	require.NoError(t, h.run("import", csvPath, "--broker=ibkr"))
	assert.Contains(t, h.out.String(), "Added 1 new trade(s)")

	corpus := h.path("manual.yaml")
	require.NoError(t, os.WriteFile(corpus, []byte("- ticker: NVDA\n  direction: LONG\n  entry_date: \"2025-02-03\"\n  exit_date: \"2025-02-03\"\n  entry_price: 100\n  exit_price: 110\n  position_size: 5\n"), 0o644))
	require.NoError(t, h.run("add-trades", corpus, "--dry-run"))
	assert.Contains(t, h.out.String(), "Would add 1 new trade(s); store would hold 2")
	doc, err := os.ReadFile(h.path("trades-index.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(doc), "NVDA")
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t, false)
	png := h.path("image.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))
	csvPath := h.path("flex.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(ibkrCSV), 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing argument", []string{"import"}, "missing CSV file"},
		{"missing file", []string{"import", h.path("nope.csv")}, "cannot read input"},
		{"binary file", []string{"import", png}, "input is not a CSV text export"},
		{"unknown broker", []string{"import", "--broker", "nope", csvPath}, "unknown broker"},
		{"unimplemented broker", []string{"import", "--broker", "etrade", csvPath}, "not implemented"},
		{"missing corpus", []string{"add-trades"}, "missing trade file"},
		{"no store to migrate", []string{"migrate-schema"}, "cannot read input"},
		{"bad export date", []string{"export", "--output", h.path("x.csv"), "--from", "01/02/2025"}, "export"},
		{"bad period", []string{"summaries", "--period", "decade", "--output-dir", h.path("s")}, "summaries"},
		{"history without ledger", []string{"history"}, "history"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, 1, exitCode(t, err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyzeWithoutStoreSucceeds(t *testing.T) {
	h := newHarness(t, false)
	out := h.path("analytics.json")
	require.NoError(t, h.run("analyze", "--output", out))
	assert.Contains(t, h.out.String(), "Trades: 0")
	assert.FileExists(t, out)
}

func TestMigrateSchemaValidateOnly(t *testing.T) {
	h := newHarness(t, false)
	csvPath := h.path("flex.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(ibkrCSV), 0o644))
	require.NoError(t, h.run("import", csvPath))

	require.NoError(t, h.run("migrate-schema", "--validate-only"))
	assert.Contains(t, h.out.String(), "Total trades: 1")
	assert.Contains(t, h.out.String(), "All trades conform to schema")

	require.NoError(t, h.run("migrate-schema"))
	assert.Contains(t, h.out.String(), "Already at target version")
}

func TestSummariesCommand(t *testing.T) {
	h := newHarness(t, false)
	csvPath := h.path("flex.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(ibkrCSV), 0o644))
	require.NoError(t, h.run("import", csvPath))

	dir := h.path("summaries")
	require.NoError(t, h.run("summaries", "--period", "month", "--output-dir", dir))
	assert.Contains(t, h.out.String(), "month: 1 period(s)")
	assert.FileExists(t, filepath.Join(dir, "monthly.json"))
}

func TestBrokersListing(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.run("brokers"))
	out := h.out.String()
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `ibkr\s+Interactive Brokers\s+supported`, out)
	assert.Regexp(t, `etrade\s+.*not implemented`, out)

	require.NoError(t, h.run("--json", "brokers"))
	var infos []brokerInfo
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &infos))
	require.Len(t, infos, len(parsers.NewDefaultRegistry().Names()))
	assert.Equal(t, "ibkr", infos[0].Name)
	assert.True(t, infos[0].Implemented)
}
