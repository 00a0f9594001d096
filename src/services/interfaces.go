package services

import (
	"context"

	"github.com/username/tradeledger/src/database"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/schema"
)

// ImportRequest describes one broker CSV import.
type ImportRequest struct {
	Path   string
	Broker string // empty means detect from the header
	DryRun bool
}

// ImportResult summarizes an import or a corpus merge.
type ImportResult struct {
	RunID          string         `json:"run_id,omitempty"`
	Broker         string         `json:"broker"`
	FileName       string         `json:"file_name"`
	Transactions   int            `json:"transactions"`
	TradesMatched  int            `json:"trades_matched"`
	TradesRejected int            `json:"trades_rejected"`
	TradesAdded    int            `json:"trades_added"`
	TotalTrades    int            `json:"total_trades"`
	DryRun         bool           `json:"dry_run"`
	Added          []models.Trade `json:"added"`
}

// AnalyzeResult reports what analyze produced. Warnings carry the
// non-fatal problems (unreadable store, unwritable output).
type AnalyzeResult struct {
	Statistics   models.Statistics `json:"statistics"`
	OutputPath   string            `json:"output_path"`
	StoreUpdated bool              `json:"store_updated"`
	FromCache    bool              `json:"from_cache"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// Snapshot is the pair of derived documents computed for one trade set.
type Snapshot struct {
	Statistics models.Statistics
	Analytics  models.Analytics
}

type MigrateRequest struct {
	TargetVersion string
	ValidateOnly  bool
	DryRun        bool
}

type MigrateResult struct {
	StoreVersion  string         `json:"store_version"`
	TargetVersion string         `json:"target_version"`
	TotalTrades   int            `json:"total_trades"`
	Changed       bool           `json:"changed"`
	TradesUpdated int            `json:"trades_updated"`
	DryRun        bool           `json:"dry_run"`
	Report        *schema.Report `json:"report,omitempty"`
}

type ExportRequest struct {
	OutputPath string
	Strategy   string
	From       string // YYYY-MM-DD, inclusive
	To         string // YYYY-MM-DD, inclusive
}

type ExportResult struct {
	OutputPath string `json:"output_path"`
	Exported   int    `json:"exported"`
	Total      int    `json:"total"`
}

type SummariesResult struct {
	Files   []string              `json:"files"`
	Reports []models.PeriodReport `json:"-"`
}

// ImportService brings trades into the store.
type ImportService interface {
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
	AddTrades(ctx context.Context, path string, dryRun bool) (*ImportResult, error)
}

// AnalyticsService computes and caches the derived statistics documents.
type AnalyticsService interface {
	Compute(trades []models.Trade, capitalBase float64) Snapshot
	Analyze(ctx context.Context, outputPath string) *AnalyzeResult
}

type SchemaService interface {
	Migrate(ctx context.Context, req MigrateRequest) (*MigrateResult, error)
}

// ReportService renders the store into export formats.
type ReportService interface {
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
	Summaries(ctx context.Context, periods []string, outputDir string) (*SummariesResult, error)
}

type HistoryService interface {
	Runs(ctx context.Context, limit int) ([]database.ImportRun, error)
}
