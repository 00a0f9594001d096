package handlers

import (
	"github.com/urfave/cli/v2"
)

// NewApp builds the command tree. Flag defaults that come from configuration
// are resolved when the command runs, so config.LoadConfig must have been
// called before Run.
func NewApp(version string, imports *ImportHandler, analytics *AnalyticsHandler, schema *SchemaHandler, brokers *BrokerHandler) *cli.App {
	return &cli.App{
		Name:    "tradeledger",
		Usage:   "reconcile broker exports into a trade store and compute analytics",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON"},
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "import a broker CSV export",
				ArgsUsage: "<csv-file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "broker", Aliases: []string{"b"}, Usage: "broker name, detected from the header when omitted"},
					dryRunFlag(),
				},
				Action: imports.HandleImport,
			},
			{
				Name:      "add-trades",
				Usage:     "merge a YAML or JSON list of trades into the store",
				ArgsUsage: "<trades-file>",
				Flags:     []cli.Flag{dryRunFlag()},
				Action:    imports.HandleAddTrades,
			},
			{
				Name:  "analyze",
				Usage: "recompute statistics and write the analytics document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "analytics output path (default from ANALYTICS_OUTPUT_PATH)"},
				},
				Action: analytics.HandleAnalyze,
			},
			{
				Name:  "migrate-schema",
				Usage: "validate or migrate the trade store schema",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "target-version", Usage: "schema version to migrate to (default current)"},
					&cli.BoolFlag{Name: "validate-only", Usage: "report problems without migrating"},
					dryRunFlag(),
				},
				Action: schema.HandleMigrate,
			},
			{
				Name:  "export",
				Usage: "export trades to CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "trades-export.csv", Usage: "CSV output path"},
					&cli.StringFlag{Name: "strategy", Usage: "only trades with this strategy"},
					&cli.StringFlag{Name: "from", Usage: "earliest entry date, YYYY-MM-DD"},
					&cli.StringFlag{Name: "to", Usage: "latest entry date, YYYY-MM-DD"},
				},
				Action: analytics.HandleExport,
			},
			{
				Name:  "summaries",
				Usage: "write weekly, monthly and yearly summaries",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "period", Aliases: []string{"p"}, Usage: "week, month, year or all"},
					&cli.StringFlag{Name: "output-dir", Usage: "summary directory (default from SUMMARIES_DIR)"},
				},
				Action: analytics.HandleSummaries,
			},
			{
				Name:   "brokers",
				Usage:  "list supported brokers",
				Action: brokers.HandleBrokers,
			},
			{
				Name:  "history",
				Usage: "list recorded import runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of runs to show, 0 for all"},
				},
				Action: brokers.HandleHistory,
			},
		},
	}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{Name: "dry-run", Usage: "show what would change without writing the store"}
}
