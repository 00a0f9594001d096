package handlers

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/username/tradeledger/src/services"
)

type SchemaHandler struct {
	schemaService services.SchemaService
}

func NewSchemaHandler(service services.SchemaService) *SchemaHandler {
	return &SchemaHandler{schemaService: service}
}

// HandleMigrate runs "migrate-schema [--target-version V] [--validate-only] [--dry-run]".
// Validation findings are reported but do not change the exit status.
func (h *SchemaHandler) HandleMigrate(c *cli.Context) error {
	req := services.MigrateRequest{
		TargetVersion: c.String("target-version"),
		ValidateOnly:  c.Bool("validate-only"),
		DryRun:        c.Bool("dry-run"),
	}
	res, err := h.schemaService.Migrate(c.Context, req)
	if err != nil {
		return exitError("migrate-schema", err)
	}
	return render(c, res, func(w io.Writer) { printMigrateResult(w, res) })
}

func printMigrateResult(w io.Writer, res *services.MigrateResult) {
	fmt.Fprintf(w, "Store schema version: %s\n", res.StoreVersion)
	fmt.Fprintf(w, "Target schema version: %s\n", res.TargetVersion)
	fmt.Fprintf(w, "Total trades: %d\n", res.TotalTrades)

	if r := res.Report; r != nil {
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  %s\n", issue)
		}
		if r.Valid() {
			fmt.Fprintf(w, "All trades conform to schema %s\n", r.TargetVersion)
		} else {
			fmt.Fprintf(w, "%d trade(s) do not conform to schema %s\n", r.InvalidTrades, r.TargetVersion)
		}
		if r.NeedsMigration {
			fmt.Fprintln(w, "Store needs migration")
		}
		return
	}

	switch {
	case !res.Changed:
		fmt.Fprintln(w, "Already at target version, nothing to do")
	case res.DryRun:
		fmt.Fprintf(w, "[dry run] Would migrate %d trade(s) (%d changed) to schema %s\n", res.TotalTrades, res.TradesUpdated, res.TargetVersion)
	default:
		fmt.Fprintf(w, "Migrated %d trade(s) (%d changed) to schema %s\n", res.TotalTrades, res.TradesUpdated, res.TargetVersion)
	}
}
