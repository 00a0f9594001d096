package handlers

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/services"
)

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{importService: service}
}

// HandleImport runs "import <csv-file> [--broker NAME] [--dry-run]".
func (h *ImportHandler) HandleImport(c *cli.Context) error {
	path, err := positionalArg(c, "CSV file")
	if err != nil {
		return err
	}
	req := services.ImportRequest{
		Path:   path,
		Broker: c.String("broker"),
		DryRun: c.Bool("dry-run"),
	}
	logger.L.Info("Processing import request", "path", path, "broker", req.Broker)

	res, err := h.importService.Import(c.Context, req)
	if err != nil {
		return exitError("import", err)
	}
	return render(c, res, func(w io.Writer) { printImportResult(w, res) })
}

// HandleAddTrades runs "add-trades <yaml|json> [--dry-run]".
func (h *ImportHandler) HandleAddTrades(c *cli.Context) error {
	path, err := positionalArg(c, "trade file")
	if err != nil {
		return err
	}
	res, err := h.importService.AddTrades(c.Context, path, c.Bool("dry-run"))
	if err != nil {
		return exitError("add-trades", err)
	}
	return render(c, res, func(w io.Writer) { printImportResult(w, res) })
}

func printImportResult(w io.Writer, res *services.ImportResult) {
	prefix := ""
	if res.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(w, "%sBroker: %s\n", prefix, res.Broker)
	fmt.Fprintf(w, "%sFile: %s\n", prefix, res.FileName)
	fmt.Fprintf(w, "%sRecords read: %d\n", prefix, res.Transactions)
	fmt.Fprintf(w, "%sTrades matched: %d (rejected %d)\n", prefix, res.TradesMatched, res.TradesRejected)
	if res.DryRun {
		fmt.Fprintf(w, "%sWould add %d new trade(s); store would hold %d\n", prefix, res.TradesAdded, res.TotalTrades)
	} else {
		fmt.Fprintf(w, "Added %d new trade(s); store holds %d\n", res.TradesAdded, res.TotalTrades)
	}
	for _, t := range res.Added {
		fmt.Fprintf(w, "  #%d %s %s %s x%d pnl %.2f\n", t.TradeNumber, t.EntryDate, t.Ticker, t.Direction, t.PositionSize, t.PnLUSD)
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", res.RunID)
	}
}
