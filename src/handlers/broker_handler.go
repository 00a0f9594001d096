package handlers

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/username/tradeledger/src/parsers"
	"github.com/username/tradeledger/src/services"
)

type BrokerHandler struct {
	registry       *parsers.Registry
	historyService services.HistoryService
}

func NewBrokerHandler(registry *parsers.Registry, historyService services.HistoryService) *BrokerHandler {
	return &BrokerHandler{registry: registry, historyService: historyService}
}

type brokerInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Implemented bool     `json:"implemented"`
	Formats     []string `json:"formats,omitempty"`
}

// HandleBrokers lists registered adapters in detection order.
func (h *BrokerHandler) HandleBrokers(c *cli.Context) error {
	var infos []brokerInfo
	for _, a := range h.registry.Adapters() {
		info := brokerInfo{Name: a.Name(), DisplayName: a.DisplayName(), Implemented: parsers.Implemented(a)}
		if d, ok := a.(parsers.FormatDescriber); ok {
			info.Formats = d.SupportedFormats()
		}
		infos = append(infos, info)
	}
	return render(c, infos, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tBROKER\tSTATUS\tFORMATS")
		for _, info := range infos {
			status := "not implemented"
			if info.Implemented {
				status = "supported"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.DisplayName, status, strings.Join(info.Formats, ", "))
		}
		tw.Flush()
	})
}

// HandleHistory lists recent import runs from the audit ledger.
func (h *BrokerHandler) HandleHistory(c *cli.Context) error {
	runs, err := h.historyService.Runs(c.Context, c.Int("limit"))
	if err != nil {
		return exitError("history", err)
	}
	return render(c, runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No imports recorded")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tWHEN\tBROKER\tFILE\tRECORDS\tMATCHED\tADDED\tFINGERPRINT")
		for _, r := range runs {
			added := fmt.Sprintf("%d", r.TradesAdded)
			if r.DryRun {
				added += " (dry run)"
			}
			fp := r.FileFingerprint
			if len(fp) > 12 {
				fp = fp[:12]
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				r.ID, humanize.Time(r.StartedAt), r.Broker, r.FileName, r.Transactions, r.TradesMatched, added, fp)
		}
		tw.Flush()
	})
}
