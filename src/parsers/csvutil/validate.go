package csvutil

import (
	"fmt"
	"strings"

	"github.com/username/tradeledger/src/models"
)

// ValidateRequired applies the checks every adapter shares.
func ValidateRequired(trade models.Trade) (bool, []string) {
	var errs []string
	required := []struct {
		name    string
		missing bool
	}{
		{"ticker", strings.TrimSpace(trade.Ticker) == ""},
		{"entry_date", strings.TrimSpace(trade.EntryDate) == ""},
		{"position_size", trade.PositionSize == 0},
		{"direction", strings.TrimSpace(string(trade.Direction)) == ""},
	}
	for _, f := range required {
		if f.missing {
			errs = append(errs, "Missing required field: "+f.name)
		}
	}
	if trade.PositionSize < 0 {
		errs = append(errs, fmt.Sprintf("position_size must be positive, got %d", trade.PositionSize))
	}
	if trade.EntryPrice < 0 || trade.ExitPrice < 0 {
		errs = append(errs, fmt.Sprintf("prices must not be negative (entry %.4f, exit %.4f)", trade.EntryPrice, trade.ExitPrice))
	}

	entry, entryErr := trade.EntryTimestamp()
	exit, exitErr := trade.ExitTimestamp()
	if entryErr == nil && exitErr == nil && strings.TrimSpace(trade.ExitDate) != "" && exit.Before(entry) {
		errs = append(errs, "exit is before entry")
	}
	return len(errs) == 0, errs
}
