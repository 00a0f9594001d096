// Package webull parses Webull order history exports.
package webull

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers/csvutil"
)

const (
	Name        = "webull"
	DisplayName = "Webull"

	// Prices above this are legal but usually a units mistake.
	priceWarningThreshold = 10000
)

var indicators = []string{
	"time",
	"symbol",
	"side",
	"filled/quantity",
	"filled avg price",
	"total",
	"status",
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
	"01/02/2006",
}

type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return DisplayName }

func (a *Adapter) SupportedFormats() []string {
	return []string{"Order History"}
}

func (a *Adapter) Detect(header string) bool {
	return csvutil.CountIndicators(header, indicators) >= 4
}

// Parse keeps filled orders only. Cancelled and pending orders are part of
// the export but never executed.
func (a *Adapter) Parse(content string) ([]models.Transaction, error) {
	_, rows, err := csvutil.ReadRows(content)
	if err != nil {
		return nil, err
	}

	skips := csvutil.NewSkipLogger(Name)
	defer skips.Close()

	var txs []models.Transaction
	for _, row := range rows {
		if status := row.Get("status"); !strings.EqualFold(status, "filled") {
			skips.Skip(row.Line, "order not filled", "status", status)
			continue
		}

		var side models.Side
		switch s := strings.ToLower(row.Get("side")); s {
		case "buy":
			side = models.SideBuy
		case "sell":
			side = models.SideSell
		default:
			skips.Skip(row.Line, "unrecognized side", "side", s)
			continue
		}

		symbol := csvutil.NormalizeSymbol(row.Get("symbol"))
		if symbol == "" {
			skips.Skip(row.Line, "empty symbol")
			continue
		}
		ts, err := csvutil.ParseTimestamp(stripZone(row.Get("time", "filled time", "placed time")), timeLayouts)
		if err != nil {
			skips.Skip(row.Line, "unparseable time", "error", err)
			continue
		}
		qty, err := parseFilled(row.Get("filled/quantity", "filled", "quantity"))
		if err != nil || qty.IsZero() {
			skips.Skip(row.Line, "invalid quantity")
			continue
		}
		price, err := csvutil.ParseDecimal(row.Get("filled avg price", "avg price", "price"))
		if err != nil {
			skips.Skip(row.Line, "invalid price")
			continue
		}

		txs = append(txs, models.Transaction{
			Symbol:     symbol,
			Timestamp:  ts,
			Quantity:   qty.Abs(),
			Price:      price.Abs(),
			Side:       side,
			Commission: decimal.Zero,
			Broker:     Name,
			RawText:    row.RawText(),
		})
	}
	return txs, nil
}

// parseFilled reads "100/100" (filled/ordered) or a bare number.
func parseFilled(v string) (decimal.Decimal, error) {
	if i := strings.Index(v, "/"); i >= 0 {
		v = v[:i]
	}
	return csvutil.ParseDecimal(v)
}

// stripZone drops a trailing zone abbreviation such as "EST".
func stripZone(v string) string {
	v = strings.TrimSpace(v)
	i := strings.LastIndex(v, " ")
	if i < 0 {
		return v
	}
	last := v[i+1:]
	for _, r := range last {
		if !unicode.IsLetter(r) {
			return v
		}
	}
	return strings.TrimSpace(v[:i])
}

// Validate adds Webull price sanity checks to the shared rules. Prices
// above the warning threshold are reported but do not invalidate the trade.
func (a *Adapter) Validate(trade models.Trade) (bool, []string) {
	ok, errs := csvutil.ValidateRequired(trade)
	if trade.EntryPrice <= 0 {
		ok = false
		errs = append(errs, fmt.Sprintf("entry_price must be positive, got %.4f", trade.EntryPrice))
	}
	if trade.ExitPrice <= 0 {
		ok = false
		errs = append(errs, fmt.Sprintf("exit_price must be positive, got %.4f", trade.ExitPrice))
	}
	if trade.PositionSize <= 0 {
		ok = false
		errs = append(errs, fmt.Sprintf("position_size must be positive, got %d", trade.PositionSize))
	}
	if trade.EntryPrice > priceWarningThreshold || trade.ExitPrice > priceWarningThreshold {
		errs = append(errs, fmt.Sprintf("warning: unusually high price (entry %.2f, exit %.2f)", trade.EntryPrice, trade.ExitPrice))
	}
	return ok, errs
}
