// Package schwab parses Charles Schwab and legacy TD Ameritrade
// transaction history exports.
package schwab

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers/csvutil"
)

const (
	Name        = "schwab"
	DisplayName = "Charles Schwab"
)

var (
	schwabIndicators = []string{"action", "symbol", "description", "quantity", "price", "fees & comm", "amount"}
	tdaIndicators    = []string{"trade date", "exec time", "symbol", "side", "qty", "pos effect", "net price"}
)

var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
}

var timeSuffixes = []string{" 15:04:05", " 15:04", " 3:04:05 PM", " 3:04 PM"}

type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return DisplayName }

func (a *Adapter) SupportedFormats() []string {
	return []string{"Schwab Transaction History", "TD Ameritrade Trade History"}
}

func (a *Adapter) Detect(header string) bool {
	return csvutil.CountIndicators(header, schwabIndicators) >= 4 ||
		csvutil.CountIndicators(header, tdaIndicators) >= 4
}

func (a *Adapter) Parse(content string) ([]models.Transaction, error) {
	_, rows, err := csvutil.ReadRows(content)
	if err != nil {
		return nil, err
	}

	skips := csvutil.NewSkipLogger(Name)
	defer skips.Close()

	var txs []models.Transaction
	for _, row := range rows {
		tx, reason := a.processRow(row)
		if reason != "" {
			skips.Skip(row.Line, reason)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (a *Adapter) processRow(row csvutil.Row) (models.Transaction, string) {
	action := strings.ToUpper(row.Get("action", "side"))
	var side models.Side
	switch {
	case strings.Contains(action, "BUY"):
		side = models.SideBuy
	case strings.Contains(action, "SELL"):
		side = models.SideSell
	default:
		return models.Transaction{}, "unrecognized action " + quoteOrEmpty(action)
	}

	symbol := csvutil.NormalizeSymbol(row.Get("symbol"))
	if symbol == "" {
		return models.Transaction{}, "empty symbol"
	}

	ts, err := parseTimestamp(row.Get("date", "trade date"), row.Get("time", "exec time"))
	if err != nil {
		return models.Transaction{}, "unparseable date: " + err.Error()
	}

	qty, err := csvutil.ParseDecimal(row.Get("quantity", "qty"))
	if err != nil {
		return models.Transaction{}, "invalid quantity"
	}
	if qty.IsZero() {
		return models.Transaction{}, "zero quantity"
	}

	price, err := csvutil.ParseDecimal(row.Get("price", "net price"))
	if err != nil {
		return models.Transaction{}, "invalid price"
	}

	return models.Transaction{
		Symbol:     symbol,
		Timestamp:  ts,
		Quantity:   qty.Abs(),
		Price:      price.Abs(),
		Side:       side,
		Commission: commission(row),
		Broker:     Name,
		RawText:    row.RawText(),
	}, ""
}

// parseTimestamp handles "01/15/2025 as of 01/14/2025" dates and exec
// times that are either a bare clock time or a full date-time.
func parseTimestamp(dateStr, timeStr string) (time.Time, error) {
	if i := strings.Index(strings.ToLower(dateStr), " as of "); i >= 0 {
		dateStr = dateStr[:i]
	}
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)

	var layouts []string
	value := dateStr
	switch {
	case strings.Contains(timeStr, " "):
		value = timeStr
		layouts = withSuffixes(dateLayouts)
	case timeStr != "":
		value = dateStr + " " + timeStr
		layouts = withSuffixes(dateLayouts)
	default:
		layouts = dateLayouts
	}
	return csvutil.ParseTimestamp(value, layouts)
}

func withSuffixes(layouts []string) []string {
	out := make([]string, 0, len(layouts)*len(timeSuffixes))
	for _, l := range layouts {
		for _, s := range timeSuffixes {
			out = append(out, l+s)
		}
	}
	return out
}

func commission(row csvutil.Row) decimal.Decimal {
	if row.Has("fees & comm") {
		return csvutil.ParseDecimalOrZero(row.Get("fees & comm")).Abs()
	}
	comm := csvutil.ParseDecimalOrZero(row.Get("comm", "commission")).Abs()
	fees := csvutil.ParseDecimalOrZero(row.Get("fees", "reg fee")).Abs()
	return comm.Add(fees)
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}

func (a *Adapter) Validate(trade models.Trade) (bool, []string) {
	return csvutil.ValidateRequired(trade)
}
