// Package ibkr parses Interactive Brokers Flex Query and Activity
// Statement CSV exports.
package ibkr

import (
	"strings"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers/csvutil"
)

const (
	Name        = "ibkr"
	DisplayName = "Interactive Brokers"
)

var indicators = []string{
	"symbol",
	"date/time",
	"quantity",
	"proceeds",
	"comm/fee",
	"basis",
	"realized p/l",
	"datadiscriminator",
	"asset category",
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02, 15:04:05",
	"20060102;150405",
	"2006-01-02",
	"20060102",
}

// Only execution-level rows describe fills; ClosedLot and SubTotal rows
// would double count them.
var tradeDiscriminators = map[string]bool{
	"order":     true,
	"trade":     true,
	"execution": true,
}

var stockCategories = map[string]bool{
	"stocks": true,
	"stock":  true,
	"stk":    true,
}

// Adapter implements parsers.Adapter for IBKR CSV files.
type Adapter struct{}

// NewAdapter creates a new instance of the IBKR adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return DisplayName }

func (a *Adapter) SupportedFormats() []string {
	return []string{"Flex Query", "Activity Statement"}
}

func (a *Adapter) Detect(header string) bool {
	return csvutil.CountIndicators(header, indicators) >= 3
}

// Parse reads an IBKR CSV export and converts its stock fills into
// canonical transactions. Activity statements interleave several sections,
// each introduced by its own Header row; only the Trades section is read.
func (a *Adapter) Parse(content string) ([]models.Transaction, error) {
	header, rows, err := csvutil.ReadRows(content)
	if err != nil {
		return nil, err
	}

	skips := csvutil.NewSkipLogger(Name)
	defer skips.Close()

	sectioned := contains(header, "header")
	inTrades := len(header) > 0 && header[0] == "trades"
	current := header

	var txs []models.Transaction
	for _, row := range rows {
		if sectioned {
			raw := row.Raw()
			switch strings.ToLower(row.Get("header")) {
			case "header":
				current = csvutil.NormalizeHeader(raw)
				inTrades = len(raw) > 0 && strings.EqualFold(strings.TrimSpace(raw[0]), "trades")
				continue
			case "data":
				if !inTrades {
					continue
				}
				row = csvutil.NewRow(row.Line, current, raw)
			default:
				continue
			}
		}

		if d := row.Get("datadiscriminator"); d != "" && !tradeDiscriminators[strings.ToLower(d)] {
			continue
		}
		if cat := row.Get("asset category", "assetcategory"); cat != "" && !stockCategories[strings.ToLower(cat)] {
			skips.Skip(row.Line, "non-stock asset category", "category", cat)
			continue
		}

		tx, reason := a.processRow(row)
		if reason != "" {
			skips.Skip(row.Line, reason)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// processRow converts one Trades row. A non-empty reason means the row was
// rejected.
func (a *Adapter) processRow(row csvutil.Row) (models.Transaction, string) {
	symbol := csvutil.NormalizeSymbol(row.Get("symbol"))
	if symbol == "" {
		return models.Transaction{}, "empty symbol"
	}

	ts, err := csvutil.ParseTimestamp(row.Get("date/time", "datetime", "date"), dateTimeLayouts)
	if err != nil {
		return models.Transaction{}, "unparseable date: " + err.Error()
	}

	qty, err := csvutil.ParseDecimal(row.Get("quantity"))
	if err != nil {
		return models.Transaction{}, "invalid quantity"
	}
	if qty.IsZero() {
		return models.Transaction{}, "zero quantity"
	}

	price, err := csvutil.ParseDecimal(row.Get("t. price", "tradeprice", "price"))
	if err != nil {
		return models.Transaction{}, "invalid price"
	}

	side := models.SideBuy
	if qty.IsNegative() {
		side = models.SideSell
	}
	if bs := strings.ToUpper(row.Get("buy/sell", "buysell")); bs == "SELL" {
		side = models.SideSell
	} else if bs == "BUY" {
		side = models.SideBuy
	}

	return models.Transaction{
		Symbol:     symbol,
		Timestamp:  ts,
		Quantity:   qty.Abs(),
		Price:      price.Abs(),
		Side:       side,
		Commission: csvutil.ParseDecimalOrZero(row.Get("comm/fee", "ibcommission", "commission")).Abs(),
		Broker:     Name,
		RawText:    row.RawText(),
	}, ""
}

// Validate applies the shared trade checks.
func (a *Adapter) Validate(trade models.Trade) (bool, []string) {
	return csvutil.ValidateRequired(trade)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
