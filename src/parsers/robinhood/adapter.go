// Package robinhood parses Robinhood account activity exports.
package robinhood

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers/csvutil"
)

const (
	Name        = "robinhood"
	DisplayName = "Robinhood"
)

var indicators = []string{
	"activity date",
	"process date",
	"settle date",
	"instrument",
	"trans code",
	"quantity",
	"price",
	"amount",
}

var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"1/2/06",
}

type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return DisplayName }

func (a *Adapter) SupportedFormats() []string {
	return []string{"Account Activity"}
}

func (a *Adapter) Detect(header string) bool {
	return csvutil.CountIndicators(header, indicators) >= 5
}

// Parse keeps only Buy and Sell rows; dividends, transfers, splits and
// the rest of the activity feed are filtered out.
func (a *Adapter) Parse(content string) ([]models.Transaction, error) {
	_, rows, err := csvutil.ReadRows(content)
	if err != nil {
		return nil, err
	}

	skips := csvutil.NewSkipLogger(Name)
	defer skips.Close()

	var txs []models.Transaction
	for _, row := range rows {
		var side models.Side
		switch code := strings.ToLower(row.Get("trans code")); code {
		case "buy":
			side = models.SideBuy
		case "sell":
			side = models.SideSell
		default:
			skips.Skip(row.Line, "not a trade", "trans_code", code)
			continue
		}

		symbol := csvutil.NormalizeSymbol(row.Get("instrument", "symbol"))
		if symbol == "" {
			skips.Skip(row.Line, "empty symbol")
			continue
		}
		ts, err := csvutil.ParseTimestamp(row.Get("activity date"), dateLayouts)
		if err != nil {
			skips.Skip(row.Line, "unparseable date", "error", err)
			continue
		}
		qty, err := csvutil.ParseDecimal(row.Get("quantity"))
		if err != nil || qty.IsZero() {
			skips.Skip(row.Line, "invalid quantity", "quantity", row.Get("quantity"))
			continue
		}
		price, err := csvutil.ParseDecimal(row.Get("price"))
		if err != nil {
			skips.Skip(row.Line, "invalid price", "price", row.Get("price"))
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

func (a *Adapter) Validate(trade models.Trade) (bool, []string) {
	return csvutil.ValidateRequired(trade)
}
