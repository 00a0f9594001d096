package processors

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/utils"
)

var hundred = decimal.NewFromInt(100)

// PositionMatcher pairs BUY and SELL fills per symbol into round-trip trades
// using FIFO lot relief.
type PositionMatcher struct{}

func NewPositionMatcher() *PositionMatcher {
	return &PositionMatcher{}
}

// Match returns one trade per lot match, numbered from nextTradeNumber.
// brokerName is the display name recorded on each trade. SELL quantity with
// no open lot behind it is dropped, as are lots still open at the end.
func (m *PositionMatcher) Match(txs []models.Transaction, brokerName string, nextTradeNumber int) []models.Trade {
	symbols, bySymbol := groupTransactionsBySymbol(txs)

	trades := []models.Trade{}
	number := nextTradeNumber

	for _, symbol := range symbols {
		group := bySymbol[symbol]
		sortTransactionsByTime(group)

		var lots []*models.OpenLot
		for _, tx := range group {
			switch tx.Side {
			case models.SideBuy:
				lots = append(lots, &models.OpenLot{
					Symbol:   symbol,
					BuyTime:  tx.Timestamp,
					Quantity: tx.Quantity,
					BuyPrice: tx.Price,
					Broker:   tx.Broker,
					HashId:   tx.HashId,
				})
			case models.SideSell:
				remaining := tx.Quantity
				for remaining.IsPositive() && len(lots) > 0 {
					lot := lots[0]
					matched := decimal.Min(remaining, lot.Quantity)

					if trade, ok := buildTrade(*lot, tx, matched, brokerName, number); ok {
						trades = append(trades, trade)
						number++
					}

					remaining = remaining.Sub(matched)
					lot.Quantity = lot.Quantity.Sub(matched)
					if lot.Empty() {
						lots = lots[1:]
					}
				}
				if remaining.IsPositive() {
					logger.L.Debug("Dropping SELL quantity with no open position", "symbol", symbol, "quantity", remaining.String(), "time", tx.Timestamp)
				}
			}
		}

		if len(lots) > 0 {
			open := decimal.Zero
			for _, l := range lots {
				open = open.Add(l.Quantity)
			}
			logger.L.Debug("Position still open at end of file", "symbol", symbol, "quantity", open.String(), "lots", len(lots))
		}
	}
	return trades
}

func buildTrade(lot models.OpenLot, sell models.Transaction, matched decimal.Decimal, brokerName string, number int) (models.Trade, bool) {
	size := matched.IntPart()
	if size <= 0 {
		logger.L.Warn("Skipping fractional-only match", "symbol", lot.Symbol, "quantity", matched.String())
		return models.Trade{}, false
	}
	qty := decimal.NewFromInt(size)

	pnl := sell.Price.Sub(lot.BuyPrice).Mul(qty).Round(2)
	pnlPercent := decimal.Zero
	if basis := lot.BuyPrice.Mul(qty); !basis.IsZero() {
		pnlPercent = pnl.Div(basis).Mul(hundred).Round(2)
	}
	notes := fmt.Sprintf("Imported from %s CSV", brokerName)

	return models.Trade{
		TradeNumber:  number,
		Ticker:       lot.Symbol,
		Direction:    models.DirectionLong,
		EntryDate:    lot.BuyTime.Format(utils.DateFormat),
		EntryTime:    lot.BuyTime.Format(utils.TimeFormat),
		ExitDate:     sell.Timestamp.Format(utils.DateFormat),
		ExitTime:     sell.Timestamp.Format(utils.TimeFormat),
		EntryPrice:   lot.BuyPrice.InexactFloat64(),
		ExitPrice:    sell.Price.InexactFloat64(),
		PositionSize: int(size),
		Broker:       brokerName,
		PnLUSD:       pnl.InexactFloat64(),
		PnLPercent:   pnlPercent.InexactFloat64(),
		Notes:        &notes,
	}, true
}

// groupTransactionsBySymbol keeps symbols in order of first appearance.
func groupTransactionsBySymbol(txs []models.Transaction) ([]string, map[string][]models.Transaction) {
	var order []string
	grouped := make(map[string][]models.Transaction)
	for _, tx := range txs {
		if tx.Symbol == "" {
			continue
		}
		if _, seen := grouped[tx.Symbol]; !seen {
			order = append(order, tx.Symbol)
		}
		grouped[tx.Symbol] = append(grouped[tx.Symbol], tx)
	}
	return order, grouped
}

// sortTransactionsByTime is stable so same-instant fills keep file order.
func sortTransactionsByTime(txs []models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
}
