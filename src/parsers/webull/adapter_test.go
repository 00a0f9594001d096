package webull

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradeledger/src/models"
)

func TestDetect(t *testing.T) {
	assert.True(t, NewAdapter().Detect("name,symbol,side,status,filled/quantity,filled avg price,time"))
	assert.False(t, NewAdapter().Detect("symbol,quantity,price"))
}

func TestParse(t *testing.T) {
	content := "Name,Symbol,Side,Status,Filled/Quantity,Filled Avg Price,Total,Time\n" +
		"Apple,AAPL,Buy,Filled,100/100,@150.25,15025,01/15/2025 09:30:00 EST\n" +
		"Apple,AAPL,Sell,Cancelled,0/100,,0,01/15/2025 10:00:00 EST\n" +
		"Apple,AAPL,Sell,Filled,60/100,155.00,9300,01/15/2025 10:05:00 EST\n" +
		"Apple,AAPL,Short,Filled,10/10,155.00,1550,01/15/2025 10:06:00 EST\n"

	txs, err := NewAdapter().Parse(content)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, models.SideBuy, txs[0].Side)
	assert.True(t, decimal.NewFromInt(100).Equal(txs[0].Quantity))
	assert.True(t, decimal.RequireFromString("150.25").Equal(txs[0].Price))
	assert.Equal(t, time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC), txs[0].Timestamp)

	assert.Equal(t, models.SideSell, txs[1].Side)
	assert.True(t, decimal.NewFromInt(60).Equal(txs[1].Quantity))
}

func TestStripZone(t *testing.T) {
	assert.Equal(t, "2025-01-15 09:30:00", stripZone("2025-01-15 09:30:00 EDT"))
	assert.Equal(t, "2025-01-15 09:30:00", stripZone("2025-01-15 09:30:00"))
	assert.Equal(t, "2025-01-15", stripZone("2025-01-15"))
}

func TestValidate(t *testing.T) {
	base := models.Trade{
		Ticker: "BRK.A", Direction: models.DirectionLong,
		EntryDate: "2025-01-15", ExitDate: "2025-01-16",
		EntryPrice: 650000, ExitPrice: 651000, PositionSize: 1,
	}

	ok, msgs := NewAdapter().Validate(base)
	assert.True(t, ok, "high prices only warn")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "warning")

	bad := base
	bad.EntryPrice = 0
	ok, msgs = NewAdapter().Validate(bad)
	assert.False(t, ok)
	assert.Contains(t, msgs[0], "entry_price must be positive")
}
