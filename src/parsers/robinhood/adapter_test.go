package robinhood

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradeledger/src/models"
)

const header = "Activity Date,Process Date,Settle Date,Instrument,Description,Trans Code,Quantity,Price,Amount\n"

func TestDetect(t *testing.T) {
	assert.True(t, NewAdapter().Detect("activity date,process date,settle date,instrument,description,trans code,quantity,price,amount"))
	assert.False(t, NewAdapter().Detect("date,action,symbol,description,quantity,price,fees & comm,amount"))
}

func TestParse(t *testing.T) {
	content := header +
		"1/15/2025,1/15/2025,1/16/2025,AAPL,Apple,Buy,10,$150.00,($1500.00)\n" +
		"1/20/2025,1/20/2025,1/21/2025,AAPL,Apple,CDIV,,,$2.40\n" +
		"1/22/2025,1/22/2025,1/23/2025,AAPL,Apple,Sell,10,$160.50,$1605.00\n" +
		"1/23/2025,1/23/2025,1/24/2025,,Transfer,ACH,,,$100.00\n" +
		"1/24/2025,1/24/2025,1/25/2025,TSLA,Tesla,Buy,0.5,$200.00,($100.00)\n"

	txs, err := NewAdapter().Parse(content)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, models.SideBuy, txs[0].Side)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), txs[0].Timestamp)
	assert.True(t, txs[0].Commission.IsZero())

	assert.Equal(t, models.SideSell, txs[1].Side)
	assert.True(t, decimal.RequireFromString("160.5").Equal(txs[1].Price))

	assert.Equal(t, "TSLA", txs[2].Symbol)
	assert.True(t, decimal.RequireFromString("0.5").Equal(txs[2].Quantity))
}
