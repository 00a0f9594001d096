package processors

import (
	"fmt"
	"time"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/utils"
)

type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Process enriches parsed transactions with a content hash used by the
// audit ledger to recognize re-imported fills. It trusts the parser's
// normalization and does not reorder.
func (p *TransactionProcessor) Process(txs []models.Transaction) []models.Transaction {
	processed := make([]models.Transaction, 0, len(txs))
	seen := make(map[string]int, len(txs))
	for _, tx := range txs {
		hash := generateHash(tx)
		// Identical rows within one file are distinct fills.
		if n := seen[hash]; n > 0 {
			seen[hash] = n + 1
			hash = utils.Fingerprint(hash, fmt.Sprint(n))
		} else {
			seen[hash] = 1
		}
		tx.HashId = hash
		processed = append(processed, tx)
	}
	return processed
}

// generateHash creates a unique hash for the transaction based on source data.
func generateHash(tx models.Transaction) string {
	return utils.Fingerprint(
		tx.Broker,
		tx.Symbol,
		tx.Timestamp.UTC().Format(time.RFC3339Nano),
		string(tx.Side),
		tx.Quantity.String(),
		tx.Price.String(),
		tx.Commission.String(),
		tx.RawText,
	)
}
