package services

import (
	"context"
	"errors"

	"github.com/username/tradeledger/src/database"
)

var errNoLedger = errors.New("import audit ledger is not available")

type historyServiceImpl struct {
	ledger *database.Ledger
}

func NewHistoryService(ledger *database.Ledger) HistoryService {
	return &historyServiceImpl{ledger: ledger}
}

func (s *historyServiceImpl) Runs(ctx context.Context, limit int) ([]database.ImportRun, error) {
	if s.ledger == nil {
		return nil, errNoLedger
	}
	return s.ledger.Runs(ctx, limit)
}
