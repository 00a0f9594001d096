package services

import (
	"github.com/username/tradeledger/src/config"
	"github.com/username/tradeledger/src/logger"
)

// loadCapitalBase returns starting balance plus deposits from the account
// file, or the default starting balance when the file cannot be parsed.
func loadCapitalBase(path string) float64 {
	acct, err := config.LoadAccountConfig(path)
	if err != nil {
		logger.L.Warn("Using default starting balance", "path", path, "error", err)
		return config.DefaultStartingBalance
	}
	return acct.CapitalBase()
}
