package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultStartingBalance matches what the account page seeds a new
// account-config file with.
const DefaultStartingBalance = 1000.00

type Deposit struct {
	Amount float64 `yaml:"amount" json:"amount"`
	Date   string  `yaml:"date" json:"date"`
	Note   string  `yaml:"note,omitempty" json:"note,omitempty"`
}

// AccountConfig is the capital base used for return percentages.
type AccountConfig struct {
	StartingBalance float64   `yaml:"starting_balance" json:"starting_balance"`
	Deposits        []Deposit `yaml:"deposits" json:"deposits"`
	Notes           string    `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// TotalDeposits sums every recorded deposit.
func (a *AccountConfig) TotalDeposits() float64 {
	if a == nil {
		return 0
	}
	var total float64
	for _, d := range a.Deposits {
		total += d.Amount
	}
	return total
}

// CapitalBase is starting balance plus cumulative deposits.
func (a *AccountConfig) CapitalBase() float64 {
	if a == nil {
		return 0
	}
	return a.StartingBalance + a.TotalDeposits()
}

// LoadAccountConfig reads the account file. YAML is a superset of JSON, so
// the account-config.json written by the web UI loads as-is. A missing file
// yields the default account.
func LoadAccountConfig(path string) (*AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &AccountConfig{StartingBalance: DefaultStartingBalance, Deposits: []Deposit{}}, nil
		}
		return nil, fmt.Errorf("read account config %s: %w", path, err)
	}

	cfg := AccountConfig{StartingBalance: DefaultStartingBalance}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse account config %s: %w", path, err)
	}
	if cfg.Deposits == nil {
		cfg.Deposits = []Deposit{}
	}
	return &cfg, nil
}
