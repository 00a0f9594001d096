// Package unsupported registers brokers that are known by name but have no
// importer yet, so that selecting one fails loudly.
package unsupported

import (
	"fmt"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers/csvutil"
)

type Adapter struct {
	name        string
	displayName string
}

func NewAdapter(name, displayName string) *Adapter {
	return &Adapter{name: name, displayName: displayName}
}

func ETrade() *Adapter       { return NewAdapter("etrade", "E*TRADE") }
func Fidelity() *Adapter     { return NewAdapter("fidelity", "Fidelity") }
func TradeStation() *Adapter { return NewAdapter("tradestation", "TradeStation") }

func (a *Adapter) Name() string        { return a.name }
func (a *Adapter) DisplayName() string { return a.displayName }

// Detect never claims a file.
func (a *Adapter) Detect(string) bool { return false }

func (a *Adapter) Parse(string) ([]models.Transaction, error) {
	return nil, fmt.Errorf("%w: %s", csvutil.ErrBrokerNotImplemented, a.displayName)
}

func (a *Adapter) Validate(trade models.Trade) (bool, []string) {
	return csvutil.ValidateRequired(trade)
}
