package parsers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/parsers/csvutil"
	"github.com/username/tradeledger/src/parsers/ibkr"
	"github.com/username/tradeledger/src/parsers/robinhood"
	"github.com/username/tradeledger/src/parsers/schwab"
	"github.com/username/tradeledger/src/parsers/unsupported"
	"github.com/username/tradeledger/src/parsers/webull"
)

var ErrUnknownBroker = errors.New("unknown broker")

// Registry maps broker names to adapters. Order of registration is the
// detection priority.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Adapter)}
}

// NewDefaultRegistry registers every known broker.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []Adapter{
		ibkr.NewAdapter(),
		schwab.NewAdapter(),
		robinhood.NewAdapter(),
		webull.NewAdapter(),
		unsupported.ETrade(),
		unsupported.Fidelity(),
		unsupported.TradeStation(),
	} {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(a Adapter) error {
	key := strings.ToLower(a.Name())
	if key == "" {
		return fmt.Errorf("adapter %q has an empty name", a.DisplayName())
	}
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("broker %q already registered", key)
	}
	r.byName[key] = a
	r.adapters = append(r.adapters, a)
	return nil
}

// Get looks an adapter up by name, case-insensitively.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBroker, name, strings.Join(r.Names(), ", "))
	}
	return a, nil
}

// Detect returns the first registered adapter whose header signature
// matches the first non-empty line of content. When several match, the
// earliest registration wins.
func (r *Registry) Detect(content string) (Adapter, bool) {
	header := strings.ToLower(csvutil.FirstLine(content))
	if header == "" {
		return nil, false
	}
	var found Adapter
	var matched []string
	for _, a := range r.adapters {
		if a.Detect(header) {
			if found == nil {
				found = a
			}
			matched = append(matched, a.Name())
		}
	}
	if len(matched) > 1 {
		logger.L.Info("Header matches several brokers, using first registered", "selected", found.Name(), "matches", matched)
	}
	return found, found != nil
}

// Adapters returns the adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	return append([]Adapter(nil), r.adapters...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}
