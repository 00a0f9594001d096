package parsers

import (
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers/csvutil"
)

// Adapter is implemented by every broker importer.
type Adapter interface {
	// Name is the registry key, e.g. "ibkr".
	Name() string
	DisplayName() string
	// Detect inspects the lower-cased first line of a file.
	Detect(header string) bool
	Parse(content string) ([]models.Transaction, error)
	Validate(trade models.Trade) (bool, []string)
}

// FormatDescriber is optionally implemented by adapters that can list the
// export variants they read.
type FormatDescriber interface {
	SupportedFormats() []string
}

// Implemented reports whether the adapter can parse files.
func Implemented(a Adapter) bool {
	_, ok := a.(FormatDescriber)
	return ok
}

var ErrBrokerNotImplemented = csvutil.ErrBrokerNotImplemented
