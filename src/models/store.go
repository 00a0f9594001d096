package models

import (
	"encoding/json"
)

const (
	LegacySchemaVersion  = "1.0"
	CurrentSchemaVersion = "1.1"
)

// TradeStore is the persisted trade index document.
type TradeStore struct {
	Trades           []Trade    `json:"trades"`
	Statistics       Statistics `json:"statistics"`
	Version          string     `json:"version"`
	GeneratedAt      string     `json:"generated_at,omitempty"`
	SchemaMigratedAt string     `json:"schema_migrated_at,omitempty"`
}

func NewTradeStore(version string) *TradeStore {
	return &TradeStore{
		Trades:     []Trade{},
		Statistics: EmptyStatistics(),
		Version:    version,
	}
}

// NextTradeNumber returns max(trade_number)+1, or 1 for an empty store.
func (s *TradeStore) NextTradeNumber() int {
	return NextTradeNumber(s.Trades)
}

func NextTradeNumber(trades []Trade) int {
	max := 0
	for _, t := range trades {
		if t.TradeNumber > max {
			max = t.TradeNumber
		}
	}
	return max + 1
}

// EffectiveVersion treats a missing version tag as the legacy schema.
func (s *TradeStore) EffectiveVersion() string {
	if s.Version == "" {
		return LegacySchemaVersion
	}
	return s.Version
}

type tradeStoreIn struct {
	Trades           []Trade         `json:"trades"`
	Statistics       json.RawMessage `json:"statistics"`
	Version          string          `json:"version"`
	GeneratedAt      string          `json:"generated_at"`
	SchemaMigratedAt string          `json:"schema_migrated_at"`
}

// UnmarshalJSON tolerates statistics blocks written by other tools: they
// are derived data and get recomputed on the next write.
func (s *TradeStore) UnmarshalJSON(data []byte) error {
	var in tradeStoreIn
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.Trades = in.Trades
	if s.Trades == nil {
		s.Trades = []Trade{}
	}
	s.Version = in.Version
	s.GeneratedAt = in.GeneratedAt
	s.SchemaMigratedAt = in.SchemaMigratedAt
	s.Statistics = EmptyStatistics()
	if len(in.Statistics) > 0 {
		var stats Statistics
		if err := json.Unmarshal(in.Statistics, &stats); err == nil {
			s.Statistics = stats
		}
	}
	return nil
}
