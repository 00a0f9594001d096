package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/username/tradeledger/src/utils"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// IsShort reports whether d names a short position (case-insensitive).
func (d Direction) IsShort() bool {
	return strings.EqualFold(strings.TrimSpace(string(d)), string(DirectionShort))
}

// TagSet is an unordered set of classification labels. A nil TagSet means
// the field is absent from the record; an empty non-nil TagSet is present
// and serializes as [].
type TagSet []string

// NewTagSet returns a non-nil set with blanks dropped and duplicates
// collapsed, keeping first-seen order.
func NewTagSet(values ...string) TagSet {
	set := make(TagSet, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		set = append(set, v)
	}
	return set
}

func (s TagSet) Contains(v string) bool {
	for _, t := range s {
		if t == v {
			return true
		}
	}
	return false
}

// Equal compares as sets; order and duplicates are irrelevant.
func (s TagSet) Equal(o TagSet) bool {
	a, b := NewTagSet(s...), NewTagSet(o...)
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !b.Contains(v) {
			return false
		}
	}
	return true
}

// Trade is one round-trip trade: the unit persisted in the trade store.
type Trade struct {
	TradeNumber  int
	Ticker       string
	Direction    Direction
	EntryDate    string
	EntryTime    string
	ExitDate     string
	ExitTime     string
	EntryPrice   float64
	ExitPrice    float64
	PositionSize int
	Broker       string
	Strategy     string
	PnLUSD       float64
	PnLPercent   float64

	StopLoss        *float64
	TargetPrice     *float64
	RiskRewardRatio *float64
	Notes           *string

	Tags                TagSet
	StrategyTags        TagSet
	SetupTags           TagSet
	SessionTags         TagSet
	MarketConditionTags TagSet

	// Extra holds fields this version does not model, written back verbatim.
	Extra map[string]json.RawMessage
}

// NotesText returns the notes or "" when absent.
func (t Trade) NotesText() string {
	if t.Notes == nil {
		return ""
	}
	return *t.Notes
}

// ExpectedPnL is (exit - entry) * size, negated for shorts.
func (t Trade) ExpectedPnL() float64 {
	pnl := (t.ExitPrice - t.EntryPrice) * float64(t.PositionSize)
	if t.Direction.IsShort() {
		pnl = -pnl
	}
	return pnl
}

// PnLConsistent checks pnl_usd against ExpectedPnL within tolerance.
func (t Trade) PnLConsistent(tolerance float64) bool {
	return math.Abs(t.PnLUSD-t.ExpectedPnL()) <= tolerance
}

func (t Trade) EntryTimestamp() (time.Time, error) {
	return utils.CombineDateTime(t.EntryDate, t.EntryTime)
}

func (t Trade) ExitTimestamp() (time.Time, error) {
	return utils.CombineDateTime(t.ExitDate, t.ExitTime)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t Trade) Clone() Trade {
	c := t
	c.StopLoss = cloneFloat(t.StopLoss)
	c.TargetPrice = cloneFloat(t.TargetPrice)
	c.RiskRewardRatio = cloneFloat(t.RiskRewardRatio)
	if t.Notes != nil {
		n := *t.Notes
		c.Notes = &n
	}
	c.Tags = cloneTags(t.Tags)
	c.StrategyTags = cloneTags(t.StrategyTags)
	c.SetupTags = cloneTags(t.SetupTags)
	c.SessionTags = cloneTags(t.SessionTags)
	c.MarketConditionTags = cloneTags(t.MarketConditionTags)
	if t.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(t.Extra))
		for k, v := range t.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTags(s TagSet) TagSet {
	if s == nil {
		return nil
	}
	return append(TagSet{}, s...)
}

var knownTradeFields = map[string]bool{
	"trade_number": true, "ticker": true, "direction": true,
	"entry_date": true, "entry_time": true, "exit_date": true, "exit_time": true,
	"entry_price": true, "exit_price": true, "position_size": true,
	"broker": true, "strategy": true, "pnl_usd": true, "pnl_percent": true,
	"stop_loss": true, "target_price": true, "risk_reward_ratio": true, "notes": true,
	"tags": true, "strategy_tags": true, "setup_tags": true, "session_tags": true,
	"market_condition_tags": true,
}

// IsKnownTradeField reports whether name is a modeled Trade field.
func IsKnownTradeField(name string) bool { return knownTradeFields[name] }

type tradeOut struct {
	TradeNumber  int       `json:"trade_number"`
	Ticker       string    `json:"ticker"`
	Direction    Direction `json:"direction"`
	EntryDate    string    `json:"entry_date"`
	EntryTime    string    `json:"entry_time,omitempty"`
	ExitDate     string    `json:"exit_date"`
	ExitTime     string    `json:"exit_time,omitempty"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	PositionSize int       `json:"position_size"`
	Broker       string    `json:"broker,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	PnLUSD       float64   `json:"pnl_usd"`
	PnLPercent   float64   `json:"pnl_percent"`

	StopLoss        *float64 `json:"stop_loss,omitempty"`
	TargetPrice     *float64 `json:"target_price,omitempty"`
	RiskRewardRatio *float64 `json:"risk_reward_ratio,omitempty"`
	Notes           *string  `json:"notes,omitempty"`

	Tags                *[]string `json:"tags,omitempty"`
	StrategyTags        *[]string `json:"strategy_tags,omitempty"`
	SetupTags           *[]string `json:"setup_tags,omitempty"`
	SessionTags         *[]string `json:"session_tags,omitempty"`
	MarketConditionTags *[]string `json:"market_condition_tags,omitempty"`
}

// tradeIn accepts the looser shapes other writers produce: numbers written
// as floats (100.0) and optional fields that may be missing.
type tradeIn struct {
	TradeNumber  float64   `json:"trade_number" yaml:"trade_number"`
	Ticker       string    `json:"ticker" yaml:"ticker"`
	Direction    Direction `json:"direction" yaml:"direction"`
	EntryDate    string    `json:"entry_date" yaml:"entry_date"`
	EntryTime    string    `json:"entry_time" yaml:"entry_time"`
	ExitDate     string    `json:"exit_date" yaml:"exit_date"`
	ExitTime     string    `json:"exit_time" yaml:"exit_time"`
	EntryPrice   float64   `json:"entry_price" yaml:"entry_price"`
	ExitPrice    float64   `json:"exit_price" yaml:"exit_price"`
	PositionSize float64   `json:"position_size" yaml:"position_size"`
	Broker       string    `json:"broker" yaml:"broker"`
	Strategy     string    `json:"strategy" yaml:"strategy"`
	PnLUSD       *float64  `json:"pnl_usd" yaml:"pnl_usd"`
	PnLPercent   *float64  `json:"pnl_percent" yaml:"pnl_percent"`

	StopLoss        *float64 `json:"stop_loss" yaml:"stop_loss"`
	TargetPrice     *float64 `json:"target_price" yaml:"target_price"`
	RiskRewardRatio *float64 `json:"risk_reward_ratio" yaml:"risk_reward_ratio"`
	Notes           *string  `json:"notes" yaml:"notes"`

	Tags                *tagList `json:"tags" yaml:"tags"`
	StrategyTags        *tagList `json:"strategy_tags" yaml:"strategy_tags"`
	SetupTags           *tagList `json:"setup_tags" yaml:"setup_tags"`
	SessionTags         *tagList `json:"session_tags" yaml:"session_tags"`
	MarketConditionTags *tagList `json:"market_condition_tags" yaml:"market_condition_tags"`
}

// tagList decodes a tag field written either as a list or, by older
// writers, as a single scalar. A scalar becomes a one-element list.
type tagList []string

func (l *tagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*l = values
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = tagList{v}
	case '{':
		return fmt.Errorf("tags: expected list or string, got object")
	default:
		// numbers and booleans keep their literal text
		*l = tagList{string(data)}
	}
	return nil
}

func (l *tagList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*l = values
	case yaml.ScalarNode:
		*l = tagList{node.Value}
	default:
		return fmt.Errorf("tags: expected list or scalar at line %d", node.Line)
	}
	return nil
}

func tagsOut(s TagSet) *[]string {
	if s == nil {
		return nil
	}
	v := []string(NewTagSet(s...))
	return &v
}

func tagsIn(p *tagList) TagSet {
	if p == nil {
		return nil
	}
	return NewTagSet(*p...)
}

func (t Trade) MarshalJSON() ([]byte, error) {
	out := tradeOut{
		TradeNumber:         t.TradeNumber,
		Ticker:              t.Ticker,
		Direction:           t.Direction,
		EntryDate:           t.EntryDate,
		EntryTime:           t.EntryTime,
		ExitDate:            t.ExitDate,
		ExitTime:            t.ExitTime,
		EntryPrice:          t.EntryPrice,
		ExitPrice:           t.ExitPrice,
		PositionSize:        t.PositionSize,
		Broker:              t.Broker,
		Strategy:            t.Strategy,
		PnLUSD:              t.PnLUSD,
		PnLPercent:          t.PnLPercent,
		StopLoss:            t.StopLoss,
		TargetPrice:         t.TargetPrice,
		RiskRewardRatio:     t.RiskRewardRatio,
		Notes:               t.Notes,
		Tags:                tagsOut(t.Tags),
		StrategyTags:        tagsOut(t.StrategyTags),
		SetupTags:           tagsOut(t.SetupTags),
		SessionTags:         tagsOut(t.SessionTags),
		MarketConditionTags: tagsOut(t.MarketConditionTags),
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(t.Extra))
	for k := range t.Extra {
		if !knownTradeFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, k := range keys {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(t.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Trade) UnmarshalJSON(data []byte) error {
	var in tradeIn
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*t = in.toTrade()
	for k, v := range all {
		if knownTradeFields[k] {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = v
	}
	return nil
}

// UnmarshalYAML decodes a manually authored trade mapping (frontmatter
// style). Unknown keys are carried as JSON in Extra.
func (t *Trade) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("trade record must be a mapping, got line %d", node.Line)
	}
	var in tradeIn
	if err := node.Decode(&in); err != nil {
		return err
	}
	var all map[string]interface{}
	if err := node.Decode(&all); err != nil {
		return err
	}
	*t = in.toTrade()
	for k, v := range all {
		if knownTradeFields[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = raw
	}
	return nil
}

func (in tradeIn) toTrade() Trade {
	t := Trade{
		TradeNumber:         int(math.Round(in.TradeNumber)),
		Ticker:              in.Ticker,
		Direction:           in.Direction,
		EntryDate:           in.EntryDate,
		EntryTime:           in.EntryTime,
		ExitDate:            in.ExitDate,
		ExitTime:            in.ExitTime,
		EntryPrice:          in.EntryPrice,
		ExitPrice:           in.ExitPrice,
		PositionSize:        int(math.Round(in.PositionSize)),
		Broker:              in.Broker,
		Strategy:            in.Strategy,
		StopLoss:            in.StopLoss,
		TargetPrice:         in.TargetPrice,
		RiskRewardRatio:     in.RiskRewardRatio,
		Notes:               in.Notes,
		Tags:                tagsIn(in.Tags),
		StrategyTags:        tagsIn(in.StrategyTags),
		SetupTags:           tagsIn(in.SetupTags),
		SessionTags:         tagsIn(in.SessionTags),
		MarketConditionTags: tagsIn(in.MarketConditionTags),
	}
	if in.PnLUSD != nil {
		t.PnLUSD = *in.PnLUSD
	} else {
		t.PnLUSD = utils.RoundFloat(t.ExpectedPnL(), 2)
	}
	if in.PnLPercent != nil {
		t.PnLPercent = *in.PnLPercent
	} else if basis := t.EntryPrice * float64(t.PositionSize); basis > 0 {
		t.PnLPercent = utils.RoundFloat(t.PnLUSD/basis*100, 2)
	}
	return t
}
