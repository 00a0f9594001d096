package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

var requiredFields = []string{
	"trade_number",
	"ticker",
	"entry_date",
	"entry_price",
	"exit_price",
	"position_size",
	"direction",
}

var numericFields = []string{
	"trade_number", "entry_price", "exit_price", "position_size",
	"pnl_usd", "pnl_percent", "stop_loss", "target_price", "risk_reward_ratio",
}

var tagFields = []string{
	"tags", "strategy_tags", "setup_tags", "session_tags", "market_condition_tags",
}

// Issue is one problem found in a trade record.
type Issue struct {
	Index       int    `json:"index"`
	TradeNumber string `json:"trade_number,omitempty"`
	Field       string `json:"field"`
	Message     string `json:"message"`
}

func (i Issue) String() string {
	id := i.TradeNumber
	if id == "" {
		id = fmt.Sprintf("#%d", i.Index)
	}
	return fmt.Sprintf("trade %s: %s: %s", id, i.Field, i.Message)
}

// Report is the outcome of Validate.
type Report struct {
	Version        string  `json:"version"`
	TargetVersion  string  `json:"target_version"`
	TotalTrades    int     `json:"total_trades"`
	InvalidTrades  int     `json:"invalid_trades"`
	NeedsMigration bool    `json:"needs_migration"`
	Issues         []Issue `json:"issues"`
}

func (r Report) Valid() bool { return len(r.Issues) == 0 }

// Validate inspects a raw store document against version without decoding
// it into typed structs, so type mismatches are reported instead of
// failing the whole document. It never modifies anything.
func Validate(raw []byte, version string) (Report, error) {
	report := Report{TargetVersion: version, Issues: []Issue{}}
	if indexOf(version) < 0 {
		return report, fmt.Errorf("%w: unknown version %q", ErrNoMigrationPath, version)
	}

	var doc struct {
		Version *string           `json:"version"`
		Trades  []json.RawMessage `json:"trades"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return report, fmt.Errorf("store is not a valid document: %w", err)
	}
	report.Version = "1.0"
	if doc.Version != nil && *doc.Version != "" {
		report.Version = *doc.Version
	}
	report.NeedsMigration = report.Version != version
	report.TotalTrades = len(doc.Trades)

	wantTags := indexOf(version) >= indexOf("1.1")
	for i, rawTrade := range doc.Trades {
		issues := validateTrade(i, rawTrade, wantTags)
		if len(issues) > 0 {
			report.InvalidTrades++
			report.Issues = append(report.Issues, issues...)
		}
	}
	return report, nil
}

func validateTrade(index int, raw json.RawMessage, wantTags bool) []Issue {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return []Issue{{Index: index, Field: "(record)", Message: "not an object"}}
	}

	id := ""
	if n, ok := fields["trade_number"]; ok {
		id = string(n)
	}
	issue := func(field, msg string) Issue {
		return Issue{Index: index, TradeNumber: id, Field: field, Message: msg}
	}

	var issues []Issue
	for _, f := range requiredFields {
		if v, ok := fields[f]; !ok || isNull(v) {
			issues = append(issues, issue(f, "missing required field"))
		}
	}
	for _, f := range numericFields {
		if v, ok := fields[f]; ok && !isNull(v) && kindOf(v) != "number" {
			issues = append(issues, issue(f, fmt.Sprintf("expected number, got %s", kindOf(v))))
		}
	}
	for _, f := range []string{"ticker", "entry_date", "exit_date", "direction"} {
		if v, ok := fields[f]; ok && !isNull(v) && kindOf(v) != "string" {
			issues = append(issues, issue(f, fmt.Sprintf("expected string, got %s", kindOf(v))))
		}
	}
	if wantTags {
		for _, f := range tagFields {
			v, ok := fields[f]
			if !ok {
				issues = append(issues, issue(f, "missing tag field"))
				continue
			}
			var tags []string
			if err := json.Unmarshal(v, &tags); err != nil || isNull(v) {
				issues = append(issues, issue(f, "expected list of strings"))
			}
		}
		if v, ok := fields["notes"]; !ok {
			issues = append(issues, issue("notes", "missing notes field"))
		} else if kindOf(v) != "string" {
			issues = append(issues, issue("notes", fmt.Sprintf("expected string, got %s", kindOf(v))))
		}
	} else if v, ok := fields["notes"]; ok && !isNull(v) && kindOf(v) != "string" {
		issues = append(issues, issue("notes", fmt.Sprintf("expected string, got %s", kindOf(v))))
	}

	sort.SliceStable(issues, func(a, b int) bool { return issues[a].Field < issues[b].Field })
	return issues
}

func isNull(v json.RawMessage) bool {
	return kindOf(v) == "null"
}

func kindOf(v json.RawMessage) string {
	for _, c := range v {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '"':
			return "string"
		case '{':
			return "object"
		case '[':
			return "array"
		case 't', 'f':
			return "boolean"
		case 'n':
			return "null"
		default:
			return "number"
		}
	}
	return "empty"
}
