// Package schema evolves persisted trade records between schema versions.
package schema

import (
	"errors"
	"fmt"
	"time"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
)

var ErrNoMigrationPath = errors.New("no migration path")

// Step upgrades one trade from From to To. Steps only add fields and must
// return an already-upgraded trade unchanged.
type Step struct {
	From    string
	To      string
	Upgrade func(models.Trade) models.Trade
}

// chain lists the steps in version order, starting at the legacy schema.
var chain = []Step{
	{From: models.LegacySchemaVersion, To: "1.1", Upgrade: upgradeTo11},
}

// Versions returns every known schema version, oldest first.
func Versions() []string {
	versions := []string{models.LegacySchemaVersion}
	for _, s := range chain {
		versions = append(versions, s.To)
	}
	return versions
}

// Path returns the steps leading from one version to another.
func Path(from, to string) ([]Step, error) {
	start, end := indexOf(from), indexOf(to)
	switch {
	case end < 0:
		return nil, fmt.Errorf("%w: unknown target version %q", ErrNoMigrationPath, to)
	case start < 0:
		return nil, fmt.Errorf("%w: unknown source version %q", ErrNoMigrationPath, from)
	case end < start:
		return nil, fmt.Errorf("%w: cannot downgrade from %s to %s", ErrNoMigrationPath, from, to)
	}
	return chain[start:end], nil
}

func indexOf(version string) int {
	for i, v := range Versions() {
		if v == version {
			return i
		}
	}
	return -1
}

func upgradeTo11(t models.Trade) models.Trade {
	t = t.Clone()
	if t.Tags == nil {
		t.Tags = models.NewTagSet()
	}
	if t.StrategyTags == nil {
		t.StrategyTags = models.NewTagSet(t.Strategy)
	}
	if t.SetupTags == nil {
		t.SetupTags = models.NewTagSet()
	}
	if t.SessionTags == nil {
		t.SessionTags = models.NewTagSet()
	}
	if t.MarketConditionTags == nil {
		t.MarketConditionTags = models.NewTagSet()
	}
	if t.Notes == nil {
		empty := ""
		t.Notes = &empty
	}
	return t
}

// Result describes what Migrate did.
type Result struct {
	From          string
	To            string
	Changed       bool
	TradesUpdated int
}

// Migrate upgrades doc in place to target. A document already at target is
// left untouched.
func Migrate(doc *models.TradeStore, target string, now time.Time) (Result, error) {
	from := doc.EffectiveVersion()
	res := Result{From: from, To: target}
	if from == target {
		return res, nil
	}

	steps, err := Path(from, target)
	if err != nil {
		return res, err
	}

	for i, t := range doc.Trades {
		upgraded := t
		for _, s := range steps {
			upgraded = s.Upgrade(upgraded)
		}
		if !tradesEqual(t, upgraded) {
			res.TradesUpdated++
		}
		doc.Trades[i] = upgraded
	}
	doc.Version = target
	doc.SchemaMigratedAt = now.UTC().Format(time.RFC3339)
	res.Changed = true

	logger.L.Info("Trade store migrated", "from", from, "to", target, "trades", len(doc.Trades), "updated", res.TradesUpdated)
	return res, nil
}

// Conform brings a freshly created trade up to the store's version.
func Conform(t models.Trade, version string) models.Trade {
	steps, err := Path(models.LegacySchemaVersion, version)
	if err != nil {
		logger.L.Warn("Cannot conform trade to unknown schema version", "version", version, "error", err)
		return t
	}
	for _, s := range steps {
		t = s.Upgrade(t)
	}
	return t
}

// ConformAll applies Conform to every trade.
func ConformAll(trades []models.Trade, version string) []models.Trade {
	out := make([]models.Trade, len(trades))
	for i, t := range trades {
		out[i] = Conform(t, version)
	}
	return out
}

func tradesEqual(a, b models.Trade) bool {
	ja, errA := a.MarshalJSON()
	jb, errB := b.MarshalJSON()
	return errA == nil && errB == nil && string(ja) == string(jb)
}
