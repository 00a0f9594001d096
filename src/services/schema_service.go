package services

import (
	"context"
	"fmt"
	"time"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/schema"
	"github.com/username/tradeledger/src/store"
)

type schemaServiceImpl struct {
	repo *store.Repository
	now  func() time.Time
}

func NewSchemaService(repo *store.Repository) SchemaService {
	return &schemaServiceImpl{repo: repo, now: time.Now}
}

// Migrate validates or upgrades the store to req.TargetVersion. Validation
// and dry runs never write; a store already at the target is left
// byte-for-byte untouched.
func (s *schemaServiceImpl) Migrate(ctx context.Context, req MigrateRequest) (*MigrateResult, error) {
	target := req.TargetVersion
	if target == "" {
		target = models.CurrentSchemaVersion
	}
	if !s.repo.Exists() {
		return nil, fmt.Errorf("%w: no trade store at %s", ErrInputUnreadable, s.repo.Path())
	}
	res := &MigrateResult{TargetVersion: target, DryRun: req.DryRun}

	if req.ValidateOnly {
		raw, err := s.repo.LoadRaw()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
		}
		report, err := schema.Validate(raw, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
		}
		res.StoreVersion = report.Version
		res.TotalTrades = report.TotalTrades
		res.Report = &report
		logger.L.Info("Schema validation complete", "version", report.Version, "target", target, "invalid_trades", report.InvalidTrades)
		return res, nil
	}

	run := func() error {
		doc, err := s.repo.Load()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrParsingFailed, err)
		}
		res.StoreVersion = doc.EffectiveVersion()
		res.TotalTrades = len(doc.Trades)

		result, err := schema.Migrate(doc, target, s.now())
		if err != nil {
			return err
		}
		res.Changed = result.Changed
		res.TradesUpdated = result.TradesUpdated
		if !result.Changed {
			logger.L.Info("Trade store already at target schema", "version", target)
			return nil
		}
		if req.DryRun {
			logger.L.Info("Dry run, migrated store not written", "from", result.From, "to", result.To, "trades", res.TotalTrades)
			return nil
		}
		if err := s.repo.Save(doc); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}
		return nil
	}

	var err error
	if req.DryRun {
		err = run()
	} else {
		err = s.repo.WithLock(ctx, run)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
