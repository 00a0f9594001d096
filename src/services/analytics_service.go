package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/tradeledger/src/analytics"
	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/store"
	"github.com/username/tradeledger/src/utils"
)

const (
	ckSnapshot = "res_snapshot_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type analyticsServiceImpl struct {
	repo        *store.Repository
	accountPath string
	reportCache *cache.Cache
	cachePath   string
	now         func() time.Time
}

// NewAnalyticsService builds the analytics service. When cachePath is set,
// reportCache is written there after every new snapshot so the next command
// (typically analyze after import) can reuse it; see OpenReportCache.
func NewAnalyticsService(repo *store.Repository, accountPath string, reportCache *cache.Cache, cachePath string) AnalyticsService {
	return &analyticsServiceImpl{
		repo:        repo,
		accountPath: accountPath,
		reportCache: reportCache,
		cachePath:   cachePath,
		now:         time.Now,
	}
}

func (s *analyticsServiceImpl) Compute(trades []models.Trade, capitalBase float64) Snapshot {
	snap, _ := s.compute(trades, capitalBase)
	return snap
}

// compute returns the snapshot for trades, served from the cache when the
// same trade set and capital base were seen before.
func (s *analyticsServiceImpl) compute(trades []models.Trade, capitalBase float64) (Snapshot, bool) {
	now := s.now()
	key, err := utils.GenerateETag(struct {
		Trades      []models.Trade `json:"trades"`
		CapitalBase float64        `json:"capital_base"`
	}{trades, capitalBase})
	if err != nil {
		logger.L.Warn("Could not fingerprint trade set, computing uncached", "error", err)
		return s.build(trades, capitalBase, now), false
	}

	cacheKey := fmt.Sprintf(ckSnapshot, key)
	if snap, ok := s.cached(cacheKey); ok {
		logger.L.Debug("Cache hit for analytics snapshot", "etag", key)
		snap.Statistics.ComputedAt = now.UTC().Format(time.RFC3339)
		snap.Analytics.GeneratedAt = now.UTC().Format(time.RFC3339)
		return snap, true
	}

	logger.L.Debug("Cache miss for analytics snapshot, computing", "etag", key, "trades", len(trades))
	snap := s.build(trades, capitalBase, now)
	// Entries are kept as JSON so SaveReportCache can write them as is.
	if data, err := json.Marshal(snap); err == nil {
		s.reportCache.Set(cacheKey, data, DefaultCacheExpiration)
		if s.cachePath != "" {
			if err := SaveReportCache(s.reportCache, s.cachePath); err != nil {
				logger.L.Warn("Could not save analytics cache", "path", s.cachePath, "error", err)
			}
		}
	}
	return snap, false
}

func (s *analyticsServiceImpl) cached(cacheKey string) (Snapshot, bool) {
	var snap Snapshot
	v, found := s.reportCache.Get(cacheKey)
	if !found {
		return snap, false
	}
	data, ok := v.([]byte)
	if !ok {
		return snap, false
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.L.Warn("Discarding unreadable cached snapshot", "key", cacheKey, "error", err)
		s.reportCache.Delete(cacheKey)
		return Snapshot{}, false
	}
	return snap, true
}

func (s *analyticsServiceImpl) build(trades []models.Trade, capitalBase float64, now time.Time) Snapshot {
	sorted := analytics.SortForAnalysis(trades)
	return Snapshot{
		Statistics: analytics.Calculate(sorted, capitalBase, now),
		Analytics:  analytics.BuildAnalytics(sorted, capitalBase, now),
	}
}

// Analyze recomputes statistics, writes them back into the store when it
// exists, and writes the analytics document to outputPath. It never fails:
// problems are logged and returned as warnings.
func (s *analyticsServiceImpl) Analyze(ctx context.Context, outputPath string) *AnalyzeResult {
	res := &AnalyzeResult{OutputPath: outputPath}
	capitalBase := loadCapitalBase(s.accountPath)

	var snap Snapshot
	computed := false
	if s.repo.Exists() {
		err := s.repo.WithLock(ctx, func() error {
			doc, err := s.repo.Load()
			if err != nil {
				return err
			}
			snap, res.FromCache = s.compute(doc.Trades, capitalBase)
			computed = true

			doc.Statistics = snap.Statistics
			doc.GeneratedAt = s.now().UTC().Format(time.RFC3339)
			if doc.Version == "" {
				doc.Version = models.LegacySchemaVersion
			}
			if err := s.repo.Save(doc); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
			}
			res.StoreUpdated = true
			return nil
		})
		if err != nil {
			logger.L.Error("Could not update trade store statistics", "path", s.repo.Path(), "error", err)
			res.Warnings = append(res.Warnings, err.Error())
		}
	} else {
		logger.L.Info("No trade store found, reporting empty statistics", "path", s.repo.Path())
	}
	if !computed {
		snap, res.FromCache = s.compute([]models.Trade{}, capitalBase)
	}
	res.Statistics = snap.Statistics

	data, err := json.MarshalIndent(snap.Analytics, "", "  ")
	if err == nil {
		err = store.WriteFileAtomic(outputPath, append(data, '\n'))
	}
	if err != nil {
		logger.L.Error("Could not write analytics document", "path", outputPath, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("analytics output: %v", err))
	} else {
		logger.L.Info("Analytics document written", "path", outputPath, "trades", snap.Analytics.TotalTrades)
	}
	return res
}
