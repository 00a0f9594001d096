package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/username/tradeledger/src/database"
	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/parsers"
	"github.com/username/tradeledger/src/parsers/csvutil"
	"github.com/username/tradeledger/src/processors"
	"github.com/username/tradeledger/src/schema"
	"github.com/username/tradeledger/src/security/validation"
	"github.com/username/tradeledger/src/store"
	"github.com/username/tradeledger/src/utils"
)

type importServiceImpl struct {
	registry     *parsers.Registry
	enricher     processors.Enricher
	matcher      processors.Matcher
	repo         *store.Repository
	ledger       *database.Ledger
	analytics    AnalyticsService
	accountPath  string
	maxSizeBytes int64
	now          func() time.Time
}

// NewImportService wires the import pipeline. ledger may be nil, in which
// case runs are not audited.
func NewImportService(
	registry *parsers.Registry,
	enricher processors.Enricher,
	matcher processors.Matcher,
	repo *store.Repository,
	ledger *database.Ledger,
	analyticsService AnalyticsService,
	accountPath string,
	maxSizeBytes int64,
) ImportService {
	return &importServiceImpl{
		registry:     registry,
		enricher:     enricher,
		matcher:      matcher,
		repo:         repo,
		ledger:       ledger,
		analytics:    analyticsService,
		accountPath:  accountPath,
		maxSizeBytes: maxSizeBytes,
		now:          time.Now,
	}
}

func (s *importServiceImpl) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	overallStartTime := s.now()
	logger.L.Info("Import START", "path", req.Path, "broker", req.Broker, "dryRun", req.DryRun)

	content, err := s.readInput(req.Path)
	if err != nil {
		return nil, err
	}

	adapter, err := s.selectAdapter(req.Broker, content)
	if err != nil {
		return nil, err
	}

	txs, err := adapter.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	txs = s.enricher.Process(txs)

	matched := s.matcher.Match(txs, adapter.Name(), 1)
	accepted := make([]models.Trade, 0, len(matched))
	for _, t := range matched {
		if ok, problems := adapter.Validate(t); !ok {
			logger.L.Warn("Dropping matched trade that failed validation", "broker", adapter.Name(), "ticker", t.Ticker, "entry_date", t.EntryDate, "errors", problems)
			continue
		} else if len(problems) > 0 {
			logger.L.Info("Trade validation warnings", "broker", adapter.Name(), "ticker", t.Ticker, "warnings", problems)
		}
		accepted = append(accepted, t)
	}

	res := &ImportResult{
		Broker:         adapter.Name(),
		FileName:       filepath.Base(req.Path),
		Transactions:   len(txs),
		TradesMatched:  len(matched),
		TradesRejected: len(matched) - len(accepted),
		DryRun:         req.DryRun,
	}
	if err := s.mergeIntoStore(ctx, accepted, req.DryRun, res); err != nil {
		return nil, err
	}

	s.recordRun(ctx, res, utils.FingerprintBytes([]byte(content)), txs)

	logger.L.Info("Import END", "broker", res.Broker, "transactions", res.Transactions, "matched", res.TradesMatched, "added", res.TradesAdded, "duration", time.Since(overallStartTime))
	return res, nil
}

// readInput loads the CSV file after checking its size and that its content
// sniffs as text.
func (s *importServiceImpl) readInput(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInputUnreadable, path)
	}
	if s.maxSizeBytes > 0 && info.Size() > s.maxSizeBytes {
		logger.L.Warn("Import file too large", "path", path, "fileSize", info.Size(), "limit", s.maxSizeBytes)
		return "", fmt.Errorf("%w: file is %d bytes, limit is %d", ErrInvalidContent, info.Size(), s.maxSizeBytes)
	}

	if _, err := validation.ValidateFileContentByMagicBytes(f); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	return string(data), nil
}

func (s *importServiceImpl) selectAdapter(broker, content string) (parsers.Adapter, error) {
	if broker != "" {
		a, err := s.registry.Get(broker)
		if err != nil {
			return nil, err
		}
		logger.L.Info("Using requested broker", "broker", a.Name())
		return a, nil
	}
	a, ok := s.registry.Detect(content)
	if !ok {
		return nil, fmt.Errorf("%w (supported: %v); use --broker to choose one", ErrBrokerUndetected, s.registry.Names())
	}
	logger.L.Info("Detected broker", "broker", a.Name(), "display", a.DisplayName())
	return a, nil
}

// mergeIntoStore conforms incoming trades to the store's schema version and
// merges them. The whole load-merge-save runs under the store lock; a dry
// run only loads and merges in memory.
func (s *importServiceImpl) mergeIntoStore(ctx context.Context, incoming []models.Trade, dryRun bool, res *ImportResult) error {
	apply := func(doc *models.TradeStore) {
		conformed := schema.ConformAll(incoming, doc.EffectiveVersion())
		merged, added := store.Merge(doc.Trades, conformed)
		doc.Trades = merged
		res.TradesAdded = added
		res.TotalTrades = len(merged)
		res.Added = merged[len(merged)-added:]
	}

	if dryRun {
		doc, err := s.repo.Load()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}
		apply(doc)
		logger.L.Info("Dry run, trade store not written", "would_add", res.TradesAdded)
		return nil
	}

	err := s.repo.WithLock(ctx, func() error {
		doc, err := s.repo.Load()
		if err != nil {
			return err
		}
		apply(doc)
		if res.TradesAdded == 0 && s.repo.Exists() {
			logger.L.Info("No new trades, trade store unchanged", "path", s.repo.Path())
			return nil
		}

		if doc.Version == "" {
			doc.Version = models.CurrentSchemaVersion
		}
		snap := s.analytics.Compute(doc.Trades, loadCapitalBase(s.accountPath))
		doc.Statistics = snap.Statistics
		doc.GeneratedAt = s.now().UTC().Format(time.RFC3339)
		return s.repo.Save(doc)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return nil
}

// recordRun writes the audit ledger row. The store is already saved at this
// point, so a ledger failure is logged rather than failing the import.
func (s *importServiceImpl) recordRun(ctx context.Context, res *ImportResult, fingerprint string, txs []models.Transaction) {
	if s.ledger == nil {
		return
	}
	run := database.ImportRun{
		ID:              database.NewRunID(),
		StartedAt:       s.now(),
		Broker:          res.Broker,
		FileName:        res.FileName,
		FileFingerprint: fingerprint,
		Transactions:    res.Transactions,
		TradesMatched:   res.TradesMatched,
		TradesAdded:     res.TradesAdded,
		DryRun:          res.DryRun,
	}
	if _, err := s.ledger.RecordRun(ctx, run, txs); err != nil {
		logger.L.Error("Failed to record import run in audit ledger", "path", s.ledger.Path(), "error", err)
		return
	}
	res.RunID = run.ID
}

// AddTrades merges a manually maintained trade list (YAML, or JSON) into
// the store using the same dedup policy as CSV imports.
func (s *importServiceImpl) AddTrades(ctx context.Context, path string, dryRun bool) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}
	trades, err := decodeCorpus(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}

	accepted := make([]models.Trade, 0, len(trades))
	for i, t := range trades {
		if ok, problems := csvutil.ValidateRequired(t); !ok {
			logger.L.Warn("Skipping invalid corpus trade", "index", i, "ticker", t.Ticker, "errors", problems)
			continue
		}
		accepted = append(accepted, t)
	}

	res := &ImportResult{
		Broker:         "manual",
		FileName:       filepath.Base(path),
		Transactions:   len(trades),
		TradesMatched:  len(trades),
		TradesRejected: len(trades) - len(accepted),
		DryRun:         dryRun,
	}
	if err := s.mergeIntoStore(ctx, accepted, dryRun, res); err != nil {
		return nil, err
	}
	s.recordRun(ctx, res, utils.FingerprintBytes(data), nil)
	logger.L.Info("Corpus merge complete", "path", path, "trades", len(trades), "added", res.TradesAdded, "dryRun", dryRun)
	return res, nil
}

var errEmptyCorpus = errors.New("no trades in corpus file")

// decodeCorpus accepts either a bare list of trades or a mapping with a
// "trades" list. YAML is a superset of JSON so both formats decode here.
func decodeCorpus(data []byte) ([]models.Trade, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyCorpus
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errEmptyCorpus
	}
	node := root.Content[0]
	if node.Kind == yaml.MappingNode {
		var wrapped struct {
			Trades yaml.Node `yaml:"trades"`
		}
		if err := node.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("decode corpus: %w", err)
		}
		if wrapped.Trades.Kind == 0 {
			return nil, fmt.Errorf("decode corpus: mapping has no trades list")
		}
		node = &wrapped.Trades
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("decode corpus: expected a list of trades, got line %d", node.Line)
	}
	var trades []models.Trade
	if err := node.Decode(&trades); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if len(trades) == 0 {
		return nil, errEmptyCorpus
	}
	return trades, nil
}
