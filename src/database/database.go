// Package database keeps the import audit ledger: one row per import run and
// one row per canonical transaction that run brought in.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/models"
	_ "modernc.org/sqlite"
)

// timestampLayout has fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Ledger wraps the SQLite audit database.
type Ledger struct {
	db   *sql.DB
	path string
}

// ImportRun is one row of import_runs.
type ImportRun struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	Broker          string    `json:"broker"`
	FileName        string    `json:"file_name"`
	FileFingerprint string    `json:"file_fingerprint"`
	Transactions    int       `json:"transactions"`
	TradesMatched   int       `json:"trades_matched"`
	TradesAdded     int       `json:"trades_added"`
	DryRun          bool      `json:"dry_run"`
}

// NewRunID returns a fresh import run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open opens the ledger at databasePath, creating the file and its tables
// if needed.
func Open(databasePath string) (*Ledger, error) {
	if dir := filepath.Dir(databasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, path: databasePath}
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		broker TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_fingerprint TEXT,
		transactions INTEGER NOT NULL DEFAULT 0,
		trades_matched INTEGER NOT NULL DEFAULT 0,
		trades_added INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS imported_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		hash_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		executed_at TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		commission TEXT,
		broker TEXT,
		FOREIGN KEY(run_id) REFERENCES import_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_imported_transactions_run ON imported_transactions(run_id);
	`
	if _, err := db.Exec(createTableStatement); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}
	logger.L.Debug("Ledger tables ensured/created.")
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Path() string { return l.path }

// RecordRun stores run and, unless it is a dry run, the transactions it
// imported. Transactions whose hash is already in the ledger are skipped.
// It returns how many transactions were newly recorded.
func (l *Ledger) RecordRun(ctx context.Context, run ImportRun, txs []models.Transaction) (int, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	dbTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning ledger transaction: %w", err)
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(ctx, `INSERT INTO import_runs (id, started_at, broker, file_name, file_fingerprint, transactions, trades_matched, trades_added, dry_run) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timestampLayout), run.Broker, run.FileName, run.FileFingerprint,
		run.Transactions, run.TradesMatched, run.TradesAdded, boolToInt(run.DryRun))
	if err != nil {
		return 0, fmt.Errorf("error inserting import run %s: %w", run.ID, err)
	}

	inserted := 0
	if !run.DryRun && len(txs) > 0 {
		stmt, err := dbTx.PrepareContext(ctx, `INSERT INTO imported_transactions (run_id, hash_id, symbol, executed_at, side, quantity, price, commission, broker) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("error preparing insert statement: %w", err)
		}
		defer stmt.Close()

		for _, tx := range txs {
			_, err := stmt.ExecContext(ctx, run.ID, tx.HashId, tx.Symbol, tx.Timestamp.UTC().Format(timestampLayout),
				string(tx.Side), tx.Quantity.String(), tx.Price.String(), tx.Commission.String(), tx.Broker)
			if err != nil {
				if isUniqueViolation(err) {
					logger.L.Debug("Skipping already recorded transaction", "run_id", run.ID, "hash_id", tx.HashId)
					continue
				}
				return 0, fmt.Errorf("error inserting transaction %s (%s): %w", tx.HashId, tx.Symbol, err)
			}
			inserted++
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing import run: %w", err)
	}
	logger.L.Info("Recorded import run", "run_id", run.ID, "broker", run.Broker, "dry_run", run.DryRun, "transactions_recorded", inserted)
	return inserted, nil
}

// Runs returns the most recent import runs, newest first. limit <= 0 means
// all of them.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]ImportRun, error) {
	query := `SELECT id, started_at, broker, file_name, COALESCE(file_fingerprint, ''), transactions, trades_matched, trades_added, dry_run FROM import_runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying import runs: %w", err)
	}
	defer rows.Close()

	runs := []ImportRun{}
	for rows.Next() {
		var run ImportRun
		var startedAt string
		var dryRun int
		if err := rows.Scan(&run.ID, &startedAt, &run.Broker, &run.FileName, &run.FileFingerprint,
			&run.Transactions, &run.TradesMatched, &run.TradesAdded, &dryRun); err != nil {
			return nil, fmt.Errorf("error scanning import run row: %w", err)
		}
		if t, err := time.Parse(timestampLayout, startedAt); err == nil {
			run.StartedAt = t
		} else {
			logger.L.Warn("Unparseable import run timestamp", "run_id", run.ID, "started_at", startedAt)
		}
		run.DryRun = dryRun != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import run rows: %w", err)
	}
	return runs, nil
}

// TransactionCount returns how many transactions runID recorded.
func (l *Ledger) TransactionCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM imported_transactions WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting transactions for run %s: %w", runID, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
