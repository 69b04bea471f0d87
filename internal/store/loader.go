// Package store persists search-performance rows into Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/feirasderua/gsc-sync/internal/gsc"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrMissingDSN reports that no database connection string was configured.
var ErrMissingDSN = errors.New("db.dsn is not configured")

const (
	searchTypeWeb    = "WEB"
	deviceUnknown    = "UNKNOWN"
	missingDimension = "N/A"
	defaultTable     = "gsc_performance"
)

// Every write goes through this statement: at most one row per
// composite key, non-key columns overwritten on conflict. The
// RETURNING clause distinguishes inserts from updates (xmax = 0 only
// for freshly inserted tuples).
//
// It assumes a table schema like:
//
//	CREATE TABLE gsc_performance (
//		date         DATE NOT NULL,
//		site_url     TEXT NOT NULL,
//		page         TEXT NOT NULL,
//		query        TEXT NOT NULL,
//		device       TEXT NOT NULL,
//		search_type  TEXT NOT NULL,
//		clicks       BIGINT NOT NULL,
//		impressions  BIGINT NOT NULL,
//		ctr          DOUBLE PRECISION NOT NULL,
//		position     DOUBLE PRECISION NOT NULL,
//		extracted_at TIMESTAMPTZ NOT NULL,
//		PRIMARY KEY (date, site_url, page, query, device, search_type)
//	);
const upsertSQLTemplate = `
INSERT INTO %s (
	date, site_url, page, query, device, search_type,
	clicks, impressions, ctr, position, extracted_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())
ON CONFLICT (date, site_url, page, query, device, search_type) DO UPDATE SET
	clicks = EXCLUDED.clicks,
	impressions = EXCLUDED.impressions,
	ctr = EXCLUDED.ctr,
	position = EXCLUDED.position,
	extracted_at = now()
RETURNING (xmax = 0) AS inserted`

// Config controls the Postgres connection pool used by the Loader.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Loader upserts analytics rows into the warehouse table.
type Loader struct {
	pool      txBeginner
	table     string
	upsertSQL string
	logger    *zap.Logger
}

// Result reports the outcome of one load.
type Result struct {
	Inserted int
	Updated  int
	Message  string
}

// NewLoader opens a pgx pool against cfg.DSN. A missing DSN fails
// before any connection attempt.
func NewLoader(ctx context.Context, cfg Config, logger *zap.Logger) (*Loader, error) {
	if cfg.DSN == "" {
		return nil, ErrMissingDSN
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewLoaderWithPool(pool, cfg.Table, logger)
}

// NewLoaderWithPool constructs a Loader from an existing pool
// (primarily for testing).
func NewLoaderWithPool(pool txBeginner, table string, logger *zap.Logger) (*Loader, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		pool:      pool,
		table:     table,
		upsertSQL: fmt.Sprintf(upsertSQLTemplate, table),
		logger:    logger,
	}, nil
}

// Close releases the underlying pool resources.
func (l *Loader) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// Load upserts all rows inside one transaction, stamping siteURL on
// every row. Any row failure rolls back the whole batch; the counts
// accumulated before the failure are returned for reporting but no
// longer reflect committed state.
func (l *Loader) Load(ctx context.Context, siteURL string, rows []gsc.AnalyticsRow) (Result, error) {
	if l == nil || l.pool == nil {
		return Result{}, fmt.Errorf("loader is not configured")
	}
	if len(rows) == 0 {
		return Result{Message: "no data to load"}, nil
	}

	l.logger.Info("loading rows", zap.Int("rows", len(rows)), zap.String("site", siteURL))

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			l.logger.Debug("rollback", zap.Error(rbErr))
		}
	}()

	var res Result
	for i, row := range rows {
		date, page, query, device := dimensionValues(row.Keys)
		var inserted bool
		err := tx.QueryRow(ctx, l.upsertSQL,
			date, siteURL, page, query, device, searchTypeWeb,
			row.Clicks, row.Impressions, row.CTR, row.Position,
		).Scan(&inserted)
		if err != nil {
			res.Message = fmt.Sprintf("load aborted at row %d: %v", i, err)
			return res, fmt.Errorf("upsert row %d: %w", i, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		res.Message = fmt.Sprintf("commit failed: %v", err)
		return res, fmt.Errorf("commit transaction: %w", err)
	}

	res.Message = fmt.Sprintf("load complete: %d inserted, %d updated", res.Inserted, res.Updated)
	l.logger.Info("load complete", zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated))
	return res, nil
}

// dimensionValues pads the dimension keys to (date, page, query,
// device), substituting sentinels for missing values and normalizing
// the device category to uppercase.
func dimensionValues(keys []string) (date, page, query, device string) {
	padded := [4]string{"", missingDimension, missingDimension, ""}
	copy(padded[:], keys)
	date, page, query, device = padded[0], padded[1], padded[2], padded[3]
	if page == "" {
		page = missingDimension
	}
	if query == "" {
		query = missingDimension
	}
	if device == "" {
		device = deviceUnknown
	} else {
		device = strings.ToUpper(device)
	}
	return date, page, query, device
}
