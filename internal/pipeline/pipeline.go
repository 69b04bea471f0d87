// Package pipeline runs the linear sync flow: authenticate against
// the GSC API, fetch all rows for the target date, upsert them into
// Postgres, then archive the raw extract and notify downstream
// consumers. Each run is fully independent; re-running a date is safe
// because every write is an upsert.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feirasderua/gsc-sync/internal/archive"
	"github.com/feirasderua/gsc-sync/internal/gsc"
	"github.com/feirasderua/gsc-sync/internal/metrics"
	"github.com/feirasderua/gsc-sync/internal/notify"
	"github.com/feirasderua/gsc-sync/internal/store"
)

const dateLayout = "2006-01-02"

// Clock abstracts time.Now for target-date computation.
type Clock interface {
	Now() time.Time
}

// Fetcher retrieves all analytics rows for a date range.
type Fetcher interface {
	Fetch(ctx context.Context, siteURL string, start, end time.Time) ([]gsc.AnalyticsRow, error)
}

// AuthFunc opens an authenticated session and returns a Fetcher.
// One attempt per run, no retries.
type AuthFunc func(ctx context.Context) (Fetcher, error)

// Loader upserts rows into the warehouse table.
type Loader interface {
	Load(ctx context.Context, siteURL string, rows []gsc.AnalyticsRow) (store.Result, error)
}

// Config holds the per-run constants.
type Config struct {
	SiteURL       string
	ArchivePrefix string
}

// Result is the outcome of one sync run, mirrored into the HTTP
// response.
type Result struct {
	DateProcessed string
	RowsFound     int
	Inserted      int
	Updated       int
	Message       string
}

// Runner executes sync runs.
type Runner struct {
	auth      AuthFunc
	loader    Loader
	archiver  archive.Provider
	publisher notify.Publisher
	clock     Clock
	cfg       Config
	logger    *zap.Logger
}

// NewRunner wires the pipeline stages. archiver and publisher may be
// nil; they default to no-ops.
func NewRunner(
	auth AuthFunc,
	loader Loader,
	archiver archive.Provider,
	publisher notify.Publisher,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if archiver == nil {
		archiver = archive.NoOp{}
	}
	if publisher == nil {
		publisher = notify.NoOp{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		auth:      auth,
		loader:    loader,
		archiver:  archiver,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one sync for the date daysAgo days before today. Any
// stage failure aborts the run; the returned Result carries whatever
// counts were accumulated before the failure.
func (r *Runner) Run(ctx context.Context, daysAgo int) (Result, error) {
	started := r.clock.Now()
	target := started.AddDate(0, 0, -daysAgo)
	dateStr := target.Format(dateLayout)

	log := r.logger.With(
		zap.String("site", r.cfg.SiteURL),
		zap.String("date", dateStr),
		zap.Int("days_ago", daysAgo),
	)
	log.Info("sync run started")

	fetcher, err := r.auth(ctx)
	if err != nil {
		return r.fail(log, started, Result{DateProcessed: dateStr}, fmt.Errorf("gsc authentication failed: %w", err))
	}
	log.Info("authenticated with gsc api")

	rows, err := fetcher.Fetch(ctx, r.cfg.SiteURL, target, target)
	if err != nil {
		return r.fail(log, started, Result{DateProcessed: dateStr}, fmt.Errorf("gsc fetch failed: %w", err))
	}
	log.Info("fetch complete", zap.Int("rows", len(rows)))
	metrics.ObserveRowsFetched(len(rows))

	loadRes, err := r.loader.Load(ctx, r.cfg.SiteURL, rows)
	res := Result{
		DateProcessed: dateStr,
		RowsFound:     len(rows),
		Inserted:      loadRes.Inserted,
		Updated:       loadRes.Updated,
		Message:       loadRes.Message,
	}
	if err != nil {
		return r.fail(log, started, res, fmt.Errorf("postgres load failed: %w", err))
	}
	log.Info("load complete", zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated))
	metrics.ObserveRowsUpserted(res.Inserted, res.Updated)

	// Best-effort: archival and notification never fail the run.
	r.archiveExtract(ctx, log, dateStr, rows)
	r.publishEvent(ctx, log, res)

	metrics.ObserveSyncRun("success", r.clock.Now().Sub(started))
	log.Info("sync run complete", zap.String("message", res.Message))
	return res, nil
}

func (r *Runner) fail(log *zap.Logger, started time.Time, res Result, err error) (Result, error) {
	metrics.ObserveSyncRun("error", r.clock.Now().Sub(started))
	log.Error("sync run failed", zap.Error(err))
	return res, err
}

func (r *Runner) archiveExtract(ctx context.Context, log *zap.Logger, date string, rows []gsc.AnalyticsRow) {
	if len(rows) == 0 {
		return
	}
	payload := struct {
		Site string             `json:"site"`
		Date string             `json:"date"`
		Rows []gsc.AnalyticsRow `json:"rows"`
	}{Site: r.cfg.SiteURL, Date: date, Rows: rows}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn("marshal raw extract failed", zap.Error(err))
		return
	}
	objectName := archive.ObjectName(r.cfg.ArchivePrefix, r.cfg.SiteURL, date)
	if err := r.archiver.Save(ctx, objectName, data); err != nil {
		log.Warn("archive raw extract failed", zap.String("object", objectName), zap.Error(err))
		return
	}
	log.Debug("raw extract archived", zap.String("object", objectName))
}

func (r *Runner) publishEvent(ctx context.Context, log *zap.Logger, res Result) {
	event := notify.LoadEvent{
		Site:        r.cfg.SiteURL,
		Date:        res.DateProcessed,
		RowsFound:   res.RowsFound,
		Inserted:    res.Inserted,
		Updated:     res.Updated,
		CompletedAt: r.clock.Now(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		log.Warn("publish load event failed", zap.Error(err))
		return
	}
	log.Debug("load event published", zap.String("date", event.Date))
}
