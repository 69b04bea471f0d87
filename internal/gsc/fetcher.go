package gsc

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	searchconsole "google.golang.org/api/searchconsole/v1"
)

const dateLayout = "2006-01-02"

// DefaultRowLimit is the page size requested per Search Analytics query.
const DefaultRowLimit = 5000

// Fetcher pulls search-performance rows for a date range, paging
// through the API until a short or empty page signals the end.
type Fetcher struct {
	client   QueryClient
	rowLimit int64
	logger   *zap.Logger
}

// NewFetcher wraps a QueryClient. A non-positive rowLimit falls back
// to DefaultRowLimit.
func NewFetcher(client QueryClient, rowLimit int64, logger *zap.Logger) *Fetcher {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, rowLimit: rowLimit, logger: logger}
}

// Fetch accumulates every row for [start, end] (inclusive) in page
// order. Any API error aborts the whole fetch: partial pages are
// discarded and nil rows are returned alongside an *APIError.
func (f *Fetcher) Fetch(ctx context.Context, siteURL string, start, end time.Time) ([]AnalyticsRow, error) {
	startStr := start.Format(dateLayout)
	endStr := end.Format(dateLayout)
	f.logger.Info("fetching gsc data",
		zap.String("site", siteURL),
		zap.String("start_date", startStr),
		zap.String("end_date", endStr),
	)

	var all []AnalyticsRow
	var startRow int64
	for {
		req := &searchconsole.SearchAnalyticsQueryRequest{
			StartDate:  startStr,
			EndDate:    endStr,
			Dimensions: Dimensions,
			RowLimit:   f.rowLimit,
			StartRow:   startRow,
		}
		resp, err := f.client.Query(ctx, siteURL, req)
		if err != nil {
			apiErr := newAPIError(err)
			f.logger.Error("gsc query failed",
				zap.Int64("start_row", startRow),
				zap.Int("status", apiErr.StatusCode),
				zap.Error(err),
			)
			return nil, apiErr
		}
		if len(resp.Rows) == 0 {
			f.logger.Debug("no rows from offset", zap.Int64("start_row", startRow))
			break
		}
		for _, r := range resp.Rows {
			all = append(all, AnalyticsRow{
				Keys:        r.Keys,
				Clicks:      int64(math.Round(r.Clicks)),
				Impressions: int64(math.Round(r.Impressions)),
				CTR:         r.Ctr,
				Position:    r.Position,
			})
		}
		f.logger.Debug("received page",
			zap.Int("batch", len(resp.Rows)),
			zap.Int("total", len(all)),
		)
		if int64(len(resp.Rows)) < f.rowLimit {
			break
		}
		startRow += f.rowLimit
	}

	f.logger.Info("gsc fetch complete", zap.Int("rows", len(all)))
	return all, nil
}
