package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feirasderua/gsc-sync/internal/gsc"
	"github.com/feirasderua/gsc-sync/internal/notify"
	"github.com/feirasderua/gsc-sync/internal/store"
)

const testSite = "https://www.feirasderua.com.br/"

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time {
	return c.now
}

type fakeFetcher struct {
	rows  []gsc.AnalyticsRow
	err   error
	start time.Time
	end   time.Time
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, start, end time.Time) ([]gsc.AnalyticsRow, error) {
	f.start, f.end = start, end
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeLoader struct {
	res    store.Result
	err    error
	called bool
	got    []gsc.AnalyticsRow
	site   string
}

func (l *fakeLoader) Load(_ context.Context, siteURL string, rows []gsc.AnalyticsRow) (store.Result, error) {
	l.called = true
	l.site = siteURL
	l.got = rows
	return l.res, l.err
}

type recordingArchiver struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *recordingArchiver) Save(_ context.Context, name string, data []byte) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[name] = data
	return nil
}

type recordingPublisher struct {
	events []notify.LoadEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.LoadEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func okAuth(f Fetcher) AuthFunc {
	return func(context.Context) (Fetcher, error) { return f, nil }
}

func sampleRows(n int) []gsc.AnalyticsRow {
	rows := make([]gsc.AnalyticsRow, n)
	for i := range rows {
		rows[i] = gsc.AnalyticsRow{
			Keys:        []string{"2026-08-21", "https://www.feirasderua.com.br/sp", "feira", "MOBILE"},
			Clicks:      1,
			Impressions: 10,
			CTR:         0.1,
			Position:    2,
		}
	}
	return rows
}

func TestRunComputesTargetDate(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 15, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{rows: sampleRows(1)}
	loader := &fakeLoader{res: store.Result{Inserted: 1, Message: "load complete: 1 inserted, 0 updated"}}
	r := NewRunner(okAuth(fetcher), loader, nil, nil, clock, Config{SiteURL: testSite}, nil)

	res, err := r.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "2026-08-21", res.DateProcessed)

	// Single-day range: start = end = target date.
	require.Equal(t, fetcher.start, fetcher.end)
	require.Equal(t, 21, fetcher.start.Day())
}

func TestRunPropagatesResultCounts(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{rows: sampleRows(5)}
	loader := &fakeLoader{res: store.Result{Inserted: 3, Updated: 2, Message: "load complete: 3 inserted, 2 updated"}}
	r := NewRunner(okAuth(fetcher), loader, nil, nil, clock, Config{SiteURL: testSite}, nil)

	res, err := r.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 5, res.RowsFound)
	require.Equal(t, 3, res.Inserted)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, testSite, loader.site)
	require.Len(t, loader.got, 5)
}

func TestRunAuthFailureAbortsBeforeFetch(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	loader := &fakeLoader{}
	auth := func(context.Context) (Fetcher, error) {
		return nil, gsc.ErrCredentialNotFound
	}
	r := NewRunner(auth, loader, nil, nil, clock, Config{SiteURL: testSite}, nil)

	res, err := r.Run(context.Background(), 2)
	require.Error(t, err)
	require.ErrorIs(t, err, gsc.ErrCredentialNotFound)
	require.Contains(t, err.Error(), "gsc authentication failed")
	require.False(t, loader.called)
	require.Equal(t, "2026-08-21", res.DateProcessed)
}

func TestRunFetchFailureAbortsBeforeLoad(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{err: &gsc.APIError{StatusCode: 500, Reason: "backend error"}}
	loader := &fakeLoader{}
	r := NewRunner(okAuth(fetcher), loader, nil, nil, clock, Config{SiteURL: testSite}, nil)

	res, err := r.Run(context.Background(), 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "gsc fetch failed")
	require.False(t, loader.called)
	require.Zero(t, res.RowsFound)
}

func TestRunEmptyFetchIsSuccess(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{}
	loader := &fakeLoader{res: store.Result{Message: "no data to load"}}
	archiver := &recordingArchiver{}
	publisher := &recordingPublisher{}
	r := NewRunner(okAuth(fetcher), loader, archiver, publisher, clock, Config{SiteURL: testSite, ArchivePrefix: "gsc-raw"}, nil)

	res, err := r.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Zero(t, res.RowsFound)
	require.Equal(t, "no data to load", res.Message)
	require.True(t, loader.called)

	// Nothing archived for an empty day, but the event still goes out.
	require.Empty(t, archiver.objects)
	require.Len(t, publisher.events, 1)
}

func TestRunLoadFailureReturnsPartialCounts(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{rows: sampleRows(3)}
	loader := &fakeLoader{
		res: store.Result{Inserted: 1, Message: "load aborted at row 1: deadlock"},
		err: errors.New("upsert row 1: deadlock"),
	}
	publisher := &recordingPublisher{}
	r := NewRunner(okAuth(fetcher), loader, nil, publisher, clock, Config{SiteURL: testSite}, nil)

	res, err := r.Run(context.Background(), 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres load failed")
	require.Equal(t, 1, res.Inserted)
	require.Equal(t, 3, res.RowsFound)

	// Failed runs never notify downstream.
	require.Empty(t, publisher.events)
}

func TestRunArchivesAndNotifies(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{rows: sampleRows(2)}
	loader := &fakeLoader{res: store.Result{Inserted: 2, Message: "load complete: 2 inserted, 0 updated"}}
	archiver := &recordingArchiver{}
	publisher := &recordingPublisher{}
	r := NewRunner(okAuth(fetcher), loader, archiver, publisher, clock, Config{SiteURL: testSite, ArchivePrefix: "gsc-raw"}, nil)

	_, err := r.Run(context.Background(), 2)
	require.NoError(t, err)

	data, ok := archiver.objects["gsc-raw/www.feirasderua.com.br/2026-08-21.json"]
	require.True(t, ok, "expected archived extract, got %v", archiver.objects)
	require.Contains(t, string(data), `"rows"`)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	require.Equal(t, "2026-08-21", event.Date)
	require.Equal(t, 2, event.RowsFound)
	require.Equal(t, 2, event.Inserted)
}

func TestRunArchiveFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	clock := fakeClock{now: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{rows: sampleRows(1)}
	loader := &fakeLoader{res: store.Result{Inserted: 1, Message: "load complete: 1 inserted, 0 updated"}}
	archiver := &recordingArchiver{err: errors.New("bucket gone")}
	publisher := &recordingPublisher{err: errors.New("topic gone")}
	r := NewRunner(okAuth(fetcher), loader, archiver, publisher, clock, Config{SiteURL: testSite}, nil)

	res, err := r.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
}
