package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Observations after Init must not panic.
	ObserveSyncRun("success", 2*time.Second)
	ObserveSyncRun("error", time.Second)
	ObserveRowsFetched(10)
	ObserveRowsFetched(0)
	ObserveRowsUpserted(5, 3)
	ObserveRowsUpserted(0, 0)
	ObserveHTTPRequest(http.MethodPost, "/trigger-gsc-sync", http.StatusOK, 150*time.Millisecond)
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveSyncRun("success", time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "gscsync_runs_total")
}
