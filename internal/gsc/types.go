package gsc

// AnalyticsRow is one Search Analytics result row. Keys holds the
// requested dimension values in request order (date, page, query,
// device); metric fields mirror the API response.
type AnalyticsRow struct {
	Keys        []string `json:"keys"`
	Clicks      int64    `json:"clicks"`
	Impressions int64    `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

// Dimensions requested on every Search Analytics query. The order
// determines the layout of AnalyticsRow.Keys.
var Dimensions = []string{"date", "page", "query", "device"}
