package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoOpPublisher(t *testing.T) {
	t.Parallel()

	p := NoOp{}
	require.NoError(t, p.Publish(context.Background(), LoadEvent{Site: "https://example.org/"}))
	require.NoError(t, p.Close())
}

func TestLoadEventJSONShape(t *testing.T) {
	t.Parallel()

	event := LoadEvent{
		Site:        "https://www.feirasderua.com.br/",
		Date:        "2026-08-21",
		RowsFound:   42,
		Inserted:    40,
		Updated:     2,
		CompletedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "2026-08-21", decoded["date"])
	require.EqualValues(t, 42, decoded["rows_found"])
	require.EqualValues(t, 40, decoded["inserted"])
	require.EqualValues(t, 2, decoded["updated"])
}
