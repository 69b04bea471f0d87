// Package notify publishes load-complete events so downstream
// consumers (dashboards, aggregation jobs) know a date partition is
// fresh.
package notify

import (
	"context"
	"time"
)

// LoadEvent describes one completed sync run.
type LoadEvent struct {
	Site        string    `json:"site"`
	Date        string    `json:"date"`
	RowsFound   int       `json:"rows_found"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher abstracts the event backend.
type Publisher interface {
	Publish(ctx context.Context, event LoadEvent) error
	Close() error
}

// NoOp drops every event. Used when no notification backend is
// configured.
type NoOp struct{}

// Publish for NoOp does nothing and always returns nil.
func (NoOp) Publish(context.Context, LoadEvent) error {
	return nil
}

// Close for NoOp does nothing.
func (NoOp) Close() error {
	return nil
}
