// Package archive persists raw GSC extracts as blobs, keeping an
// audit copy of what each sync run loaded. The abstraction allows the
// service to run without any blob backend configured.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Provider abstracts the blob backend used for raw extracts.
type Provider interface {
	// Save uploads data to a specified object path/key in the blob store.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOp discards every extract. Used when no archive backend is
// configured or during dry runs.
type NoOp struct{}

// Save for NoOp does nothing and always returns nil.
func (NoOp) Save(context.Context, string, []byte) error {
	return nil
}

// ObjectName builds the canonical object key for one day's extract:
// <prefix>/<site-host>/<date>.json.
func ObjectName(prefix, siteURL, date string) string {
	host := "unknown"
	if u, err := url.Parse(siteURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", host, date)
	}
	return fmt.Sprintf("%s/%s/%s.json", strings.TrimSuffix(prefix, "/"), host, date)
}
