// Package gsc authenticates against the Google Search Console API and
// fetches search-performance rows for a property.
package gsc

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	searchconsole "google.golang.org/api/searchconsole/v1"
)

// QueryClient issues one Search Analytics query page.
type QueryClient interface {
	Query(ctx context.Context, siteURL string, req *searchconsole.SearchAnalyticsQueryRequest) (*searchconsole.SearchAnalyticsQueryResponse, error)
}

// Source holds the credentials and query shape needed to open an
// authenticated session against the Search Console API.
type Source struct {
	CredentialsFile string
	Scopes          []string
	RowLimit        int64
	Logger          *zap.Logger
}

// Authenticate builds a service-account client and wraps it in a
// Fetcher. A single attempt, no retries; a missing key file yields
// ErrCredentialNotFound before any network call.
func (s *Source) Authenticate(ctx context.Context) (*Fetcher, error) {
	if _, err := os.Stat(s.CredentialsFile); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, s.CredentialsFile)
		}
		return nil, fmt.Errorf("stat credentials file: %w", err)
	}

	opts := []option.ClientOption{option.WithCredentialsFile(s.CredentialsFile)}
	if len(s.Scopes) > 0 {
		opts = append(opts, option.WithScopes(s.Scopes...))
	}
	svc, err := searchconsole.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("authenticate gsc: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("gsc authentication succeeded")
	return NewFetcher(&serviceClient{svc: svc}, s.RowLimit, logger), nil
}

// serviceClient adapts *searchconsole.Service to QueryClient.
type serviceClient struct {
	svc *searchconsole.Service
}

func (c *serviceClient) Query(ctx context.Context, siteURL string, req *searchconsole.SearchAnalyticsQueryRequest) (*searchconsole.SearchAnalyticsQueryResponse, error) {
	resp, err := c.svc.Searchanalytics.Query(siteURL, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search analytics query: %w", err)
	}
	return resp, nil
}
