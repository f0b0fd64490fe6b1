package pipeline

import (
	"context"
	"time"

	"github.com/wonny/aodgrid/internal/external/laads"
	"github.com/wonny/aodgrid/internal/external/s3store"
)

// Fetcher brings one granule to local disk and returns its path
type Fetcher interface {
	Fetch(ctx context.Context, product string, date time.Time, file string) (string, error)
}

// S3Fetcher reads granules from the DAAC bucket (in-region, temporary keys)
type S3Fetcher struct {
	store *s3store.Store
	dir   string
}

// NewS3Fetcher creates a fetcher writing into dir
func NewS3Fetcher(store *s3store.Store, dir string) *S3Fetcher {
	return &S3Fetcher{store: store, dir: dir}
}

// Fetch implements Fetcher
func (f *S3Fetcher) Fetch(ctx context.Context, product string, date time.Time, file string) (string, error) {
	return f.store.Download(ctx, product, file, f.dir)
}

// HTTPSFetcher downloads granules from the archive web server
type HTTPSFetcher struct {
	client *laads.Client
	dir    string
}

// NewHTTPSFetcher creates a fetcher writing into dir
func NewHTTPSFetcher(client *laads.Client, dir string) *HTTPSFetcher {
	return &HTTPSFetcher{client: client, dir: dir}
}

// Fetch implements Fetcher
func (f *HTTPSFetcher) Fetch(ctx context.Context, product string, date time.Time, file string) (string, error) {
	return f.client.Download(ctx, product, date, file, f.dir)
}
