package laads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/aodgrid/internal/runconfig"
	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/httputil"
	"github.com/wonny/aodgrid/pkg/logger"
	"github.com/wonny/aodgrid/pkg/redis"
)

// Catalog lists the granules available for one product-day
type Catalog interface {
	ListFiles(ctx context.Context, product string, date time.Time) ([]string, error)
}

// Client handles communication with the LAADS DAAC archive
// ⭐ SSOT: LAADS 아카이브 조회/다운로드는 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cache      *redis.Cache
	baseURL    string
	collection string
	token      string
	listingTTL time.Duration
}

// NewClient creates a new LAADS client
func NewClient(httpClient *httputil.Client, log *logger.Logger, cfg config.LAADSConfig, token string) *Client {
	ttl := cfg.ListingTTL
	if ttl <= 0 {
		ttl = redis.TTLListing
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		cache:      redis.NewCache(redis.Disabled(), "aodgrid"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		token:      token,
		listingTTL: ttl,
	}
}

// WithCache shares directory listings across processes
func (c *Client) WithCache(cache *redis.Cache) *Client {
	c.cache = cache
	return c
}

// DirectoryURL returns the archive directory of one product-day
// e.g. .../allData/5200/AERDB_L2_VIIRS_SNPP/2024/001/
func (c *Client) DirectoryURL(product string, date time.Time) string {
	year, doy := runconfig.DayOfYear(date)
	return fmt.Sprintf("%s/%s/%s/%d/%s/", c.baseURL, c.collection, product, year, doy)
}

// ListFiles returns the sorted, de-duplicated .nc granule names of one product-day.
// A missing directory means no granules were produced and is not an error.
func (c *Client) ListFiles(ctx context.Context, product string, date time.Time) ([]string, error) {
	key := redis.ListingKey(product, date.Format(runconfig.DateLayout))

	var cached []string
	if ok, err := c.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	dirURL := c.DirectoryURL(product, date)
	resp, err := c.httpClient.Get(ctx, dirURL)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", product, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.WithFields(map[string]interface{}{
			"product": product,
			"url":     dirURL,
		}).Warn("Archive directory not found")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode, URL: dirURL}
	}

	files, err := parseListing(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", dirURL, err)
	}

	if err := c.cache.Set(ctx, key, files, c.listingTTL); err != nil {
		c.logger.WithError(err).Warn("Failed to cache listing")
	}

	c.logger.WithFields(map[string]interface{}{
		"product": product,
		"date":    date.Format(runconfig.DateLayout),
		"files":   len(files),
	}).Info("Archive listing fetched")

	return files, nil
}

// parseListing extracts granule names from the directory HTML
func parseListing(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.SplitN(href, "?", 2)[0]
		if !strings.HasSuffix(href, ".nc") {
			return
		}
		name := path.Base(href)
		if seen[name] {
			return
		}
		seen[name] = true
		files = append(files, name)
	})

	sort.Strings(files)
	return files, nil
}

// Download fetches one granule over HTTPS into dir and returns the local path.
// The file is written under a temporary name and renamed when complete.
func (c *Client) Download(ctx context.Context, product string, date time.Time, file, dir string) (string, error) {
	dst := filepath.Join(dir, file)
	if st, err := os.Stat(dst); err == nil && st.Size() > 0 {
		return dst, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DirectoryURL(product, date)+file, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", file, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &httputil.StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, file+".part-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", file, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"file":  file,
		"bytes": n,
	}).Debug("Granule downloaded")

	return dst, nil
}
