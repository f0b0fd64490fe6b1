package laads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/httputil"
	"github.com/wonny/aodgrid/pkg/logger"
)

const listingHTML = `<html><body><table>
<tr><td><a href="../">Parent</a></td></tr>
<tr><td><a href="/archive/allData/5200/AERDB_L2_VIIRS_SNPP/2024/001/AERDB_L2_VIIRS_SNPP.A2024001.0006.002.2024001120000.nc">a</a></td></tr>
<tr><td><a href="AERDB_L2_VIIRS_SNPP.A2024001.0000.002.2024001120000.nc">b</a></td></tr>
<tr><td><a href="AERDB_L2_VIIRS_SNPP.A2024001.0006.002.2024001120000.nc?download=1">dup</a></td></tr>
<tr><td><a href="README.txt">readme</a></td></tr>
</table></body></html>`

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	hc := httputil.New(logger.Nop(), "laads-test").DisableRetry()
	c := NewClient(hc, logger.Nop(), config.LAADSConfig{
		BaseURL:    server.URL + "/archive/allData/",
		Collection: "5200",
	}, "secret-token")
	return c, server
}

func TestDirectoryURL(t *testing.T) {
	c := NewClient(httputil.New(logger.Nop(), "laads"), logger.Nop(), config.LAADSConfig{
		BaseURL:    "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData",
		Collection: "5200",
	}, "")

	got := c.DirectoryURL("AERDT_L2_VIIRS_SNPP", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData/5200/AERDT_L2_VIIRS_SNPP/2024/032/", got)
}

func TestListFiles(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(listingHTML))
	})

	files, err := c.ListFiles(context.Background(), "AERDB_L2_VIIRS_SNPP", day)
	require.NoError(t, err)

	assert.Equal(t, "/archive/allData/5200/AERDB_L2_VIIRS_SNPP/2024/001/", gotPath)
	assert.Equal(t, []string{
		"AERDB_L2_VIIRS_SNPP.A2024001.0000.002.2024001120000.nc",
		"AERDB_L2_VIIRS_SNPP.A2024001.0006.002.2024001120000.nc",
	}, files)
}

func TestListFiles_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	files, err := c.ListFiles(context.Background(), "AERDB_L2_VIIRS_SNPP", day)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListFiles_ServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.ListFiles(context.Background(), "AERDB_L2_VIIRS_SNPP", day)
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestDownload(t *testing.T) {
	var auth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte("CDF\x01granule"))
	})

	dir := t.TempDir()
	name := "AERDB_L2_VIIRS_SNPP.A2024001.0000.002.2024001120000.nc"

	path, err := c.Download(context.Background(), "AERDB_L2_VIIRS_SNPP", day, name, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), path)
	assert.Equal(t, "Bearer secret-token", auth)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CDF\x01granule", string(data))

	// 임시 파일 정리 확인
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownload_Unauthorized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	dir := t.TempDir()
	_, err := c.Download(context.Background(), "AERDB_L2_VIIRS_SNPP", day, "x.nc", dir)
	require.Error(t, err)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}
