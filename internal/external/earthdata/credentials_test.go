package earthdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/httputil"
	"github.com/wonny/aodgrid/pkg/logger"
)

const credsJSON = `{
  "accessKeyId": "ASIAEXAMPLE",
  "secretAccessKey": "secret",
  "sessionToken": "session",
  "expiration": "2024-01-01 13:00:00+00:00"
}`

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// loginServer mimics the DAAC endpoint redirecting to Earthdata Login
func loginServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/s3credentials", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.Redirect(w, r, "/oauth/authorize", http.StatusFound)
			return
		}
		hits.Add(1)
		w.Write([]byte(credsJSON))
	})
	mux.HandleFunc("/oauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/s3credentials", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newProvider(t *testing.T, server *httptest.Server, cfg config.EarthdataConfig) *Provider {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	cfg.S3CredentialsURL = server.URL + "/s3credentials"
	p := NewProvider(httputil.New(logger.Nop(), "earthdata-test").DisableRetry(), logger.Nop(), cfg).
		WithLoginHost(u.Host)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestCredentials_LoginFlowAndCache(t *testing.T) {
	var hits atomic.Int32
	server := loginServer(t, &hits)
	p := newProvider(t, server, config.EarthdataConfig{Username: "alice", Password: "pw"})

	creds, err := p.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ASIAEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "session", creds.SessionToken)
	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), creds.Expiration.UTC())

	// 유효기간 내 재호출 → 캐시 사용
	_, err = p.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	// 만료 임박 → 재발급
	p.now = func() time.Time { return fixedNow.Add(58 * time.Minute) }
	_, err = p.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCredentials_BadLogin(t *testing.T) {
	var hits atomic.Int32
	server := loginServer(t, &hits)
	p := newProvider(t, server, config.EarthdataConfig{Username: "alice", Password: "wrong"})

	_, err := p.Credentials(context.Background())
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestCredentials_NoLogin(t *testing.T) {
	var hits atomic.Int32
	server := loginServer(t, &hits)
	p := newProvider(t, server, config.EarthdataConfig{})

	_, err := p.Credentials(context.Background())
	assert.True(t, errors.Is(err, ErrNoLogin))
}

func TestRetrieve(t *testing.T) {
	var hits atomic.Int32
	server := loginServer(t, &hits)
	p := newProvider(t, server, config.EarthdataConfig{Username: "alice", Password: "pw"})

	aws, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ASIAEXAMPLE", aws.AccessKeyID)
	assert.Equal(t, "secret", aws.SecretAccessKey)
	assert.True(t, aws.CanExpire)
	assert.True(t, aws.Expires.Before(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)))
}

func TestParseCredentials(t *testing.T) {
	creds, err := parseCredentials([]byte(`{"accessKeyId":"a","secretAccessKey":"b","sessionToken":"c","expiration":"2024-05-01T10:00:00Z"}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), creds.Expiration)

	creds, err = parseCredentials([]byte(`{"accessKeyId":"a","secretAccessKey":"b","expiration":"soon"}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Hour), creds.Expiration)

	_, err = parseCredentials([]byte(`{"accessKeyId":""}`), fixedNow)
	assert.Error(t, err)
}
