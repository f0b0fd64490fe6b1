package earthdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/httputil"
	"github.com/wonny/aodgrid/pkg/logger"
	"github.com/wonny/aodgrid/pkg/redis"
)

// DefaultLoginHost is the Earthdata Login (URS) OAuth host
const DefaultLoginHost = "urs.earthdata.nasa.gov"

// ErrNoLogin is returned when neither a token nor a username/password is configured
var ErrNoLogin = errors.New("earthdata: no login configured")

// expiryMargin refreshes keys before they actually expire
const expiryMargin = 5 * time.Minute

// S3Credentials are short-lived keys for the DAAC bucket
type S3Credentials struct {
	AccessKeyID     string    `json:"accessKeyId"`
	SecretAccessKey string    `json:"secretAccessKey"`
	SessionToken    string    `json:"sessionToken"`
	Expiration      time.Time `json:"expiration"`
}

// Valid reports whether the keys can still be used at now
func (c S3Credentials) Valid(now time.Time) bool {
	return c.AccessKeyID != "" && now.Add(expiryMargin).Before(c.Expiration)
}

// credentialsResponse is the endpoint payload; expiration is "2006-01-02 15:04:05+00:00"
type credentialsResponse struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
	Expiration      string `json:"expiration"`
}

// Provider fetches temporary S3 credentials with an Earthdata login and caches
// them until shortly before expiry. It implements aws.CredentialsProvider.
// ⭐ SSOT: Earthdata 인증은 이 Provider에서만 (프로세스 환경변수 변경 없음)
type Provider struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cache      *redis.Cache
	cfg        config.EarthdataConfig
	loginHost  string
	now        func() time.Time

	mu      sync.Mutex
	current S3Credentials
}

// NewProvider creates a credentials provider.
// The HTTP client gets a cookie jar and a redirect policy that answers the
// Earthdata Login challenge.
func NewProvider(httpClient *httputil.Client, log *logger.Logger, cfg config.EarthdataConfig) *Provider {
	p := &Provider{
		httpClient: httpClient,
		logger:     log,
		cache:      redis.NewCache(redis.Disabled(), "aodgrid"),
		cfg:        cfg,
		loginHost:  DefaultLoginHost,
		now:        time.Now,
	}
	httpClient.WithCookieJar().WithCheckRedirect(p.checkRedirect)
	return p
}

// WithCache shares credentials across processes
func (p *Provider) WithCache(cache *redis.Cache) *Provider {
	p.cache = cache
	return p
}

// WithLoginHost overrides the login host (tests)
func (p *Provider) WithLoginHost(host string) *Provider {
	p.loginHost = host
	return p
}

func (p *Provider) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("earthdata: too many redirects")
	}
	if req.URL.Host == p.loginHost && p.cfg.HasLogin() {
		req.SetBasicAuth(p.cfg.Username, p.cfg.Password)
	}
	return nil
}

// Credentials returns valid S3 keys, fetching new ones when needed
func (p *Provider) Credentials(ctx context.Context) (S3Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.current.Valid(now) {
		return p.current, nil
	}

	key := redis.CredentialsKey(p.cfg.S3CredentialsURL, p.cfg.Username)
	var cached S3Credentials
	if ok, err := p.cache.Get(ctx, key, &cached); err == nil && ok && cached.Valid(now) {
		p.current = cached
		return cached, nil
	}

	creds, err := p.fetch(ctx)
	if err != nil {
		return S3Credentials{}, err
	}
	p.current = creds

	ttl := creds.Expiration.Sub(now) - expiryMargin
	if ttl > redis.TTLCredentials {
		ttl = redis.TTLCredentials
	}
	if ttl > 0 {
		if err := p.cache.Set(ctx, key, creds, ttl); err != nil {
			p.logger.WithError(err).Warn("Failed to cache S3 credentials")
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"expires": creds.Expiration.Format(time.RFC3339),
	}).Info("Temporary S3 credentials obtained")

	return creds, nil
}

func (p *Provider) fetch(ctx context.Context) (S3Credentials, error) {
	if p.cfg.Token == "" && !p.cfg.HasLogin() {
		return S3Credentials{}, ErrNoLogin
	}
	if _, err := url.Parse(p.cfg.S3CredentialsURL); err != nil || p.cfg.S3CredentialsURL == "" {
		return S3Credentials{}, fmt.Errorf("earthdata: invalid credentials endpoint %q", p.cfg.S3CredentialsURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.S3CredentialsURL, nil)
	if err != nil {
		return S3Credentials{}, fmt.Errorf("create request: %w", err)
	}
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return S3Credentials{}, fmt.Errorf("fetch s3 credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return S3Credentials{}, &httputil.StatusError{StatusCode: resp.StatusCode, URL: p.cfg.S3CredentialsURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return S3Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	return parseCredentials(body, p.now())
}

var expirationLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

func parseCredentials(body []byte, now time.Time) (S3Credentials, error) {
	var raw credentialsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return S3Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	if raw.AccessKeyID == "" || raw.SecretAccessKey == "" {
		return S3Credentials{}, errors.New("earthdata: credentials response missing keys")
	}

	creds := S3Credentials{
		AccessKeyID:     raw.AccessKeyID,
		SecretAccessKey: raw.SecretAccessKey,
		SessionToken:    raw.SessionToken,
		Expiration:      now.Add(time.Hour), // 엔드포인트 기본 유효시간
	}
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, raw.Expiration); err == nil {
			creds.Expiration = t
			break
		}
	}
	return creds, nil
}

// Retrieve implements aws.CredentialsProvider
func (p *Provider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds, err := p.Credentials(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}

	out, err := credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
	).Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	out.Source = "EarthdataS3Credentials"
	out.CanExpire = true
	out.Expires = creds.Expiration.Add(-expiryMargin)
	return out, nil
}
