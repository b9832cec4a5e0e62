// package upstream fetches catalog feed pages from the external catalog service.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/catalogd/internal/ingest"
	"github.com/desertthunder/catalogd/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const changesPath = "/catalog/changes"

// Options configures a [Client].
type Options struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RateLimit    float64 // requests per second, default 5
	PageSize     int
	Timeout      time.Duration
	HTTPClient   *http.Client // transport for feed and token requests, mostly for tests
}

// Client reads the upstream change feed. It implements [ingest.Source].
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a feed client.
//
// When ClientID is set, requests are authenticated with OAuth2 client credentials against TokenURL; otherwise the
// feed is read anonymously.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: upstream base_url", shared.ErrMissingConfig)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: upstream base_url: %v", shared.ErrInvalidConfig, err)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: opts.Timeout}
	}

	httpClient := base
	if opts.ClientID != "" {
		if opts.TokenURL == "" || opts.ClientSecret == "" {
			return nil, fmt.Errorf("%w: upstream client credentials need token_url and client_secret", shared.ErrMissingConfig)
		}
		conf := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = conf.Client(ctx)
		httpClient.Timeout = base.Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		pageSize:   opts.PageSize,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}, nil
}

// NewClientFromConfig creates a client from the [upstream] config section.
func NewClientFromConfig(conf shared.UpstreamConfig) (*Client, error) {
	return NewClient(Options{
		BaseURL:      conf.BaseURL,
		TokenURL:     conf.TokenURL,
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		RateLimit:    conf.RateLimit,
		PageSize:     conf.PageSize,
		Timeout:      time.Duration(conf.TimeoutSeconds) * time.Second,
	})
}

// FetchPage requests one page of changes, waiting on the rate limiter first.
func (c *Client) FetchPage(ctx context.Context, req ingest.PageRequest) (*ingest.Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	if req.Cursor != "" {
		query.Set("cursor", req.Cursor)
	}
	if c.pageSize > 0 {
		query.Set("limit", strconv.Itoa(c.pageSize))
	}
	if len(req.Full) > 0 {
		kinds := make([]string, len(req.Full))
		for i, kind := range req.Full {
			kinds[i] = kind.String()
		}
		query.Set("full", strings.Join(kinds, ","))
	}

	fullURL := c.baseURL + changesPath
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: upstream status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: upstream status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return ingest.ReadPage(resp.Body)
}
