package batches

import (
	"context"
	"net/http"
	"strings"
	"time"

	"batchcal/internal/httpcache"
	appLog "batchcal/internal/log"
	"batchcal/internal/model"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.com/v1".
	BaseURL string
	// Token, if set, is sent as a bearer token.
	Token string
	// CacheDir is where responses are cached between runs.
	CacheDir string
	// Location interprets zone-less timestamps. Nil means time.Local.
	Location *time.Location
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client fetches the batch list from the platform API.
type Client struct {
	fetcher  *httpcache.Fetcher
	endpoint string
	token    string
	loc      *time.Location
}

func NewClient(cfg ClientConfig) *Client {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		fetcher:  httpcache.New(cfg.CacheDir, cfg.HTTPClient),
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/batches",
		token:    cfg.Token,
		loc:      loc,
	}
}

// Endpoint is the URL the client requests.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Fetch performs the conditional GET and returns the raw body.
func (c *Client) Fetch(ctx context.Context) (httpcache.Result, error) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return c.fetcher.Get(ctx, c.endpoint, h)
}

// Batches fetches and normalizes the batch list. Per-record issues are
// logged and returned; only transport or envelope failures are errors.
func (c *Client) Batches(ctx context.Context) ([]model.Batch, []Issue, error) {
	res, err := c.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	list, issues, err := Normalize(res.Body, c.loc)
	if err != nil {
		return nil, nil, err
	}
	for _, is := range issues {
		appLog.Warn("batch data issue", "index", is.Index, "id", is.ID, "field", is.Field, "err", is.Err.Error())
	}
	appLog.Info("batches fetched",
		"url", httpcache.Redact(c.endpoint),
		"count", len(list),
		"issues", len(issues),
		"from_cache", res.FromCache,
	)
	return list, issues, nil
}
