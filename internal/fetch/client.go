// Package fetch pulls raw app-store reviews through a scraper actor API
// and applies the pre-analysis "thrifty" filter that keeps API spend down.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewradar/config"
)

var appIDPattern = regexp.MustCompile(`/id(\d+)`)

// Shortened in tests.
var retryBaseDelay = 2 * time.Second

// ExtractAppID pulls the numeric store ID out of an app URL. The actor
// accepts IDs without the "id" prefix; passing the ID is more reliable
// than passing the full URL.
func ExtractAppID(appURL string) string {
	m := appIDPattern.FindStringSubmatch(appURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// Client calls the review-scraper actor's synchronous run endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	actorID    string
	token      string
	limiter    *rate.Limiter
	maxRetries int
	country    string

	// OnRetry, when set, observes each retried actor call.
	OnRetry func()
}

func NewClient(cfg config.FetchConfig, country, token string) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		actorID:    cfg.ActorID,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: cfg.MaxRetries,
		country:    country,
	}
}

type actorInput struct {
	MaxItems  int      `json:"maxItems"`
	Country   string   `json:"country"`
	AppIDs    []string `json:"appIds,omitempty"`
	StartURLs []string `json:"startUrls,omitempty"`
}

// FetchReviews runs the actor for one app and returns the raw review
// objects. Items flagged by the actor as errors or empty results are
// dropped. Transient failures are retried with exponential backoff.
func (c *Client) FetchReviews(ctx context.Context, appURL string, maxItems int) ([]map[string]any, error) {
	if strings.TrimSpace(appURL) == "" {
		return nil, errors.New("empty app url")
	}
	input := actorInput{MaxItems: maxItems, Country: c.country}
	if id := ExtractAppID(appURL); id != "" {
		input.AppIDs = []string{id}
	} else {
		log.Printf("fetch: could not extract app id from %s, falling back to url", appURL)
		input.StartURLs = []string{strings.TrimSpace(appURL)}
	}

	var lastErr error
	backoff := retryBaseDelay
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		items, err := c.runActor(ctx, input)
		if err == nil {
			return filterActorErrors(items), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < c.maxRetries {
			if c.OnRetry != nil {
				c.OnRetry()
			}
			log.Printf("fetch: attempt %d/%d failed: %v (retrying in %s)", attempt, c.maxRetries, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
		}
	}
	return nil, fmt.Errorf("actor run failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) runActor(ctx context.Context, input actorInput) ([]map[string]any, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", c.baseURL, url.PathEscape(c.actorID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(payload)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("actor returned status %d: %s", resp.StatusCode, snippet)
	}
	var items []map[string]any
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode actor response: %w", err)
	}
	return items, nil
}

// filterActorErrors drops items the actor emitted as error markers rather
// than reviews.
func filterActorErrors(items []map[string]any) []map[string]any {
	valid := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if truthy(item["error"]) || truthy(item["noResults"]) {
			if msg, ok := item["message"].(string); ok && msg != "" {
				log.Printf("fetch: actor item error: %s", msg)
			}
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case nil:
		return false
	default:
		return true
	}
}
