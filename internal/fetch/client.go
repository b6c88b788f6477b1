// Package fetch issues bounded-concurrency, rate-limited GETs against the
// source API with retry and exponential backoff.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pokedex-pipeline/internal/model"
)

const (
	defaultBackoffBase = 500 * time.Millisecond
	defaultUserAgent   = "pokedex-pipeline/1.0"
	listPageSize       = 100
)

// Options configures the client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	Concurrency int           // max simultaneous in-flight requests
	RatePerSec  float64       // global admission ceiling, requests/second
	Burst       int           // token bucket burst (default 1)
	Timeout     time.Duration // per-request timeout
	MaxAttempts int           // attempts per request before terminal failure
	BackoffBase time.Duration // first retry delay, doubles per attempt
	Transport   http.RoundTripper
}

// Client is the rate-limited fetcher. Its only shared mutable state is the
// limiter's token bucket and the in-flight semaphore, both internally
// synchronized.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	sem         chan struct{}
	maxAttempts int
	backoffBase time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 4
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	return &Client{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		sem:         make(chan struct{}, opts.Concurrency),
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
	}
}

// httpError carries a response status through the retry loop.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string { return fmt.Sprintf("HTTP %d: %s", e.status, e.body) }

// retryClass is the transition driver for the per-request retry loop.
type retryClass int

const (
	retryNone    retryClass = iota // terminal, fail now
	retryBackoff                   // transient, exponential backoff
	retryAfter                     // 429, honor Retry-After, separate budget
)

func classify(err error) retryClass {
	var he *httpError
	if errors.As(err, &he) {
		switch {
		case he.status == http.StatusTooManyRequests:
			return retryAfter
		case he.status >= 500 || he.status == http.StatusRequestTimeout:
			return retryBackoff
		default:
			return retryNone
		}
	}
	// Connection-level and timeout errors are transient.
	return retryBackoff
}

// get runs the rate-limited retrying GET for one path. It holds an in-flight
// slot for the whole request lifecycle so concurrency never exceeds the
// configured bound. Returns response body, last status seen, attempts used.
func (c *Client) get(ctx context.Context, path string) ([]byte, int, int, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, 0, 0, ctx.Err()
	}
	defer func() { <-c.sem }()

	attempts := 0
	rateRetries := 0
	var lastErr error
	lastStatus := 0

	for attempts < c.maxAttempts && rateRetries < c.maxAttempts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, lastStatus, attempts, err
		}

		body, retryAfterHint, err := c.doOnce(ctx, path)
		if err == nil {
			return body, http.StatusOK, attempts + 1, nil
		}
		lastErr = err
		var he *httpError
		if errors.As(err, &he) {
			lastStatus = he.status
		} else {
			lastStatus = 0
		}

		switch classify(err) {
		case retryNone:
			return nil, lastStatus, attempts + 1, lastErr
		case retryAfter:
			rateRetries++
			if rateRetries >= c.maxAttempts {
				return nil, lastStatus, attempts + rateRetries, lastErr
			}
			delay := retryAfterHint
			if delay <= 0 {
				delay = c.backoffBase << uint(rateRetries-1)
			}
			if !sleepCtx(ctx, delay) {
				return nil, lastStatus, attempts + rateRetries, ctx.Err()
			}
		case retryBackoff:
			attempts++
			if attempts >= c.maxAttempts {
				return nil, lastStatus, attempts, lastErr
			}
			if !sleepCtx(ctx, c.backoffBase<<uint(attempts-1)) {
				return nil, lastStatus, attempts, ctx.Err()
			}
		}
	}
	return nil, lastStatus, attempts + rateRetries, lastErr
}

// doOnce executes a single attempt. The Retry-After hint (if any) is returned
// alongside the error so the caller can honor it.
func (c *Client) doOnce(ctx context.Context, path string) ([]byte, time.Duration, error) {
	url := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		hint := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, hint, &httpError{status: resp.StatusCode, body: truncate(string(body), 120)}
	}
	return body, 0, nil
}

// FetchPokemon retrieves and decodes one pokemon payload. Terminal failures
// come back as *model.FetchError.
func (c *Client) FetchPokemon(ctx context.Context, id int) (*model.RawRecord, error) {
	body, status, attempts, err := c.get(ctx, fmt.Sprintf("pokemon/%d/", id))
	if err != nil {
		return nil, &model.FetchError{ID: id, StatusCode: status, Attempts: attempts, Err: err}
	}
	var raw model.RawRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &model.FetchError{ID: id, StatusCode: status, Attempts: attempts, Err: fmt.Errorf("decode: %w", err)}
	}
	return &raw, nil
}

// Species is the slice of the species payload the pipeline cares about.
type Species struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	EvolutionChain struct {
		URL string `json:"url"`
	} `json:"evolution_chain"`
}

// FetchSpecies retrieves species data for the evolution-chain enrichment.
func (c *Client) FetchSpecies(ctx context.Context, id int) (*Species, error) {
	body, status, attempts, err := c.get(ctx, fmt.Sprintf("pokemon-species/%d/", id))
	if err != nil {
		return nil, &model.FetchError{ID: id, StatusCode: status, Attempts: attempts, Err: err}
	}
	var sp Species
	if err := json.Unmarshal(body, &sp); err != nil {
		return nil, &model.FetchError{ID: id, StatusCode: status, Attempts: attempts, Err: fmt.Errorf("decode: %w", err)}
	}
	return &sp, nil
}

// EvolutionChainID resolves the numeric evolution chain id for a pokemon via
// its species payload. Returns nil when the species carries no chain URL.
func (c *Client) EvolutionChainID(ctx context.Context, id int) (*int, error) {
	sp, err := c.FetchSpecies(ctx, id)
	if err != nil {
		return nil, err
	}
	chainID, ok := IDFromURL(sp.EvolutionChain.URL)
	if !ok {
		return nil, nil
	}
	return &chainID, nil
}

type listPage struct {
	Count   int              `json:"count"`
	Next    *string          `json:"next"`
	Results []model.NamedRef `json:"results"`
}

// ListPokemonIDs walks the paginated listing endpoint and returns up to limit
// ids starting at offset, sorted ascending. Entries whose URL carries no
// numeric id are skipped.
func (c *Client) ListPokemonIDs(ctx context.Context, limit, offset int) ([]int, error) {
	ids := make([]int, 0, limit)
	for len(ids) < limit {
		pageLimit := limit - len(ids)
		if pageLimit > listPageSize {
			pageLimit = listPageSize
		}
		path := fmt.Sprintf("pokemon?limit=%d&offset=%d", pageLimit, offset)
		body, _, _, err := c.get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("list pokemon: %w", err)
		}
		var page listPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("list pokemon: decode: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}
		for _, r := range page.Results {
			if id, ok := IDFromURL(r.URL); ok {
				ids = append(ids, id)
			}
		}
		offset += len(page.Results)
		if page.Next == nil || *page.Next == "" {
			break
		}
	}
	sort.Ints(ids)
	return ids, nil
}

var idSuffix = regexp.MustCompile(`/(\d+)/?$`)

// IDFromURL extracts the trailing numeric id from an API resource URL.
func IDFromURL(url string) (int, bool) {
	m := idSuffix.FindStringSubmatch(strings.TrimSuffix(url, "/") + "/")
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
