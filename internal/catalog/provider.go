// internal/catalog/provider.go
// TMDB-backed content provider: popular listing and genre discovery

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

// Provider is the remote movie catalog
type Provider interface {
	GetPopular(ctx context.Context) ([]MovieSummary, error)
	DiscoverByGenres(ctx context.Context, genreIDs []int) ([]MovieSummary, error)
}

// TMDBConfig configures the TMDB client
type TMDBConfig struct {
	// v4 read access token, sent as a bearer token
	APIKey    string
	BaseURL   string
	Language  string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	RateBurst int

	// Consecutive failures before the circuit opens
	MaxFailures uint32
	// How long the circuit stays open before a trial request
	OpenTimeout time.Duration
}

// TMDBClient talks to the TMDB v3 API. Every call goes through a rate
// limiter and a circuit breaker; any failure maps to ErrProviderUnavailable.
type TMDBClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]MovieSummary]
}

// NewTMDBClient creates a TMDB client
func NewTMDBClient(cfg TMDBConfig) *TMDBClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	return &TMDBClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		cb:         newBreaker("tmdb", cfg.MaxFailures, cfg.OpenTimeout),
	}
}

func newBreaker(name string, maxFailures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[[]MovieSummary] {
	breakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]MovieSummary](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the provider's health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// GetPopular returns the provider's popular listing (first page)
func (c *TMDBClient) GetPopular(ctx context.Context) ([]MovieSummary, error) {
	return c.list(ctx, "popular", "/movie/popular", nil)
}

// DiscoverByGenres returns movies in any of the given genres, most popular first
func (c *TMDBClient) DiscoverByGenres(ctx context.Context, genreIDs []int) ([]MovieSummary, error) {
	ids := make([]string, 0, len(genreIDs))
	for _, id := range genreIDs {
		ids = append(ids, strconv.Itoa(id))
	}

	params := url.Values{}
	params.Set("with_genres", strings.Join(ids, "|"))
	params.Set("sort_by", "popularity.desc")
	params.Set("include_adult", "false")

	return c.list(ctx, "discover", "/discover/movie", params)
}

func (c *TMDBClient) list(ctx context.Context, endpoint, path string, params url.Values) ([]MovieSummary, error) {
	start := time.Now()
	defer func() {
		providerLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	movies, err := c.cb.Execute(func() ([]MovieSummary, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.fetch(ctx, path, params)
	})
	if err != nil {
		outcome := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		providerRequests.WithLabelValues(endpoint, outcome).Inc()
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("content provider call failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, endpoint, err)
	}

	providerRequests.WithLabelValues(endpoint, "success").Inc()
	return movies, nil
}

func (c *TMDBClient) fetch(ctx context.Context, path string, params url.Values) ([]MovieSummary, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("page", "1")
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, withoutURL(err, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body tmdbListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	movies := make([]MovieSummary, 0, len(body.Results))
	for _, m := range body.Results {
		movies = append(movies, m.summary())
	}
	return movies, nil
}

// withoutURL drops the request URL from transport errors so query
// parameters never reach logs or callers
func withoutURL(err error, path string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s %s: %w", urlErr.Op, path, urlErr.Err)
	}
	return err
}
