package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Result is one web search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Searcher is the capability resolvers depend on.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

// Service queries the Brave web search API. An empty API key degrades every
// search to an empty result list rather than an error, so resolver chains
// keep working without credentials. Calls are paced, cached and guarded by a
// circuit breaker.
type Service struct {
	apiKey   string
	endpoint string
	http     *http.Client
	pacer    *Pacer
	breaker  *CircuitBreaker
	cache    *Cache
	requests *prometheus.CounterVec
}

func NewService(apiKey string, timeout time.Duration, rdb *redis.Client) *Service {
	return &Service{
		apiKey:   apiKey,
		endpoint: braveEndpoint,
		http:     &http.Client{Timeout: timeout},
		pacer:    NewPacer(rdb, time.Second),
		breaker:  NewCircuitBreaker(5, time.Minute),
		cache:    NewCache(rdb, 12*time.Hour),
	}
}

// WithEndpoint overrides the backend endpoint. Used by tests.
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

// WithRequestCounter attaches a counter labelled by outcome
// (ok, error, cache_hit). Nil leaves the service uncounted.
func (s *Service) WithRequestCounter(c *prometheus.CounterVec) *Service {
	s.requests = c
	return s
}

func (s *Service) countRequest(status string) {
	if s.requests != nil {
		s.requests.WithLabelValues(status).Inc()
	}
}

func (s *Service) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if s.apiKey == "" {
		slog.Warn("search api key not set, skipping web search")
		return nil, nil
	}

	if cached, ok := s.cache.Get(ctx, query, count); ok {
		s.countRequest("cache_hit")
		return cached, nil
	}

	if !s.breaker.Allow() {
		slog.Warn("search circuit open, skipping query", "query", query)
		return nil, nil
	}

	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	results, err := s.query(ctx, query, count)
	if err != nil {
		s.breaker.RecordFailure()
		s.countRequest("error")
		slog.Error("search query failed", "query", query, "error", err)
		return nil, err
	}
	s.breaker.RecordSuccess()
	s.countRequest("ok")
	s.cache.Put(ctx, query, count, results)

	slog.Info("search completed", "query", query, "results", len(results))
	return results, nil
}

func (s *Service) query(ctx context.Context, query string, count int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var payload struct {
		Web struct {
			Results []Result `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}
	return payload.Web.Results, nil
}
