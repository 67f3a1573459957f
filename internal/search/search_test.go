package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		t.Fatal(err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestServiceNoAPIKeyDegrades(t *testing.T) {
	s := NewService("", time.Second, nil)
	results, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("missing API key should not error, got %v", err)
	}
	if results != nil {
		t.Errorf("expected no results, got %v", results)
	}
}

func TestServiceSearch(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Subscription-Token")
		if got := r.URL.Query().Get("q"); got != "gpt-4o pricing" {
			t.Errorf("query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":"Pricing","url":"https://openai.com/pricing","description":"$2.50/$10 per million"}
		]}}`))
	}))
	defer srv.Close()

	s := NewService("test-key", time.Second, nil).WithEndpoint(srv.URL)
	results, err := s.Search(context.Background(), "gpt-4o pricing", 5)
	if err != nil {
		t.Fatal(err)
	}
	if gotToken != "test-key" {
		t.Errorf("subscription token = %q", gotToken)
	}
	if len(results) != 1 || results[0].URL != "https://openai.com/pricing" {
		t.Errorf("results = %+v", results)
	}
}

func TestServiceBackendErrorTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewService("test-key", time.Second, nil).WithEndpoint(srv.URL)
	s.pacer = NewPacer(nil, 0) // no pacing in tests

	for i := 0; i < 5; i++ {
		if _, err := s.Search(context.Background(), "q", 1); err == nil {
			t.Fatal("expected error from failing backend")
		}
	}

	// Breaker is open now: queries are skipped, not errored.
	results, err := s.Search(context.Background(), "q", 1)
	if err != nil || results != nil {
		t.Errorf("open breaker should skip silently, got (%v, %v)", results, err)
	}
}

func TestSearchRequestCounter(t *testing.T) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_search_requests_total",
		Help: "Test counter",
	}, []string{"status"})

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	s := NewService("test-key", time.Second, nil).
		WithEndpoint(good.URL).
		WithRequestCounter(requests)
	s.pacer = NewPacer(nil, 0)

	if _, err := s.Search(context.Background(), "q", 1); err != nil {
		t.Fatal(err)
	}
	if got := counterValue(t, requests, "ok"); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}

	s.WithEndpoint(bad.URL)
	if _, err := s.Search(context.Background(), "q", 1); err == nil {
		t.Fatal("expected error from failing backend")
	}
	if got := counterValue(t, requests, "error"); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestPacerLocalSpacing(t *testing.T) {
	p := NewPacer(nil, 20*time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("three calls should span at least two intervals, took %v", elapsed)
	}
}

func TestPacerContextCancel(t *testing.T) {
	p := NewPacer(nil, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := p.Wait(ctx); err == nil {
		t.Error("cancelled context should abort the wait")
	}
}
