package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.RunTotal == nil {
		t.Error("RunTotal should not be nil")
	}
	if m.RunDurationSeconds == nil {
		t.Error("RunDurationSeconds should not be nil")
	}
	if m.SnapshotsTotal == nil {
		t.Error("SnapshotsTotal should not be nil")
	}
	if m.ResolveFailTotal == nil {
		t.Error("ResolveFailTotal should not be nil")
	}
	if m.StagedModels == nil {
		t.Error("StagedModels should not be nil")
	}
}

func TestSnapshotCounter(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one
	reg := prometheus.NewRegistry()

	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_pricewatch_snapshots_total",
		Help: "Test counter",
	}, []string{"source"})
	reg.MustRegister(snapshots)

	snapshots.WithLabelValues("baseline_catalog").Inc()
	snapshots.WithLabelValues("baseline_catalog").Inc()
	snapshots.WithLabelValues("provider_site").Inc()

	counter, err := snapshots.GetMetricWithLabelValues("baseline_catalog")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 2 {
		t.Errorf("expected 2 baseline snapshots, got %v", *metric.Counter.Value)
	}
}
