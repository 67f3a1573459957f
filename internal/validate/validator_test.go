package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/af-corp/pricewatch/internal/catalog"
	"github.com/af-corp/pricewatch/internal/pricing"
	"github.com/af-corp/pricewatch/internal/store"
)

type fakeSnapshots struct {
	latest *store.Snapshot
	err    error
}

func (f *fakeSnapshots) LatestPricing(ctx context.Context, modelID uuid.UUID, providerID *uuid.UUID, sourceKind string) (*store.Snapshot, error) {
	return f.latest, f.err
}

func dec(s string) *decimal.Decimal {
	return pricing.Ptr(decimal.RequireFromString(s))
}

func TestValidatePricingBounds(t *testing.T) {
	v := NewValidator(&fakeSnapshots{}, 30)

	tests := []struct {
		name       string
		prompt     *decimal.Decimal
		completion *decimal.Decimal
		valid      bool
	}{
		{"in range", dec("3"), dec("15"), true},
		{"free", dec("0"), dec("0"), true},
		{"at cap", dec("1000"), dec("1000"), true},
		{"above cap", dec("1500"), dec("10"), false},
		{"negative", dec("-1"), nil, false},
		{"unknown dimensions", nil, nil, true},
	}

	for _, tt := range tests {
		valid, _ := v.ValidatePricing(tt.prompt, tt.completion, "acme/model", false)
		if valid != tt.valid {
			t.Errorf("%s: valid = %v, want %v", tt.name, valid, tt.valid)
		}
	}
}

func TestValidatePricingWarningsName(t *testing.T) {
	v := NewValidator(&fakeSnapshots{}, 30)
	valid, warnings := v.ValidatePricing(dec("2000"), dec("3000"), "acme/model", false)
	if valid {
		t.Fatal("expected invalid")
	}
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
}

func TestCheckPriceChangeNoBaseline(t *testing.T) {
	v := NewValidator(&fakeSnapshots{latest: nil}, 30)
	alert, report, err := v.CheckPriceChange(
		context.Background(), uuid.New(), nil, store.SourceBaselineCatalog, dec("3"), dec("15"))
	if err != nil {
		t.Fatal(err)
	}
	if alert {
		t.Error("no prior snapshot should never alert")
	}
	if report.Reason != "no baseline" {
		t.Errorf("reason = %q", report.Reason)
	}
}

func TestCheckPriceChangeAlert(t *testing.T) {
	snaps := &fakeSnapshots{latest: &store.Snapshot{
		Prompt:     dec("10"),
		Completion: dec("20"),
	}}
	v := NewValidator(snaps, 30)

	// 10 -> 15 is +50%, above the 30% threshold.
	alert, report, err := v.CheckPriceChange(
		context.Background(), uuid.New(), nil, store.SourceBaselineCatalog, dec("15"), dec("20"))
	if err != nil {
		t.Fatal(err)
	}
	if !alert {
		t.Fatal("expected alert for +50% prompt change")
	}
	if !report.PromptAlert || report.CompletionAlert {
		t.Errorf("alerts = (%v, %v), want (true, false)", report.PromptAlert, report.CompletionAlert)
	}
	if report.PromptChangePct == nil || !report.PromptChangePct.Equal(decimal.RequireFromString("50")) {
		t.Errorf("prompt change = %v, want 50", report.PromptChangePct)
	}
}

func TestCheckPriceChangeWithinThreshold(t *testing.T) {
	snaps := &fakeSnapshots{latest: &store.Snapshot{
		Prompt:     dec("10"),
		Completion: dec("20"),
	}}
	v := NewValidator(snaps, 30)

	alert, _, err := v.CheckPriceChange(
		context.Background(), uuid.New(), nil, store.SourceBaselineCatalog, dec("12"), dec("22"))
	if err != nil {
		t.Fatal(err)
	}
	if alert {
		t.Error("+20% and +10% are within a 30% threshold")
	}
}

func TestCheckPriceChangeZeroBaseline(t *testing.T) {
	// Percentage change from a zero price is undefined, never an alert.
	snaps := &fakeSnapshots{latest: &store.Snapshot{
		Prompt: dec("0"),
	}}
	v := NewValidator(snaps, 30)

	alert, report, err := v.CheckPriceChange(
		context.Background(), uuid.New(), nil, store.SourceBaselineCatalog, dec("5"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if alert {
		t.Error("zero baseline should not alert")
	}
	if report.PromptChangePct != nil {
		t.Errorf("change pct = %v, want nil", report.PromptChangePct)
	}
}

func TestCheckPriceChangeStoreError(t *testing.T) {
	snaps := &fakeSnapshots{err: errors.New("boom")}
	v := NewValidator(snaps, 30)

	_, _, err := v.CheckPriceChange(
		context.Background(), uuid.New(), nil, store.SourceBaselineCatalog, dec("5"), nil)
	if err == nil {
		t.Fatal("store error should propagate")
	}
}

func TestValidateVerification(t *testing.T) {
	// Under a million monthly requests, BYOK calls must be free.
	ok, _ := ValidateVerification(catalog.UsageReport{Cost: 0}, true, 100)
	if !ok {
		t.Error("free call under the monthly allowance should pass")
	}

	ok, warnings := ValidateVerification(catalog.UsageReport{Cost: 0.02}, true, 100)
	if ok || len(warnings) == 0 {
		t.Error("non-zero cost under the allowance should warn")
	}

	// Past the allowance the aggregate should track 5% of upstream.
	usage := catalog.UsageReport{
		Cost:        0.05,
		CostDetails: catalog.CostDetails{UpstreamInferenceCost: 1.0},
	}
	ok, _ = ValidateVerification(usage, true, 2_000_000)
	if !ok {
		t.Error("5% of upstream should validate")
	}

	usage.Cost = 0.50
	ok, _ = ValidateVerification(usage, true, 2_000_000)
	if ok {
		t.Error("cost far from 5% of upstream should warn")
	}
}
