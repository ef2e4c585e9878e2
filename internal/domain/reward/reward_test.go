package reward_test

import (
	"math"
	"testing"

	"github.com/Strob0t/PolicyForge/internal/domain/reward"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"30 min", 30},
		{"1 hour", 60},
		{"2 hours", 120},
		{"1 day", 480},
		{"2 days", 960},
		{"1.5 hours", 90},
		{"45min", 45},
		{"garbage", 60},
		{"", 60},
		{"1h 30m", 60}, // no recognized unit word, falls back
		{"MIN", 60},    // unit without a number, falls back
	}

	for _, tt := range tests {
		if got := reward.ParseTime(tt.input); got != tt.want {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestComputeSuccessBaseline(t *testing.T) {
	// Success, no estimate recorded: estimated defaults to 60 minutes and
	// actual defaults to estimated, so efficiency is exactly 1.0.
	// 100 + 20 + 10 + 15 + 10 + 10 + 0.5*5 = 167.5
	got := reward.Compute(reward.Outcome{Success: true}, reward.Context{})
	if got != 167.5 {
		t.Fatalf("expected 167.5, got %v", got)
	}
}

func TestComputeFailureBaseline(t *testing.T) {
	// Failure with one error: -100 + 10 - 10 + 10 + 10 + 2.5 = -77.5.
	// No time-efficiency term on failure.
	got := reward.Compute(reward.Outcome{Success: false, ErrorCount: 1}, reward.Context{})
	if got != -77.5 {
		t.Fatalf("expected -77.5, got %v", got)
	}
}

func TestComputeTimeEfficiencyCapped(t *testing.T) {
	actual := 10.0
	// 120 estimated / 10 actual = 12, capped at 2.0 -> +40.
	got := reward.Compute(
		reward.Outcome{Success: true, ActualTime: &actual},
		reward.Context{EstimatedTime: "2 hours"},
	)
	want := 100.0 + 40 + 10 + 15 + 10 + 10 + 2.5
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestComputeZeroActualTime(t *testing.T) {
	// Zero actual time is floored to 1 minute, never a division by zero.
	actual := 0.0
	got := reward.Compute(
		reward.Outcome{Success: true, ActualTime: &actual},
		reward.Context{EstimatedTime: "30 min"},
	)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("expected finite reward, got %v", got)
	}
}

func TestComputeResourcePenalty(t *testing.T) {
	minimum := 1
	o := reward.Outcome{
		Success:          false,
		ResourcesUsed:    []string{"backend", "frontend", "testing"},
		MinimumResources: &minimum,
	}
	// -100 - 5*(3-1) + 15 + 10 + 10 + 2.5 = -72.5
	if got := reward.Compute(o, reward.Context{}); got != -72.5 {
		t.Fatalf("expected -72.5, got %v", got)
	}
}

func TestComputeSafetyViolation(t *testing.T) {
	base := reward.Compute(reward.Outcome{Success: true}, reward.Context{})
	violated := reward.Compute(reward.Outcome{Success: true, SafetyViolations: true}, reward.Context{})
	// +10 flips to -50: a 60-point swing.
	if base-violated != 60 {
		t.Fatalf("expected a 60-point swing, got %v", base-violated)
	}
}

func TestComputeDeterministic(t *testing.T) {
	actual := 42.0
	conf := 0.9
	o := reward.Outcome{
		Success:       true,
		ActualTime:    &actual,
		ResourcesUsed: []string{"backend"},
		ErrorCount:    2,
	}
	c := reward.Context{EstimatedTime: "1 hour", Confidence: &conf}

	first := reward.Compute(o, c)
	for range 10 {
		if got := reward.Compute(o, c); got != first {
			t.Fatalf("reward not deterministic: %v != %v", got, first)
		}
	}
}
