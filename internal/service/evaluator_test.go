package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/Strob0t/PolicyForge/internal/domain"
	"github.com/Strob0t/PolicyForge/internal/port/messagequeue"
)

// trainFixture generates data, trains a small model and returns the
// evaluator plus the written checkpoint paths.
func trainFixture(t *testing.T) (*EvaluatorService, string, string) {
	t.Helper()
	outputDir := t.TempDir()
	collector := newTestCollector(t)
	features := NewFeatureService(nil, testLogger())
	gen := NewGeneratorService(collector, testLogger())
	trainer := NewTrainerService(collector.store, features, messagequeue.Noop{}, testLogger(), testTrainingConfig(outputDir))

	ctx := context.Background()
	if _, err := gen.Generate(ctx, 100, 42); err != nil {
		t.Fatal(err)
	}
	if _, err := trainer.Train(ctx); err != nil {
		t.Fatal(err)
	}

	evaluator := NewEvaluatorService(collector.store, features, testLogger())
	return evaluator,
		filepath.Join(outputDir, BestCheckpointFile),
		filepath.Join(outputDir, FinalCheckpointFile)
}

func TestEvaluate(t *testing.T) {
	evaluator, best, _ := trainFixture(t)

	report, err := evaluator.Evaluate(context.Background(), best)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if report.Experiences != 100 {
		t.Errorf("experiences = %d, want 100", report.Experiences)
	}
	if report.ActionAccuracy < 0 || report.ActionAccuracy > 1 {
		t.Errorf("accuracy %g out of [0,1]", report.ActionAccuracy)
	}
	if report.RandomAccuracy <= 0 {
		t.Errorf("random baseline should be positive, got %g", report.RandomAccuracy)
	}
	if math.IsNaN(report.ValueMAE) || report.ValueMAE < 0 {
		t.Errorf("bad value MAE %g", report.ValueMAE)
	}
	if report.MeanConfidence <= 0 || report.MeanConfidence > 1 {
		t.Errorf("mean confidence %g out of (0,1]", report.MeanConfidence)
	}
	if report.LowConfidenceRatio < 0 || report.LowConfidenceRatio > 1 {
		t.Errorf("low confidence ratio %g out of [0,1]", report.LowConfidenceRatio)
	}
	if report.SuccessRate < 0 || report.SuccessRate > 1 {
		t.Errorf("success rate %g out of [0,1]", report.SuccessRate)
	}
	if math.IsNaN(report.MeanReward) {
		t.Error("mean reward is NaN")
	}
	if report.MinReward > report.MaxReward {
		t.Errorf("reward range inverted: [%g, %g]", report.MinReward, report.MaxReward)
	}
	if len(report.ByTaskType) == 0 {
		t.Error("expected per-task-type breakdown")
	}
	total := 0
	for tt, s := range report.ByTaskType {
		if s.Count == 0 {
			t.Errorf("task type %q has zero count", tt)
		}
		if s.SuccessRate < 0 || s.SuccessRate > 1 {
			t.Errorf("task type %q success rate %g out of [0,1]", tt, s.SuccessRate)
		}
		if math.IsNaN(s.MeanReward) {
			t.Errorf("task type %q mean reward is NaN", tt)
		}
		total += s.Count
	}
	if total != report.Experiences {
		t.Errorf("per-task counts sum to %d, want %d", total, report.Experiences)
	}
}

// The verdict is built from four fixed thresholds on the report itself:
// accuracy > 70%, success rate > 85%, positive mean reward and a value
// correlation above 0.3.
func TestEvaluateVerdictThresholds(t *testing.T) {
	evaluator, best, _ := trainFixture(t)

	report, err := evaluator.Evaluate(context.Background(), best)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := map[string]bool{
		"accuracy_above_70pct":     report.ActionAccuracy > 0.7,
		"success_rate_above_85pct": report.SuccessRate > 0.85,
		"mean_reward_positive":     report.MeanReward > 0,
		"correlation_above_0.3":    report.RewardCorrelation > 0.3,
	}
	if len(report.Criteria) != len(want) {
		t.Fatalf("expected %d criteria, got %v", len(want), report.Criteria)
	}
	passed := 0
	for name, wantOK := range want {
		gotOK, present := report.Criteria[name]
		if !present {
			t.Errorf("criterion %q missing from report", name)
			continue
		}
		if gotOK != wantOK {
			t.Errorf("criterion %q = %v, want %v", name, gotOK, wantOK)
		}
		if wantOK {
			passed++
		}
	}
	if report.Passed != passed {
		t.Errorf("passed = %d, want %d", report.Passed, passed)
	}

	verdicts := map[int]string{0: "poor", 1: "poor", 2: "fair", 3: "good", 4: "excellent"}
	if report.Verdict != verdicts[report.Passed] {
		t.Errorf("verdict %q for %d passed, want %q", report.Verdict, report.Passed, verdicts[report.Passed])
	}
}

func TestReportScore(t *testing.T) {
	strong := &Report{ActionAccuracy: 0.9, SuccessRate: 0.95, MeanReward: 42, RewardCorrelation: 0.6}
	strong.score()
	if strong.Passed != 4 || strong.Verdict != "excellent" {
		t.Errorf("all thresholds met: passed=%d verdict=%q", strong.Passed, strong.Verdict)
	}

	weak := &Report{ActionAccuracy: 0.2, SuccessRate: 0.4, MeanReward: -10, RewardCorrelation: 0.05}
	weak.score()
	if weak.Passed != 0 || weak.Verdict != "poor" {
		t.Errorf("no thresholds met: passed=%d verdict=%q", weak.Passed, weak.Verdict)
	}

	// Thresholds are strict inequalities.
	edge := &Report{ActionAccuracy: 0.7, SuccessRate: 0.85, MeanReward: 0, RewardCorrelation: 0.3}
	edge.score()
	if edge.Passed != 0 {
		t.Errorf("boundary values should not pass: passed=%d", edge.Passed)
	}
}

func TestEvaluateMissingCheckpoint(t *testing.T) {
	collector := newTestCollector(t)
	features := NewFeatureService(nil, testLogger())
	evaluator := NewEvaluatorService(collector.store, features, testLogger())

	_, err := evaluator.Evaluate(context.Background(), "/nonexistent/checkpoint.json")
	if err == nil {
		t.Fatal("expected error for missing checkpoint")
	}
}

func TestEvaluateEmptyStore(t *testing.T) {
	evaluator, best, _ := trainFixture(t)

	// Point the evaluator at an empty store.
	empty := newTestCollector(t)
	evaluator.store = empty.store

	_, err := evaluator.Evaluate(context.Background(), best)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	evaluator, best, final := trainFixture(t)

	cmp, err := evaluator.Compare(context.Background(), best, final)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.A == nil || cmp.B == nil {
		t.Fatal("expected both reports")
	}
	if cmp.Winner == "" {
		t.Error("expected a winner or tie")
	}
	wantDelta := cmp.B.ActionAccuracy - cmp.A.ActionAccuracy
	if cmp.AccuracyDelta != wantDelta {
		t.Errorf("accuracy delta %g, want %g", cmp.AccuracyDelta, wantDelta)
	}
}
