package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Strob0t/PolicyForge/internal/domain"
	"github.com/Strob0t/PolicyForge/internal/domain/experience"
	"github.com/Strob0t/PolicyForge/internal/policy"
	"github.com/Strob0t/PolicyForge/internal/port/store"
)

// lowConfidenceThreshold marks predictions the actor is unsure about.
const lowConfidenceThreshold = 0.8

// EvaluatorService scores a trained checkpoint offline against the
// stored experience set.
type EvaluatorService struct {
	store    store.Store
	features *FeatureService
	log      *slog.Logger
}

// NewEvaluatorService creates a new EvaluatorService.
func NewEvaluatorService(st store.Store, features *FeatureService, log *slog.Logger) *EvaluatorService {
	return &EvaluatorService{store: st, features: features, log: log}
}

// TaskTypeStats is the per-task-type reward breakdown.
type TaskTypeStats struct {
	Count       int     `json:"count"`
	MeanReward  float64 `json:"mean_reward"`
	SuccessRate float64 `json:"success_rate"`
}

// Report is the result of evaluating one checkpoint.
type Report struct {
	Checkpoint         string                   `json:"checkpoint"`
	Epoch              int                      `json:"epoch"`
	Experiences        int                      `json:"experiences"`
	ActionAccuracy     float64                  `json:"action_accuracy"`
	RandomAccuracy     float64                  `json:"random_accuracy"`
	MeanConfidence     float64                  `json:"mean_confidence"`
	LowConfidenceRatio float64                  `json:"low_confidence_ratio"`
	MeanReward         float64                  `json:"mean_reward"`
	RewardStdDev       float64                  `json:"reward_std_dev"`
	MinReward          float64                  `json:"min_reward"`
	MaxReward          float64                  `json:"max_reward"`
	SuccessRate        float64                  `json:"success_rate"`
	MeanValue          float64                  `json:"mean_value"`
	ValueMAE           float64                  `json:"value_mae"`
	RewardCorrelation  float64                  `json:"reward_correlation"`
	ByTaskType         map[string]TaskTypeStats `json:"by_task_type"`
	Criteria           map[string]bool          `json:"criteria"`
	Passed             int                      `json:"passed"`
	Verdict            string                   `json:"verdict"`
}

// Evaluate loads a checkpoint and replays every stored experience through
// it: the deterministic action choice is compared against the recorded
// action's arg-max slot, and the critic's value against the recorded
// reward. Success here means a positive reward.
func (s *EvaluatorService) Evaluate(ctx context.Context, checkpointPath string) (*Report, error) {
	agent, ckpt, err := policy.LoadCheckpoint(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	exps, err := s.store.Load(ctx, experience.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load experiences: %w", err)
	}
	if len(exps) == 0 {
		return nil, fmt.Errorf("%w: no experiences to evaluate against", domain.ErrValidation)
	}

	states, actions := s.features.EncodeBatch(ctx, exps)

	report := &Report{
		Checkpoint:     checkpointPath,
		Epoch:          ckpt.Epoch,
		Experiences:    len(exps),
		RandomAccuracy: 1.0 / float64(agent.ActionDim()),
		ByTaskType:     map[string]TaskTypeStats{},
	}

	var (
		correct     int
		lowConf     int
		sumConf     float64
		sumAbsErr   float64
		positives   int
		values      = make([]float64, len(exps))
		rewards     = make([]float64, len(exps))
		taskRewards = map[string][]float64{}
	)

	for i := range exps {
		taken := floats.MaxIdx(actions[i])
		predicted, confidence := agent.SelectAction(states[i], true)
		value := agent.Value(states[i])

		values[i] = value
		rewards[i] = exps[i].Reward
		sumAbsErr += math.Abs(value - exps[i].Reward)
		sumConf += confidence
		if confidence < lowConfidenceThreshold {
			lowConf++
		}
		if predicted == taken {
			correct++
		}
		if exps[i].Reward > 0 {
			positives++
		}

		tt := exps[i].Metadata.TaskType
		if tt == "" {
			tt = "unknown"
		}
		taskRewards[tt] = append(taskRewards[tt], exps[i].Reward)
	}

	n := float64(len(exps))
	report.ActionAccuracy = float64(correct) / n
	report.MeanConfidence = sumConf / n
	report.LowConfidenceRatio = float64(lowConf) / n
	report.SuccessRate = float64(positives) / n
	report.MeanValue = stat.Mean(values, nil)
	report.ValueMAE = sumAbsErr / n
	mean, std := stat.MeanStdDev(rewards, nil)
	report.MeanReward = mean
	if len(exps) > 1 {
		report.RewardStdDev = std
		corr := stat.Correlation(values, rewards, nil)
		if !math.IsNaN(corr) {
			report.RewardCorrelation = corr
		}
	}
	report.MinReward, report.MaxReward = minMax(rewards)
	for tt, rs := range taskRewards {
		wins := 0
		for _, r := range rs {
			if r > 0 {
				wins++
			}
		}
		report.ByTaskType[tt] = TaskTypeStats{
			Count:       len(rs),
			MeanReward:  stat.Mean(rs, nil),
			SuccessRate: float64(wins) / float64(len(rs)),
		}
	}

	report.score()

	s.log.Info("evaluation finished",
		"checkpoint", checkpointPath,
		"accuracy", report.ActionAccuracy,
		"value_mae", report.ValueMAE,
		"verdict", report.Verdict,
	)
	return report, nil
}

// score fills in the four pass/fail thresholds and the overall verdict.
func (r *Report) score() {
	r.Criteria = map[string]bool{
		"accuracy_above_70pct":     r.ActionAccuracy > 0.7,
		"success_rate_above_85pct": r.SuccessRate > 0.85,
		"mean_reward_positive":     r.MeanReward > 0,
		"correlation_above_0.3":    r.RewardCorrelation > 0.3,
	}
	for _, ok := range r.Criteria {
		if ok {
			r.Passed++
		}
	}
	switch {
	case r.Passed == 4:
		r.Verdict = "excellent"
	case r.Passed >= 3:
		r.Verdict = "good"
	case r.Passed >= 2:
		r.Verdict = "fair"
	default:
		r.Verdict = "poor"
	}
}

// Comparison is the result of evaluating two checkpoints on the same data.
type Comparison struct {
	A             *Report `json:"a"`
	B             *Report `json:"b"`
	AccuracyDelta float64 `json:"accuracy_delta"`
	ValueMAEDelta float64 `json:"value_mae_delta"`
	Winner        string  `json:"winner"`
}

// Compare evaluates two checkpoints against the same experience set and
// picks a winner by criteria passed, breaking ties on action accuracy.
func (s *EvaluatorService) Compare(ctx context.Context, pathA, pathB string) (*Comparison, error) {
	a, err := s.Evaluate(ctx, pathA)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", pathA, err)
	}
	b, err := s.Evaluate(ctx, pathB)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", pathB, err)
	}

	cmp := &Comparison{
		A:             a,
		B:             b,
		AccuracyDelta: b.ActionAccuracy - a.ActionAccuracy,
		ValueMAEDelta: b.ValueMAE - a.ValueMAE,
	}
	switch {
	case b.Passed > a.Passed, b.Passed == a.Passed && b.ActionAccuracy > a.ActionAccuracy:
		cmp.Winner = pathB
	case a.Passed > b.Passed, a.ActionAccuracy > b.ActionAccuracy:
		cmp.Winner = pathA
	default:
		cmp.Winner = "tie"
	}
	return cmp, nil
}
