package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/Strob0t/PolicyForge/internal/config"
	"github.com/Strob0t/PolicyForge/internal/domain"
	"github.com/Strob0t/PolicyForge/internal/domain/encoding"
	"github.com/Strob0t/PolicyForge/internal/domain/experience"
	"github.com/Strob0t/PolicyForge/internal/policy"
	"github.com/Strob0t/PolicyForge/internal/port/messagequeue"
	"github.com/Strob0t/PolicyForge/internal/port/store"
)

// MinTrainingExperiences is the smallest dataset the trainer accepts:
// anything below cannot produce a non-empty validation split worth having.
const MinTrainingExperiences = 10

// Checkpoint file names within the output directory.
const (
	BestCheckpointFile  = "checkpoint_best.json"
	FinalCheckpointFile = "checkpoint_final.json"
	HistoryFile         = "training_history.json"
)

// TrainerService runs the offline actor-critic training loop over the
// stored experience set and writes checkpoints.
type TrainerService struct {
	store    store.Store
	features *FeatureService
	queue    messagequeue.Queue
	log      *slog.Logger
	cfg      config.Training
}

// NewTrainerService creates a new TrainerService.
func NewTrainerService(st store.Store, features *FeatureService, queue messagequeue.Queue, log *slog.Logger, cfg config.Training) *TrainerService {
	return &TrainerService{store: st, features: features, queue: queue, log: log, cfg: cfg}
}

// EpochRecord captures the averaged training diagnostics of one epoch
// plus the validation reward measured after it.
type EpochRecord struct {
	Epoch      int     `json:"epoch"`
	ActorLoss  float64 `json:"actor_loss"`
	CriticLoss float64 `json:"critic_loss"`
	Entropy    float64 `json:"entropy"`
	TotalLoss  float64 `json:"total_loss"`
	MeanReward float64 `json:"mean_reward"`
	ValReward  float64 `json:"val_reward"`
}

// TrainResult summarizes a completed training run.
type TrainResult struct {
	Experiences    int           `json:"experiences"`
	Epochs         int           `json:"epochs"`
	BestEpoch      int           `json:"best_epoch"`
	BestValReward  float64       `json:"best_val_reward"`
	CheckpointPath string        `json:"checkpoint_path"`
	History        []EpochRecord `json:"history"`
}

// Train loads all stored experiences, splits off a validation tail and
// runs the configured number of epochs. The best checkpoint by validation
// reward and the final checkpoint are both written to the output
// directory, along with the per-epoch history.
func (s *TrainerService) Train(ctx context.Context) (*TrainResult, error) {
	exps, err := s.store.Load(ctx, experience.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load experiences: %w", err)
	}
	if len(exps) < MinTrainingExperiences {
		return nil, fmt.Errorf("%w: need at least %d experiences, have %d",
			domain.ErrValidation, MinTrainingExperiences, len(exps))
	}

	states, actions := s.features.EncodeBatch(ctx, exps)
	rewards := make([]float64, len(exps))
	for i := range exps {
		rewards[i] = exps[i].Reward
	}

	// Positional split: training head, validation tail.
	nVal := int(float64(len(exps)) * s.cfg.ValidationSplit)
	if nVal < 1 {
		nVal = 1
	}
	nTrain := len(exps) - nVal

	agent := policy.NewAgent(policy.Config{
		StateDim:     encoding.StateDim,
		ActionDim:    encoding.ActionDim,
		LearningRate: s.cfg.LearningRate,
		WeightDecay:  s.cfg.WeightDecay,
		Seed:         s.cfg.Seed,
	})
	rng := rand.New(rand.NewSource(s.cfg.Seed))

	s.log.Info("training started",
		"experiences", len(exps),
		"train", nTrain,
		"validation", nVal,
		"epochs", s.cfg.Epochs,
		"batch_size", s.cfg.BatchSize,
	)

	batchSize := s.cfg.BatchSize
	if batchSize > nTrain {
		batchSize = nTrain
	}
	valBatch := batchSize
	if valBatch > nVal {
		valBatch = nVal
	}

	result := &TrainResult{
		Experiences:   len(exps),
		Epochs:        s.cfg.Epochs,
		BestValReward: math.Inf(-1),
	}

	for epoch := 1; epoch <= s.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training interrupted: %w", err)
		}

		var epochSum policy.Metrics
		for b := 0; b < s.cfg.BatchesPerEpoch; b++ {
			idx := sampleIndices(rng, nTrain, batchSize, 0)
			sm, am, rw := gatherBatch(states, actions, rewards, idx)
			m := policy.TrainStep(agent, sm, am, rw, s.cfg.EntropyCoef)
			accumulate(&epochSum, m)
		}
		rec := averaged(epochSum, s.cfg.BatchesPerEpoch)
		rec.Epoch = epoch

		// Validation metric: mean reward over a sampled validation batch.
		valIdx := sampleIndices(rng, nVal, valBatch, nTrain)
		rec.ValReward = meanRewardAt(rewards, valIdx)
		result.History = append(result.History, rec)

		s.log.Info("epoch finished",
			"epoch", epoch,
			"actor_loss", rec.ActorLoss,
			"critic_loss", rec.CriticLoss,
			"entropy", rec.Entropy,
			"val_reward", rec.ValReward,
		)

		if rec.ValReward > result.BestValReward {
			result.BestValReward = rec.ValReward
			result.BestEpoch = epoch
			path := filepath.Join(s.cfg.OutputDir, BestCheckpointFile)
			if err := policy.SaveCheckpoint(agent, epoch, checkpointMetrics(rec), path); err != nil {
				return nil, fmt.Errorf("save best checkpoint: %w", err)
			}
			result.CheckpointPath = path
			s.publishCheckpoint(ctx, epoch, path, rec.ValReward, true)
		}
	}

	finalRec := result.History[len(result.History)-1]
	finalPath := filepath.Join(s.cfg.OutputDir, FinalCheckpointFile)
	if err := policy.SaveCheckpoint(agent, s.cfg.Epochs, checkpointMetrics(finalRec), finalPath); err != nil {
		return nil, fmt.Errorf("save final checkpoint: %w", err)
	}
	s.publishCheckpoint(ctx, s.cfg.Epochs, finalPath, finalRec.ValReward, false)

	if err := s.writeHistory(result.History); err != nil {
		return nil, err
	}

	s.publishCompleted(ctx, result)
	s.log.Info("training finished",
		"best_epoch", result.BestEpoch,
		"best_val_reward", result.BestValReward,
		"checkpoint", result.CheckpointPath,
	)
	return result, nil
}

func (s *TrainerService) writeHistory(history []EpochRecord) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	path := filepath.Join(s.cfg.OutputDir, HistoryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (s *TrainerService) publishCheckpoint(ctx context.Context, epoch int, path string, valReward float64, best bool) {
	data, err := json.Marshal(messagequeue.CheckpointSavedPayload{
		Epoch:     epoch,
		Path:      path,
		ValReward: valReward,
		Best:      best,
	})
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectCheckpointSaved, data); err != nil {
		s.log.Warn("publish checkpoint event failed", "error", err)
	}
}

func (s *TrainerService) publishCompleted(ctx context.Context, r *TrainResult) {
	data, err := json.Marshal(messagequeue.TrainingCompletedPayload{
		Epochs:         r.Epochs,
		Experiences:    r.Experiences,
		BestValReward:  r.BestValReward,
		CheckpointPath: r.CheckpointPath,
	})
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTrainingCompleted, data); err != nil {
		s.log.Warn("publish training event failed", "error", err)
	}
}

// sampleIndices draws n distinct indices in [offset, offset+pool) without
// replacement.
func sampleIndices(rng *rand.Rand, pool, n, offset int) []int {
	perm := rng.Perm(pool)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = perm[i] + offset
	}
	return idx
}

// gatherBatch assembles the dense matrices for the given sample indices.
func gatherBatch(states, actions [][]float64, rewards []float64, idx []int) (*mat.Dense, *mat.Dense, []float64) {
	sm := mat.NewDense(len(idx), encoding.StateDim, nil)
	am := mat.NewDense(len(idx), encoding.ActionDim, nil)
	rw := make([]float64, len(idx))
	for row, i := range idx {
		sm.SetRow(row, states[i])
		am.SetRow(row, actions[i])
		rw[row] = rewards[i]
	}
	return sm, am, rw
}

func meanRewardAt(rewards []float64, idx []int) float64 {
	sum := 0.0
	for _, i := range idx {
		sum += rewards[i]
	}
	return sum / float64(len(idx))
}

func accumulate(sum *policy.Metrics, m policy.Metrics) {
	sum.ActorLoss += m.ActorLoss
	sum.CriticLoss += m.CriticLoss
	sum.Entropy += m.Entropy
	sum.TotalLoss += m.TotalLoss
	sum.MeanReward += m.MeanReward
	sum.MeanValue += m.MeanValue
	sum.MeanAdvantage += m.MeanAdvantage
}

func averaged(sum policy.Metrics, n int) EpochRecord {
	f := float64(n)
	return EpochRecord{
		ActorLoss:  sum.ActorLoss / f,
		CriticLoss: sum.CriticLoss / f,
		Entropy:    sum.Entropy / f,
		TotalLoss:  sum.TotalLoss / f,
		MeanReward: sum.MeanReward / f,
	}
}

func checkpointMetrics(rec EpochRecord) map[string]float64 {
	return map[string]float64{
		"actor_loss":  rec.ActorLoss,
		"critic_loss": rec.CriticLoss,
		"entropy":     rec.Entropy,
		"total_loss":  rec.TotalLoss,
		"mean_reward": rec.MeanReward,
		"val_reward":  rec.ValReward,
	}
}
