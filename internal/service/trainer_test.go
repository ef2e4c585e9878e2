package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Strob0t/PolicyForge/internal/config"
	"github.com/Strob0t/PolicyForge/internal/domain"
	"github.com/Strob0t/PolicyForge/internal/domain/encoding"
	"github.com/Strob0t/PolicyForge/internal/policy"
	"github.com/Strob0t/PolicyForge/internal/port/messagequeue"
)

func testTrainingConfig(outputDir string) config.Training {
	return config.Training{
		Epochs:          5,
		BatchSize:       32,
		BatchesPerEpoch: 3,
		LearningRate:    1e-3,
		WeightDecay:     1e-5,
		ValidationSplit: 0.2,
		EntropyCoef:     0.01,
		Seed:            42,
		OutputDir:       outputDir,
	}
}

func newTestTrainer(t *testing.T, outputDir string) (*TrainerService, *GeneratorService) {
	t.Helper()
	collector := newTestCollector(t)
	features := NewFeatureService(nil, testLogger())
	gen := NewGeneratorService(collector, testLogger())
	trainer := NewTrainerService(collector.store, features, messagequeue.Noop{}, testLogger(), testTrainingConfig(outputDir))
	return trainer, gen
}

func TestTrainRequiresMinimumData(t *testing.T) {
	trainer, gen := newTestTrainer(t, t.TempDir())
	ctx := context.Background()

	if _, err := gen.Generate(ctx, MinTrainingExperiences-1, 1); err != nil {
		t.Fatal(err)
	}
	_, err := trainer.Train(ctx)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for undersized dataset, got %v", err)
	}
}

func TestTrainEndToEnd(t *testing.T) {
	outputDir := t.TempDir()
	trainer, gen := newTestTrainer(t, outputDir)
	ctx := context.Background()

	if _, err := gen.Generate(ctx, 200, 42); err != nil {
		t.Fatal(err)
	}

	result, err := trainer.Train(ctx)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if result.Experiences != 200 {
		t.Errorf("experiences = %d, want 200", result.Experiences)
	}
	if len(result.History) != 5 {
		t.Fatalf("history has %d epochs, want 5", len(result.History))
	}
	if result.BestEpoch < 1 || result.BestEpoch > 5 {
		t.Errorf("best epoch %d out of range", result.BestEpoch)
	}
	if math.IsInf(result.BestValReward, -1) {
		t.Error("best validation reward never set")
	}
	for _, rec := range result.History {
		for name, v := range map[string]float64{
			"actor_loss":  rec.ActorLoss,
			"critic_loss": rec.CriticLoss,
			"entropy":     rec.Entropy,
			"val_reward":  rec.ValReward,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("epoch %d: %s is not finite: %v", rec.Epoch, name, v)
			}
		}
		if rec.Entropy < 0 {
			t.Errorf("epoch %d: negative entropy %g", rec.Epoch, rec.Entropy)
		}
	}

	// Both checkpoints restore with the production dimensions.
	for _, name := range []string{BestCheckpointFile, FinalCheckpointFile} {
		agent, ckpt, err := policy.LoadCheckpoint(filepath.Join(outputDir, name))
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if agent.StateDim() != encoding.StateDim || agent.ActionDim() != encoding.ActionDim {
			t.Errorf("%s: dims %d/%d, want %d/%d",
				name, agent.StateDim(), agent.ActionDim(), encoding.StateDim, encoding.ActionDim)
		}
		if len(ckpt.Metrics) == 0 {
			t.Errorf("%s: expected recorded metrics", name)
		}
	}

	// History file decodes back to the in-memory records.
	data, err := os.ReadFile(filepath.Join(outputDir, HistoryFile))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var history []EpochRecord
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != len(result.History) {
		t.Errorf("history file has %d epochs, want %d", len(history), len(result.History))
	}
}

func TestTrainHonorsContextCancellation(t *testing.T) {
	trainer, gen := newTestTrainer(t, t.TempDir())

	if _, err := gen.Generate(context.Background(), 50, 3); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := trainer.Train(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
