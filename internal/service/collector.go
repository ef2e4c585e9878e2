package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/Strob0t/PolicyForge/internal/domain"
	"github.com/Strob0t/PolicyForge/internal/domain/experience"
	"github.com/Strob0t/PolicyForge/internal/domain/reward"
	"github.com/Strob0t/PolicyForge/internal/port/messagequeue"
	"github.com/Strob0t/PolicyForge/internal/port/store"
)

// CollectorService records execution outcomes as experiences: it computes
// the reward, assigns identity, appends to the store and publishes a
// collected event. It also serves reads: load, statistics, export, clear.
type CollectorService struct {
	store store.Store
	queue messagequeue.Queue
	log   *slog.Logger
}

// NewCollectorService creates a new CollectorService.
func NewCollectorService(st store.Store, queue messagequeue.Queue, log *slog.Logger) *CollectorService {
	return &CollectorService{store: st, queue: queue, log: log}
}

// Collect validates and persists one experience record. The reward is
// taken from the record as given; use CollectOutcome to have it computed.
// Returns the stored experience with its assigned ID and timestamp.
func (s *CollectorService) Collect(ctx context.Context, rec *experience.Record) (*experience.Experience, error) {
	ts := rec.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339Nano)
	}
	e := &experience.Experience{
		ID:        uuid.NewString(),
		State:     rec.State,
		Action:    rec.Action,
		Reward:    rec.Reward,
		NextState: rec.NextState,
		Done:      rec.Done,
		Metadata:  rec.Metadata,
		Timestamp: ts,
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append experience: %w", err)
	}

	s.publishCollected(ctx, e)

	s.log.Debug("experience collected",
		"id", e.ID,
		"task_type", e.Metadata.TaskType,
		"reward", e.Reward,
	)
	return e, nil
}

// CollectOutcome computes the reward from an outcome and its context,
// then records the experience.
func (s *CollectorService) CollectOutcome(ctx context.Context, rec *experience.Record, o reward.Outcome, c reward.Context) (*experience.Experience, error) {
	rec.Reward = reward.Compute(o, c)
	return s.Collect(ctx, rec)
}

// CollectBatch records multiple experiences in order. The first failure
// aborts the batch; already-appended records stay appended.
func (s *CollectorService) CollectBatch(ctx context.Context, recs []experience.Record) ([]experience.Experience, error) {
	out := make([]experience.Experience, 0, len(recs))
	for i := range recs {
		e, err := s.Collect(ctx, &recs[i])
		if err != nil {
			return out, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, *e)
	}
	return out, nil
}

// Load returns stored experiences in insertion order, filtered.
func (s *CollectorService) Load(ctx context.Context, f experience.Filter) ([]experience.Experience, error) {
	return s.store.Load(ctx, f)
}

// Clear removes every stored experience.
func (s *CollectorService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear experiences: %w", err)
	}
	s.log.Info("experience store cleared")
	return nil
}

// publishCollected sends the collected event best-effort: a broker outage
// never fails a collect.
func (s *CollectorService) publishCollected(ctx context.Context, e *experience.Experience) {
	payload := messagequeue.ExperienceCollectedPayload{
		ExperienceID: e.ID,
		TaskType:     e.Metadata.TaskType,
		Domain:       e.Metadata.Domain,
		Reward:       e.Reward,
		Timestamp:    e.Timestamp,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("encode collected event failed", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectExperienceCollected, data); err != nil {
		s.log.Warn("publish collected event failed", "error", err)
	}
}

// Statistics summarizes the stored experience set.
type Statistics struct {
	TotalExperiences int            `json:"total_experiences"`
	SuccessRate      float64        `json:"success_rate"`
	AvgReward        float64        `json:"avg_reward"`
	RewardStdDev     float64        `json:"reward_std_dev"`
	MinReward        float64        `json:"min_reward"`
	MaxReward        float64        `json:"max_reward"`
	MedianReward     float64        `json:"median_reward"`
	TaskTypes        map[string]int `json:"task_type_distribution"`
	Domains          map[string]int `json:"domain_distribution"`
	Complexities     map[string]int `json:"complexity_distribution"`
	BufferSizeMB     float64        `json:"buffer_size_mb"`
	OldestTimestamp  string         `json:"oldest_timestamp,omitempty"`
	NewestTimestamp  string         `json:"newest_timestamp,omitempty"`
	Message          string         `json:"message,omitempty"`
}

// Statistics computes aggregate statistics over all stored experiences.
// An empty store yields a sentinel message rather than an error.
func (s *CollectorService) Statistics(ctx context.Context) (*Statistics, error) {
	exps, err := s.store.Load(ctx, experience.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load experiences: %w", err)
	}

	size, err := s.store.SizeBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("store size: %w", err)
	}

	st := &Statistics{
		TotalExperiences: len(exps),
		TaskTypes:        map[string]int{},
		Domains:          map[string]int{},
		Complexities:     map[string]int{},
		BufferSizeMB:     float64(size) / (1024 * 1024),
	}
	if len(exps) == 0 {
		st.Message = "no experiences collected yet"
		return st, nil
	}

	rewards := make([]float64, len(exps))
	successes := 0
	for i := range exps {
		e := &exps[i]
		rewards[i] = e.Reward
		if e.Metadata.Success {
			successes++
		}
		if e.Metadata.TaskType != "" {
			st.TaskTypes[e.Metadata.TaskType]++
		}
		if e.Metadata.Domain != "" {
			st.Domains[e.Metadata.Domain]++
		}
		if e.Metadata.Complexity != "" {
			st.Complexities[e.Metadata.Complexity]++
		}
	}

	mean, std := stat.MeanStdDev(rewards, nil)
	st.SuccessRate = float64(successes) / float64(len(exps))
	st.AvgReward = mean
	if len(rewards) > 1 {
		st.RewardStdDev = std
	}
	st.MinReward, st.MaxReward = minMax(rewards)
	st.MedianReward = median(rewards)

	// Timestamps may arrive out of order (backfilled or synthetic data),
	// so the date range scans rather than trusting insertion order.
	st.OldestTimestamp, st.NewestTimestamp = exps[0].Timestamp, exps[0].Timestamp
	for i := range exps {
		ts := exps[i].Timestamp
		if ts < st.OldestTimestamp {
			st.OldestTimestamp = ts
		}
		if ts > st.NewestTimestamp {
			st.NewestTimestamp = ts
		}
	}

	return st, nil
}

// csvColumns is the fixed export column order; downstream analysis
// notebooks key on these names.
var csvColumns = []string{
	"timestamp", "reward", "done", "task_type", "domain",
	"complexity", "estimated_time", "actual_time", "success", "error_count",
}

// Export writes the filtered experience set to w in the given format:
// "jsonl" (one record per line), "json" (single array) or "csv"
// (flattened metadata columns). Unknown formats are a validation error.
func (s *CollectorService) Export(ctx context.Context, w io.Writer, format string, f experience.Filter) (int, error) {
	exps, err := s.store.Load(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("load experiences: %w", err)
	}

	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		for i := range exps {
			if err := enc.Encode(&exps[i]); err != nil {
				return 0, fmt.Errorf("encode record: %w", err)
			}
		}
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(exps); err != nil {
			return 0, fmt.Errorf("encode records: %w", err)
		}
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvColumns); err != nil {
			return 0, fmt.Errorf("write csv header: %w", err)
		}
		for i := range exps {
			e := &exps[i]
			row := []string{
				e.Timestamp,
				strconv.FormatFloat(e.Reward, 'g', -1, 64),
				strconv.FormatBool(e.Done),
				e.Metadata.TaskType,
				e.Metadata.Domain,
				e.Metadata.Complexity,
				e.Metadata.EstimatedTime,
				strconv.FormatFloat(e.Metadata.ActualTime, 'g', -1, 64),
				strconv.FormatBool(e.Metadata.Success),
				strconv.Itoa(e.Metadata.ErrorCount),
			}
			if err := cw.Write(row); err != nil {
				return 0, fmt.Errorf("write csv row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return 0, fmt.Errorf("flush csv: %w", err)
		}
	default:
		return 0, fmt.Errorf("%w: unsupported export format %q", domain.ErrValidation, format)
	}

	return len(exps), nil
}

// median interpolates between the two middle values for even counts.
func median(vs []float64) float64 {
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func minMax(vs []float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
