package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/PolicyForge/internal/domain/encoding"
	"github.com/Strob0t/PolicyForge/internal/domain/experience"
	"github.com/Strob0t/PolicyForge/internal/port/cache"
)

// featureTTL bounds how long encoded vectors stay cached. Records are
// immutable, so the TTL only limits memory held for cold entries.
const featureTTL = time.Hour

// FeatureService encodes experiences into training vectors, caching the
// result per experience ID. Encoding is pure, so a cache hit is always
// identical to a fresh encode.
type FeatureService struct {
	cache cache.Cache
	log   *slog.Logger
}

// NewFeatureService creates a new FeatureService.
func NewFeatureService(c cache.Cache, log *slog.Logger) *FeatureService {
	return &FeatureService{cache: c, log: log}
}

type featurePair struct {
	State  []float64 `json:"state"`
	Action []float64 `json:"action"`
}

// Encode returns the state and action vectors for one experience,
// consulting the cache when the record has an ID.
func (s *FeatureService) Encode(ctx context.Context, e *experience.Experience) (state, action []float64) {
	if e.ID == "" || s.cache == nil {
		return encoding.StateVector(e.Metadata), encoding.ActionVector(e.Metadata)
	}

	key := "features:" + e.ID
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var p featurePair
		if err := json.Unmarshal(data, &p); err == nil &&
			len(p.State) == encoding.StateDim && len(p.Action) == encoding.ActionDim {
			return p.State, p.Action
		}
	}

	state = encoding.StateVector(e.Metadata)
	action = encoding.ActionVector(e.Metadata)

	data, err := json.Marshal(featurePair{State: state, Action: action})
	if err == nil {
		if err := s.cache.Set(ctx, key, data, featureTTL); err != nil {
			s.log.Debug("feature cache set failed", "id", e.ID, "error", err)
		}
	}
	return state, action
}

// EncodeBatch encodes a slice of experiences into parallel state and
// action matrices stored row-major.
func (s *FeatureService) EncodeBatch(ctx context.Context, exps []experience.Experience) (states, actions [][]float64) {
	states = make([][]float64, len(exps))
	actions = make([][]float64, len(exps))
	for i := range exps {
		states[i], actions[i] = s.Encode(ctx, &exps[i])
	}
	return states, actions
}
