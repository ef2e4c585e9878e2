// Package experience provides the domain model for recorded
// state-action-reward transitions from orchestration executions.
package experience

import (
	"fmt"
	"math"

	"github.com/Strob0t/PolicyForge/internal/domain"
)

// Metadata carries denormalized execution facts used by the feature
// encoder and by reward computation.
type Metadata struct {
	TaskID            string   `json:"task_id,omitempty"`
	TaskType          string   `json:"task_type,omitempty"`
	Domain            string   `json:"domain,omitempty"`
	Complexity        string   `json:"complexity,omitempty"`
	RiskLevel         string   `json:"risk_level,omitempty"`
	EstimatedTime     string   `json:"estimated_time,omitempty"`
	ActualTime        float64  `json:"actual_time,omitempty"`
	SkillsUsed        []string `json:"skills_used,omitempty"`
	AgentsUsed        []string `json:"agents_used,omitempty"`
	Strategy          string   `json:"strategy,omitempty"`
	Success           bool     `json:"success"`
	ErrorCount        int      `json:"error_count"`
	UserModifications int      `json:"user_modifications"`
	SafetyViolations  bool     `json:"safety_violations"`
	Confidence        float64  `json:"confidence,omitempty"`
}

// Experience is a single transition record. Records are immutable once
// written; the store never updates or deletes individual records.
type Experience struct {
	ID        string         `json:"id,omitempty"`
	State     map[string]any `json:"state"`
	Action    map[string]any `json:"action"`
	Reward    float64        `json:"reward"`
	NextState map[string]any `json:"next_state,omitempty"`
	Done      bool           `json:"done"`
	Metadata  Metadata       `json:"metadata"`
	Timestamp string         `json:"timestamp"`
}

// Validate checks the record invariants. The reward must be finite.
func (e *Experience) Validate() error {
	if math.IsNaN(e.Reward) || math.IsInf(e.Reward, 0) {
		return fmt.Errorf("%w: reward must be finite, got %v", domain.ErrValidation, e.Reward)
	}
	return nil
}

// Record is the raw input for a single collect call. Timestamp is
// optional: backfilled or synthetic records carry their own, live
// collection leaves it empty and gets the collect time.
type Record struct {
	State     map[string]any `json:"state"`
	Action    map[string]any `json:"action"`
	Reward    float64        `json:"reward"`
	NextState map[string]any `json:"next_state,omitempty"`
	Done      bool           `json:"done"`
	Metadata  Metadata       `json:"metadata"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Filter selects a subset of stored experiences. Zero values mean
// "no constraint"; MinReward is a pointer so a zero threshold is
// distinguishable from no threshold.
type Filter struct {
	Limit     int
	TaskType  string
	Domain    string
	MinReward *float64
}

// Match reports whether the experience passes all set constraints.
// Limit is enforced by the store, not here.
func (f Filter) Match(e *Experience) bool {
	if f.TaskType != "" && e.Metadata.TaskType != f.TaskType {
		return false
	}
	if f.Domain != "" && e.Metadata.Domain != f.Domain {
		return false
	}
	if f.MinReward != nil && e.Reward < *f.MinReward {
		return false
	}
	return true
}
