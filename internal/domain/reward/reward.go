// Package reward computes the scalar training reward from an execution
// outcome and its context. Compute is pure and deterministic: identical
// inputs always yield an identical value.
package reward

import (
	"math"
	"strconv"
	"strings"
)

// DefaultMinutes is the fallback for unparseable time estimates.
const DefaultMinutes = 60.0

// Outcome describes what actually happened during an execution.
// Pointer fields distinguish "absent" from a literal zero; absent fields
// take the documented defaults in Compute.
type Outcome struct {
	Success           bool     `json:"success"`
	ActualTime        *float64 `json:"actual_time,omitempty"` // minutes; default = estimated
	ResourcesUsed     []string `json:"resources_used,omitempty"`
	MinimumResources  *int     `json:"minimum_resources,omitempty"` // default = len(ResourcesUsed)
	ErrorCount        int      `json:"error_count"`
	UserModifications int      `json:"user_modifications"`
	SafetyViolations  bool     `json:"safety_violations"`
}

// Context describes the pre-execution estimate the outcome is judged against.
type Context struct {
	EstimatedTime string   `json:"estimated_time,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"` // default 0.5
}

// Compute returns the reward as a weighted sum of seven additive terms.
func Compute(o Outcome, c Context) float64 {
	r := 0.0

	// 1. Outcome term, dominant.
	if o.Success {
		r += 100
	} else {
		r -= 100
	}

	// 2. Time efficiency, only on success.
	if o.Success {
		estimated := ParseTime(c.EstimatedTime)
		actual := estimated
		if o.ActualTime != nil {
			actual = *o.ActualTime
		}
		efficiency := math.Min(estimated/math.Max(actual, 1), 2.0)
		r += efficiency * 20
	}

	// 3. Resource efficiency.
	used := len(o.ResourcesUsed)
	minimum := used
	if o.MinimumResources != nil {
		minimum = *o.MinimumResources
	}
	if used <= minimum {
		r += 10
	} else {
		r -= float64(used-minimum) * 5
	}

	// 4. Quality.
	if o.ErrorCount == 0 {
		r += 15
	} else {
		r -= float64(o.ErrorCount) * 10
	}

	// 5. User satisfaction.
	if o.UserModifications == 0 {
		r += 10
	} else {
		r -= float64(o.UserModifications) * 5
	}

	// 6. Safety adherence.
	if !o.SafetyViolations {
		r += 10
	} else {
		r -= 50
	}

	// 7. Confidence bonus.
	confidence := 0.5
	if c.Confidence != nil {
		confidence = *c.Confidence
	}
	r += confidence * 5

	return r
}

// ParseTime converts a human time estimate to minutes. It is total:
// unrecognized or unparseable input falls back to DefaultMinutes.
//
//	"30 min"  -> 30
//	"1 hour"  -> 60
//	"2 hours" -> 120
//	"1 day"   -> 480 (8-hour workday)
func ParseTime(s string) float64 {
	t := strings.ToLower(strings.TrimSpace(s))

	switch {
	case strings.Contains(t, "min"):
		if v, err := parseNumber(t, "min"); err == nil {
			return v
		}
	case strings.Contains(t, "hour"):
		if v, err := parseNumber(t, "hours", "hour"); err == nil {
			return v * 60
		}
	case strings.Contains(t, "day"):
		if v, err := parseNumber(t, "days", "day"); err == nil {
			return v * 8 * 60
		}
	}

	return DefaultMinutes
}

// parseNumber strips the given unit words from t and parses the remainder.
func parseNumber(t string, units ...string) (float64, error) {
	for _, u := range units {
		t = strings.ReplaceAll(t, u, "")
	}
	return strconv.ParseFloat(strings.TrimSpace(t), 64)
}
