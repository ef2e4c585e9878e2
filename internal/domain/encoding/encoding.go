// Package encoding turns experience metadata into the fixed-width numeric
// vectors the policy and value networks consume.
//
// The vocabularies and slot orders below are a wire contract: trained
// model weights are positional, so any reordering or resizing invalidates
// previously saved checkpoints. Both encoders are total - unknown
// categorical values degrade to an all-zero or default-index block
// instead of erroring.
package encoding

import (
	"slices"

	"github.com/Strob0t/PolicyForge/internal/domain/experience"
	"github.com/Strob0t/PolicyForge/internal/domain/reward"
)

// Vector dimensions. Checkpoints record these so a loaded model always
// matches the encoder that produced its training data.
const (
	StateDim  = 50
	ActionDim = 30
)

// Categorical vocabularies, shared by the encoder and any inference-time
// decoder. Version 1.
var (
	TaskTypes    = []string{"feature", "bug", "refactor", "test", "docs", "review"}
	Domains      = []string{"frontend", "backend", "database", "security", "testing"}
	Complexities = []string{"simple", "medium", "complex"}
	RiskLevels   = []string{"low", "medium", "high"}

	Skills = []string{
		"security", "backend", "frontend", "database",
		"testing", "api-design", "architecture", "devops",
		"performance", "code-quality",
	}
	Agents = []string{
		"feature-creator", "bug-fixer", "code-refactorer",
		"pr-reviewer", "security-specialist",
	}
	Strategies = []string{"direct", "sequential", "parallel", "coordinated"}
)

// domainSkills infers a skill set when skills_used was not recorded.
var domainSkills = map[string][]string{
	"backend":  {"backend", "api-design"},
	"frontend": {"frontend"},
	"database": {"database"},
	"security": {"security"},
}

// normalization cap for the estimated-time scalar: one 8-hour workday.
const maxEstimatedMinutes = 480.0

// StateVector encodes the pre-action context as a fixed 50-element vector:
// task-type one-hot (6), domain one-hot (5), complexity one-hot (3,
// default medium), risk one-hot (3, default low), normalized estimated
// time (1), zero padding.
func StateVector(md experience.Metadata) []float64 {
	v := make([]float64, 0, StateDim)

	taskType := md.TaskType
	if taskType == "" {
		taskType = "feature"
	}
	v = append(v, oneHot(TaskTypes, taskType)...)

	dom := md.Domain
	if dom == "" {
		dom = "backend"
	}
	v = append(v, oneHot(Domains, dom)...)

	v = append(v, oneHotDefault(Complexities, md.Complexity, 1)...)
	v = append(v, oneHotDefault(RiskLevels, md.RiskLevel, 0)...)

	v = append(v, min(reward.ParseTime(md.EstimatedTime)/maxEstimatedMinutes, 1.0))

	return pad(v, StateDim)
}

// ActionVector encodes what was chosen as a fixed 30-element vector:
// skill membership (10, inferred from domain when empty), agent
// membership (5), strategy one-hot (4, default direct), zero padding.
func ActionVector(md experience.Metadata) []float64 {
	v := make([]float64, 0, ActionDim)

	skills := md.SkillsUsed
	if len(skills) == 0 {
		skills = domainSkills[md.Domain]
	}
	v = append(v, membership(Skills, skills)...)
	v = append(v, membership(Agents, md.AgentsUsed)...)
	v = append(v, oneHotDefault(Strategies, md.Strategy, 0)...)

	return pad(v, ActionDim)
}

// oneHot returns a block with a 1 at the value's index, or all zeros when
// the value is not in the vocabulary.
func oneHot(vocab []string, value string) []float64 {
	block := make([]float64, len(vocab))
	if i := slices.Index(vocab, value); i >= 0 {
		block[i] = 1
	}
	return block
}

// oneHotDefault is oneHot with a fallback index for missing or unknown values.
func oneHotDefault(vocab []string, value string, def int) []float64 {
	block := make([]float64, len(vocab))
	i := slices.Index(vocab, value)
	if i < 0 {
		i = def
	}
	block[i] = 1
	return block
}

// membership returns a binary block marking which vocabulary entries appear
// in values. Entries outside the vocabulary are ignored.
func membership(vocab, values []string) []float64 {
	block := make([]float64, len(vocab))
	for i, item := range vocab {
		if slices.Contains(values, item) {
			block[i] = 1
		}
	}
	return block
}

func pad(v []float64, dim int) []float64 {
	for len(v) < dim {
		v = append(v, 0)
	}
	return v[:dim]
}
