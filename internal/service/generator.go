package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/Strob0t/PolicyForge/internal/domain/experience"
	"github.com/Strob0t/PolicyForge/internal/domain/reward"
)

// GeneratorService produces synthetic experiences for validating the
// training pipeline before real execution data exists. Generation is
// deterministic for a given seed.
type GeneratorService struct {
	collector *CollectorService
	log       *slog.Logger
}

// NewGeneratorService creates a new GeneratorService.
func NewGeneratorService(collector *CollectorService, log *slog.Logger) *GeneratorService {
	return &GeneratorService{collector: collector, log: log}
}

// Synthetic task vocabularies. Wider than the encoder's: out-of-vocabulary
// values exercise the encoder's degrade-to-default paths the way real
// orchestration data would.
var (
	genTaskTypes = []string{
		"feature", "bug", "refactor", "test", "docs", "review",
		"deploy", "security", "performance", "architecture",
		"database", "maintenance", "optimization",
	}
	genDomains = []string{
		"frontend", "backend", "database", "devops",
		"mobile", "ai/ml", "security", "testing", "architecture",
	}
	genComplexities = []string{"simple", "medium", "complex"}
	genRiskLevels   = []string{"low", "medium", "high"}
	genStrategies   = []string{"direct", "sequential", "parallel", "coordinated"}
)

var genDomainSkills = map[string][]string{
	"frontend":     {"frontend", "accessibility"},
	"backend":      {"backend", "api-design"},
	"database":     {"database"},
	"security":     {"security", "compliance"},
	"testing":      {"testing", "backend"},
	"ai/ml":        {"ai-ml", "data-analytics"},
	"devops":       {"devops", "infrastructure", "ci-cd"},
	"performance":  {"performance", "observability"},
	"architecture": {"architecture", "documentation"},
	"mobile":       {"mobile", "frontend"},
}

var genTaskAgents = map[string][]string{
	"feature":      {"feature-creator"},
	"bug":          {"bug-fixer"},
	"refactor":     {"code-refactorer"},
	"test":         {"testing-specialist"},
	"review":       {"pr-reviewer"},
	"deploy":       {"devops-specialist"},
	"security":     {"security-specialist"},
	"performance":  {"performance-optimizer"},
	"architecture": {"architecture-advisor"},
	"database":     {"database-specialist"},
	"maintenance":  {"maintenance-coordinator"},
}

// complexity success probabilities before task-type adjustment
var genSuccessProb = map[string]float64{
	"simple":  0.90,
	"medium":  0.75,
	"complex": 0.60,
}

// estimated time ranges in minutes per complexity
var genTimeRange = map[string][2]int{
	"simple":  {15, 45},
	"medium":  {60, 180},
	"complex": {240, 480},
}

// Generate creates count synthetic experiences and records them through
// the collector. Returns the generated records.
func (s *GeneratorService) Generate(ctx context.Context, count int, seed int64) ([]experience.Experience, error) {
	rng := rand.New(rand.NewSource(seed))
	now := time.Now().UTC()

	out := make([]experience.Experience, 0, count)
	for i := 0; i < count; i++ {
		rec := synthesize(rng, i, now)
		e, err := s.collector.Collect(ctx, rec)
		if err != nil {
			return out, fmt.Errorf("record synthetic experience %d: %w", i, err)
		}
		out = append(out, *e)
	}

	s.log.Info("synthetic experiences generated", "count", count, "seed", seed)
	return out, nil
}

// synthesize builds one plausible experience: task characteristics drive
// success odds, timing, resource usage and the resulting reward. The
// record is backdated up to 30 days so the set reads like accumulated
// history rather than a single burst.
func synthesize(rng *rand.Rand, id int, now time.Time) *experience.Record {
	taskType := pick(rng, genTaskTypes)
	dom := pick(rng, genDomains)
	complexity := pick(rng, genComplexities)
	risk := pick(rng, genRiskLevels)

	skillsNeeded := skillsFor(taskType, dom, rng)
	agentsNeeded := append([]string(nil), genTaskAgents[taskType]...)
	if risk == "high" && !contains(agentsNeeded, "security-specialist") {
		agentsNeeded = append(agentsNeeded, "security-specialist")
	}

	prob := genSuccessProb[complexity]
	switch taskType {
	case "feature":
		prob -= 0.05
	case "bug", "performance":
		prob -= 0.10
	case "security":
		prob -= 0.15
	}
	success := rng.Float64() < prob

	tr := genTimeRange[complexity]
	estimated := tr[0] + rng.Intn(tr[1]-tr[0]+1)
	actual := float64(int(float64(estimated) * (0.7 + rng.Float64()*0.8)))

	errorCount := weighted(rng, []int{0, 1, 2}, []float64{0.7, 0.25, 0.05})
	if !success {
		errorCount = weighted(rng, []int{1, 2, 3, 4}, []float64{0.3, 0.4, 0.2, 0.1})
	}
	userMods := weighted(rng, []int{0, 1, 2, 3}, []float64{0.6, 0.25, 0.12, 0.03})
	safetyViolations := risk == "high" && rng.Float64() < 0.1

	skillsUsed := append([]string(nil), skillsNeeded...)
	if !success {
		// Failed tasks tend to burn extra skills trying to recover.
		for k := rng.Intn(3); k > 0; k-- {
			skillsUsed = append(skillsUsed, pick(rng, []string{"backend", "testing", "security"}))
		}
		skillsUsed = dedupe(skillsUsed)
	}
	agentsUsed := append([]string(nil), agentsNeeded...)
	if complexity == "complex" && len(agentsUsed) == 0 {
		agentsUsed = append(agentsUsed, "feature-creator")
	}

	estimatedStr := formatMinutes(estimated)
	confidence := 0.5 + rng.Float64()*0.45
	minResources := len(skillsNeeded) + len(agentsNeeded)

	r := reward.Compute(reward.Outcome{
		Success:           success,
		ActualTime:        &actual,
		ResourcesUsed:     append(append([]string(nil), skillsUsed...), agentsUsed...),
		MinimumResources:  &minResources,
		ErrorCount:        errorCount,
		UserModifications: userMods,
		SafetyViolations:  safetyViolations,
	}, reward.Context{
		EstimatedTime: estimatedStr,
		Confidence:    &confidence,
	})
	r += rng.Float64()*10 - 5 // observation noise

	timestamp := now.Add(-time.Duration(rng.Intn(721)) * time.Hour)

	return &experience.Record{
		Timestamp: timestamp.Format(time.RFC3339Nano),
		State: map[string]any{
			"task_type":      taskType,
			"domain":         dom,
			"complexity":     complexity,
			"risk_level":     risk,
			"estimated_time": estimatedStr,
			"skill_count":    len(skillsNeeded),
		},
		Action: map[string]any{
			"resources": map[string]any{
				"skills": skillsUsed,
				"agents": agentsUsed,
			},
			"strategy": map[string]any{
				"approach": pick(rng, genStrategies),
			},
		},
		Reward: r,
		Done:   success,
		Metadata: experience.Metadata{
			TaskID:            fmt.Sprintf("task_%06d", id),
			TaskType:          taskType,
			Domain:            dom,
			Complexity:        complexity,
			RiskLevel:         risk,
			EstimatedTime:     estimatedStr,
			ActualTime:        actual,
			SkillsUsed:        skillsUsed,
			AgentsUsed:        agentsUsed,
			Strategy:          pick(rng, genStrategies),
			Success:           success,
			ErrorCount:        errorCount,
			UserModifications: userMods,
			SafetyViolations:  safetyViolations,
			Confidence:        confidence,
		},
	}
}

func skillsFor(taskType, dom string, rng *rand.Rand) []string {
	var skills []string
	switch taskType {
	case "security":
		skills = []string{"security", "backend", "compliance"}
	case "performance":
		skills = []string{"performance", "backend", "database", "observability"}
	case "test":
		skills = []string{"testing", "backend"}
	case "refactor":
		skills = []string{"code-quality", "backend"}
	case "review":
		skills = []string{"code-quality", "testing"}
	default:
		if ds, ok := genDomainSkills[dom]; ok {
			skills = append([]string(nil), ds...)
		} else {
			skills = []string{"backend"}
		}
	}

	// 0-2 secondary domains contribute their skills too.
	for n := weighted(rng, []int{0, 1, 2}, []float64{0.5, 0.3, 0.2}); n > 0; n-- {
		skills = append(skills, genDomainSkills[pick(rng, genDomains)]...)
	}
	return dedupe(skills)
}

// formatMinutes renders a minute count the way humans write estimates.
func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	if m%60 != 0 {
		return fmt.Sprintf("%dh %dm", m/60, m%60)
	}
	return fmt.Sprintf("%d hours", m/60)
}

func pick(rng *rand.Rand, vs []string) string {
	return vs[rng.Intn(len(vs))]
}

// weighted picks a value by its relative weight.
func weighted(rng *rand.Rand, vals []int, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return vals[i]
		}
	}
	return vals[len(vals)-1]
}

func contains(vs []string, v string) bool {
	for _, s := range vs {
		if s == v {
			return true
		}
	}
	return false
}

// dedupe removes duplicates, keeping a stable sorted order so generation
// stays deterministic for a fixed seed.
func dedupe(vs []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range vs {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
