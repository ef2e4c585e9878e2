package policy

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Default network architecture.
var defaultHiddenDims = []int{256, 128}

// DefaultDropout is the regularizing dropout rate after each hidden layer.
const DefaultDropout = 0.2

// Config describes an agent's architecture and optimizer.
type Config struct {
	StateDim     int
	ActionDim    int
	HiddenDims   []int
	LearningRate float64
	WeightDecay  float64
	Dropout      float64
	Seed         int64
}

func (c Config) withDefaults() Config {
	if len(c.HiddenDims) == 0 {
		c.HiddenDims = defaultHiddenDims
	}
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.WeightDecay == 0 {
		c.WeightDecay = DefaultWeightDecay
	}
	if c.Dropout == 0 {
		c.Dropout = DefaultDropout
	}
	return c
}

// Agent combines the actor (policy) and critic (value) networks with a
// single optimizer shared across both networks' parameters. Parameters
// and optimizer state are mutated in place by each training step; the
// agent is not safe for concurrent use.
type Agent struct {
	cfg    Config
	actor  *network
	critic *network
	opt    *adam
	rng    *rand.Rand
}

// NewAgent builds an initialized agent for the given configuration.
func NewAgent(cfg Config) *Agent {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))

	a := &Agent{
		cfg:    cfg,
		actor:  newNetwork(cfg.StateDim, cfg.HiddenDims, cfg.ActionDim, cfg.Dropout, rng),
		critic: newNetwork(cfg.StateDim, cfg.HiddenDims, 1, cfg.Dropout, rng),
		rng:    rng,
	}
	a.opt = newAdam(a.params(), cfg.LearningRate, cfg.WeightDecay)
	return a
}

// StateDim returns the expected state vector length.
func (a *Agent) StateDim() int { return a.cfg.StateDim }

// ActionDim returns the action distribution size.
func (a *Agent) ActionDim() int { return a.cfg.ActionDim }

// params lists all trainable tensors, actor first then critic. The order
// is part of the checkpoint contract.
func (a *Agent) params() []*tensor {
	return append(a.actor.params(), a.critic.params()...)
}

// Forward runs both networks in eval mode (no dropout) on a batch of
// states and returns the action distributions and value estimates.
func (a *Agent) Forward(states *mat.Dense) (*mat.Dense, []float64) {
	logits, _ := a.actor.forward(states, false, nil)
	probs := softmaxRows(logits)

	vOut, _ := a.critic.forward(states, false, nil)
	rows, _ := vOut.Dims()
	values := make([]float64, rows)
	for i := range rows {
		values[i] = vOut.At(i, 0)
	}
	return probs, values
}

// ActionProbs returns the actor's distribution for a single state.
func (a *Agent) ActionProbs(state []float64) []float64 {
	probs, _ := a.Forward(mat.NewDense(1, len(state), state))
	out := make([]float64, a.cfg.ActionDim)
	copy(out, probs.RawRowView(0))
	return out
}

// SelectAction picks an action for a single state: the arg-max category
// when deterministic, otherwise a sample from the distribution. Returns
// the chosen index and its log-probability.
func (a *Agent) SelectAction(state []float64, deterministic bool) (int, float64) {
	probs := a.ActionProbs(state)

	var action int
	if deterministic {
		action = argmax(probs)
	} else {
		action = sample(probs, a.rng)
	}
	return action, math.Log(probs[action])
}

// Value returns the critic's estimate for a single state.
func (a *Agent) Value(state []float64) float64 {
	_, values := a.Forward(mat.NewDense(1, len(state), state))
	return values[0]
}

// Confidence returns the probability mass the actor assigns to the given
// action index for the given state.
func (a *Agent) Confidence(state []float64, action int) float64 {
	if action < 0 || action >= a.cfg.ActionDim {
		return 0
	}
	return a.ActionProbs(state)[action]
}

func argmax(p []float64) int {
	best := 0
	for i, v := range p {
		if v > p[best] {
			best = i
		}
	}
	return best
}

func sample(p []float64, rng *rand.Rand) int {
	r := rng.Float64()
	acc := 0.0
	for i, v := range p {
		acc += v
		if r < acc {
			return i
		}
	}
	return len(p) - 1
}
