package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrDimensionMismatch indicates a checkpoint's recorded shapes do not
// match the network it is being restored into.
var ErrDimensionMismatch = errors.New("checkpoint dimensions do not match model")

// LayerState is the serialized form of one linear layer.
type LayerState struct {
	In      int       `json:"in"`
	Out     int       `json:"out"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// NetworkState is the serialized form of one network, layer by layer.
type NetworkState []LayerState

// OptimizerState is the serialized Adam state, aligned with the agent's
// parameter order (actor layers then critic layers, weights before bias).
type OptimizerState struct {
	Step int         `json:"step"`
	M    [][]float64 `json:"m"`
	V    [][]float64 `json:"v"`
}

// ModelConfig records the dimensions a checkpoint was trained with.
// Loading reconstructs a model of exactly these dimensions.
type ModelConfig struct {
	StateDim   int   `json:"state_dim"`
	ActionDim  int   `json:"action_dim"`
	HiddenDims []int `json:"hidden_dims,omitempty"`
}

// Checkpoint is the serialized bundle written after training improvements
// and at training completion.
type Checkpoint struct {
	Epoch     int                `json:"epoch"`
	Actor     NetworkState       `json:"actor_state"`
	Critic    NetworkState       `json:"critic_state"`
	Optimizer OptimizerState     `json:"optimizer_state"`
	Metrics   map[string]float64 `json:"metrics"`
	Config    ModelConfig        `json:"model_config"`
}

// SaveCheckpoint writes the agent's full state to path, creating parent
// directories as needed.
func SaveCheckpoint(a *Agent, epoch int, metrics map[string]float64, path string) error {
	ckpt := Checkpoint{
		Epoch:   epoch,
		Actor:   snapshotNetwork(a.actor),
		Critic:  snapshotNetwork(a.critic),
		Metrics: metrics,
		Config: ModelConfig{
			StateDim:   a.cfg.StateDim,
			ActionDim:  a.cfg.ActionDim,
			HiddenDims: a.cfg.HiddenDims,
		},
		Optimizer: OptimizerState{Step: a.opt.step, M: a.opt.m, V: a.opt.v},
	}

	data, err := json.Marshal(&ckpt)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reconstructs an agent of the recorded dimensions and
// restores its parameters and optimizer state. A shape mismatch between
// the recorded tensors and the reconstructed network is fatal.
func LoadCheckpoint(path string) (*Agent, *Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, nil, fmt.Errorf("decode checkpoint: %w", err)
	}

	a := NewAgent(Config{
		StateDim:   ckpt.Config.StateDim,
		ActionDim:  ckpt.Config.ActionDim,
		HiddenDims: ckpt.Config.HiddenDims,
	})

	if err := restoreNetwork(a.actor, ckpt.Actor); err != nil {
		return nil, nil, fmt.Errorf("restore actor: %w", err)
	}
	if err := restoreNetwork(a.critic, ckpt.Critic); err != nil {
		return nil, nil, fmt.Errorf("restore critic: %w", err)
	}
	if err := restoreOptimizer(a.opt, a.params(), ckpt.Optimizer); err != nil {
		return nil, nil, fmt.Errorf("restore optimizer: %w", err)
	}

	return a, &ckpt, nil
}

func snapshotNetwork(n *network) NetworkState {
	var state NetworkState
	for _, l := range n.layers() {
		state = append(state, LayerState{
			In:      l.in,
			Out:     l.out,
			Weights: append([]float64(nil), l.w.data...),
			Bias:    append([]float64(nil), l.b.data...),
		})
	}
	return state
}

func restoreNetwork(n *network, state NetworkState) error {
	layers := n.layers()
	if len(layers) != len(state) {
		return fmt.Errorf("%w: %d layers recorded, model has %d", ErrDimensionMismatch, len(state), len(layers))
	}
	for i, l := range layers {
		ls := state[i]
		if ls.In != l.in || ls.Out != l.out || len(ls.Weights) != len(l.w.data) || len(ls.Bias) != len(l.b.data) {
			return fmt.Errorf("%w: layer %d recorded %dx%d, model has %dx%d",
				ErrDimensionMismatch, i, ls.In, ls.Out, l.in, l.out)
		}
		copy(l.w.data, ls.Weights)
		copy(l.b.data, ls.Bias)
	}
	return nil
}

func restoreOptimizer(o *adam, params []*tensor, state OptimizerState) error {
	if len(state.M) == 0 && len(state.V) == 0 {
		return nil // checkpoint written before any update
	}
	if len(state.M) != len(params) || len(state.V) != len(params) {
		return fmt.Errorf("%w: optimizer tracks %d tensors, model has %d",
			ErrDimensionMismatch, len(state.M), len(params))
	}
	for i, p := range params {
		if len(state.M[i]) != len(p.data) || len(state.V[i]) != len(p.data) {
			return fmt.Errorf("%w: optimizer tensor %d has %d elements, model has %d",
				ErrDimensionMismatch, i, len(state.M[i]), len(p.data))
		}
	}
	o.step = state.Step
	o.m = state.M
	o.v = state.V
	return nil
}
