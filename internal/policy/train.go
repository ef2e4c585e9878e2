package policy

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Training constants.
const (
	DefaultEntropyCoef = 0.01
	maxGradNorm        = 1.0
	entropyFloor       = 1e-10 // added before logarithms to avoid log(0)
)

// Metrics are the scalar diagnostics of one training step.
type Metrics struct {
	ActorLoss     float64 `json:"actor_loss"`
	CriticLoss    float64 `json:"critic_loss"`
	Entropy       float64 `json:"entropy"`
	TotalLoss     float64 `json:"total_loss"`
	MeanReward    float64 `json:"mean_reward"`
	MeanValue     float64 `json:"mean_value"`
	MeanAdvantage float64 `json:"mean_advantage"`
}

// TrainStep applies one advantage actor-critic update.
//
// The advantage is reward minus the critic's value with the value treated
// as a constant (critic-as-baseline): no gradient flows from the actor
// loss into the critic. The actor loss is the negative mean of
// log pi(a|s) * advantage at the arg-max index of each one-hot action
// row; the critic loss is MSE against the reward; the distribution's
// entropy is added with a small negative weight to discourage premature
// determinism. Gradients are clipped to a global norm of 1.0 before the
// optimizer step.
func TrainStep(a *Agent, states, actions *mat.Dense, rewards []float64, entropyCoef float64) Metrics {
	batch, _ := states.Dims()
	n := float64(batch)

	// Forward pass, train mode (dropout active).
	logits, actorCache := a.actor.forward(states, true, a.rng)
	probs := softmaxRows(logits)

	vOut, criticCache := a.critic.forward(states, true, a.rng)
	values := make([]float64, batch)
	for i := range batch {
		values[i] = vOut.At(i, 0)
	}

	var (
		actorLoss  float64
		criticLoss float64
		entropy    float64
		sumReward  float64
		sumValue   float64
		sumAdv     float64
	)

	dLogits := mat.NewDense(batch, a.cfg.ActionDim, nil)
	dValues := mat.NewDense(batch, 1, nil)

	for i := range batch {
		adv := rewards[i] - values[i]
		sumReward += rewards[i]
		sumValue += values[i]
		sumAdv += adv

		row := probs.RawRowView(i)
		taken := argmaxRow(actions, i)
		actorLoss += -math.Log(row[taken]) * adv

		diff := values[i] - rewards[i]
		criticLoss += diff * diff
		dValues.Set(i, 0, 2*diff/n)

		rowEntropy := 0.0
		for _, p := range row {
			rowEntropy -= p * math.Log(p+entropyFloor)
		}
		entropy += rowEntropy

		// Gradient at the logits: the advantage term plus the entropy
		// bonus term, both already averaged over the batch.
		grad := dLogits.RawRowView(i)
		for j, p := range row {
			g := adv * p / n
			if j == taken {
				g -= adv / n
			}
			g += entropyCoef * p * (math.Log(p+entropyFloor) + rowEntropy) / n
			grad[j] = g
		}
	}

	actorLoss /= n
	criticLoss /= n
	entropy /= n
	totalLoss := actorLoss + criticLoss - entropyCoef*entropy

	a.actor.backward(actorCache, dLogits)
	a.critic.backward(criticCache, dValues)

	params := a.params()
	clipGradNorm(params, maxGradNorm)
	a.opt.Step(params)

	return Metrics{
		ActorLoss:     actorLoss,
		CriticLoss:    criticLoss,
		Entropy:       entropy,
		TotalLoss:     totalLoss,
		MeanReward:    sumReward / n,
		MeanValue:     sumValue / n,
		MeanAdvantage: sumAdv / n,
	}
}
