package policy

import "math"

// Default optimizer hyperparameters.
const (
	DefaultLearningRate = 1e-4
	DefaultWeightDecay  = 1e-5

	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// adam is an adaptive-moment-estimation optimizer over a fixed parameter
// list. Weight decay is coupled (added to the gradient before the moment
// update).
type adam struct {
	lr          float64
	weightDecay float64
	step        int
	m, v        [][]float64 // first/second moments, aligned with the parameter list
}

func newAdam(params []*tensor, lr, weightDecay float64) *adam {
	o := &adam{lr: lr, weightDecay: weightDecay}
	for _, p := range params {
		o.m = append(o.m, make([]float64, len(p.data)))
		o.v = append(o.v, make([]float64, len(p.data)))
	}
	return o
}

// Step applies one update using the gradients currently held by params.
func (o *adam) Step(params []*tensor) {
	o.step++
	bc1 := 1 - math.Pow(adamBeta1, float64(o.step))
	bc2 := 1 - math.Pow(adamBeta2, float64(o.step))

	for pi, p := range params {
		m, v := o.m[pi], o.v[pi]
		for i := range p.data {
			g := p.grad[i] + o.weightDecay*p.data[i]
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
			p.data[i] -= o.lr * (m[i] / bc1) / (math.Sqrt(v[i]/bc2) + adamEps)
		}
	}
}

// clipGradNorm rescales all gradients so their global L2 norm does not
// exceed maxNorm. Returns the pre-clip norm.
func clipGradNorm(params []*tensor, maxNorm float64) float64 {
	total := 0.0
	for _, p := range params {
		for _, g := range p.grad {
			total += g * g
		}
	}
	norm := math.Sqrt(total)
	if norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for _, p := range params {
			for i := range p.grad {
				p.grad[i] *= scale
			}
		}
	}
	return norm
}
