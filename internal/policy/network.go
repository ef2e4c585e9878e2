// Package policy implements the Actor-Critic agent: two feed-forward
// networks sharing a hidden architecture, a shared Adam optimizer, the
// single-step advantage actor-critic update, and checkpoint persistence.
package policy

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// tensor is a flat parameter block with its gradient accumulator.
type tensor struct {
	data []float64
	grad []float64
}

func newTensor(n int) *tensor {
	return &tensor{data: make([]float64, n), grad: make([]float64, n)}
}

// linear is a fully connected layer. Weights are stored row-major
// (in x out) so a mat.Dense view shares the backing slice with the
// optimizer and the checkpoint encoder.
type linear struct {
	in, out int
	w, b    *tensor
}

func newLinear(in, out int, rng *rand.Rand) *linear {
	l := &linear{in: in, out: out, w: newTensor(in * out), b: newTensor(out)}

	// Uniform(-k, k) with k = 1/sqrt(in).
	bound := 1 / math.Sqrt(float64(in))
	for i := range l.w.data {
		l.w.data[i] = rng.Float64()*2*bound - bound
	}
	for i := range l.b.data {
		l.b.data[i] = rng.Float64()*2*bound - bound
	}
	return l
}

func (l *linear) weights() *mat.Dense { return mat.NewDense(l.in, l.out, l.w.data) }

// forward computes y = x*W + b for a batch x (B x in).
func (l *linear) forward(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	y := mat.NewDense(rows, l.out, nil)
	y.Mul(x, l.weights())
	for i := range rows {
		floats.Add(y.RawRowView(i), l.b.data)
	}
	return y
}

// backward writes dW and db into the gradient accumulators and returns dX.
// Each layer is visited exactly once per update, so overwriting is safe.
func (l *linear) backward(x, dy *mat.Dense) *mat.Dense {
	gw := mat.NewDense(l.in, l.out, l.w.grad)
	gw.Mul(x.T(), dy)

	rows, _ := dy.Dims()
	for j := range l.out {
		sum := 0.0
		for i := range rows {
			sum += dy.At(i, j)
		}
		l.b.grad[j] = sum
	}

	dx := mat.NewDense(rows, l.in, nil)
	dx.Mul(dy, l.weights().T())
	return dx
}

// network is a feed-forward stack: hidden layers with ReLU and inverted
// dropout, then a task-specific linear output head.
type network struct {
	hidden  []*linear
	out     *linear
	dropout float64
}

func newNetwork(inDim int, hiddenDims []int, outDim int, dropout float64, rng *rand.Rand) *network {
	n := &network{dropout: dropout}
	cur := inDim
	for _, h := range hiddenDims {
		n.hidden = append(n.hidden, newLinear(cur, h, rng))
		cur = h
	}
	n.out = newLinear(cur, outDim, rng)
	return n
}

// netCache holds the per-layer tensors the backward pass needs.
type netCache struct {
	inputs []*mat.Dense // input to each hidden layer, then to the output head
	preact []*mat.Dense // pre-activation z of each hidden layer
	masks  []*mat.Dense // dropout masks; nil entries in eval mode
}

// forward runs the stack. In train mode, dropout masks are sampled and
// recorded; in eval mode dropout is the identity.
func (n *network) forward(x *mat.Dense, train bool, rng *rand.Rand) (*mat.Dense, *netCache) {
	c := &netCache{}
	cur := x
	for _, l := range n.hidden {
		c.inputs = append(c.inputs, cur)
		z := l.forward(cur)
		c.preact = append(c.preact, z)

		rows, cols := z.Dims()
		a := mat.NewDense(rows, cols, nil)
		a.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, z)

		var mask *mat.Dense
		if train && n.dropout > 0 {
			mask = dropoutMask(rows, cols, n.dropout, rng)
			a.MulElem(a, mask)
		}
		c.masks = append(c.masks, mask)
		cur = a
	}
	c.inputs = append(c.inputs, cur)
	return n.out.forward(cur), c
}

// backward propagates dOut through the stack, filling the gradient
// accumulators of every layer.
func (n *network) backward(c *netCache, dOut *mat.Dense) {
	d := n.out.backward(c.inputs[len(c.inputs)-1], dOut)
	for i := len(n.hidden) - 1; i >= 0; i-- {
		if m := c.masks[i]; m != nil {
			d.MulElem(d, m)
		}
		// ReLU gate: zero where the pre-activation was non-positive.
		z := c.preact[i]
		rows, cols := d.Dims()
		for r := range rows {
			for col := range cols {
				if z.At(r, col) <= 0 {
					d.Set(r, col, 0)
				}
			}
		}
		d = n.hidden[i].backward(c.inputs[i], d)
	}
}

func (n *network) params() []*tensor {
	var out []*tensor
	for _, l := range n.hidden {
		out = append(out, l.w, l.b)
	}
	return append(out, n.out.w, n.out.b)
}

func (n *network) layers() []*linear {
	return append(append([]*linear{}, n.hidden...), n.out)
}

// dropoutMask samples an inverted-dropout mask: kept units are scaled by
// 1/(1-rate) so eval-mode forward needs no rescaling.
func dropoutMask(rows, cols int, rate float64, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	scale := 1 / (1 - rate)
	for i := range rows {
		for j := range cols {
			if rng.Float64() >= rate {
				m.Set(i, j, scale)
			}
		}
	}
	return m
}

// softmaxRows normalizes each row of logits into a probability distribution.
func softmaxRows(logits *mat.Dense) *mat.Dense {
	rows, cols := logits.Dims()
	p := mat.NewDense(rows, cols, nil)
	for i := range rows {
		row := logits.RawRowView(i)
		maxv := floats.Max(row)
		sum := 0.0
		out := p.RawRowView(i)
		for j, v := range row {
			e := math.Exp(v - maxv)
			out[j] = e
			sum += e
		}
		floats.Scale(1/sum, out)
	}
	return p
}

// argmaxRow returns the index of the largest element in row i.
func argmaxRow(m *mat.Dense, i int) int {
	return floats.MaxIdx(m.RawRowView(i))
}
