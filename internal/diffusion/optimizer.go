package diffusion

import "math"

// AdamW is the decoupled weight-decay Adam optimizer over a network's
// parameters.
type AdamW struct {
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	params []*param
	m      [][]float64
	v      [][]float64
	step   int
}

// NewAdamW binds an optimizer to the network's current parameter set.
func NewAdamW(net *DenoisingNetwork, weightDecay float64) *AdamW {
	ps := net.Params()
	opt := &AdamW{
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		params:      ps,
		m:           make([][]float64, len(ps)),
		v:           make([][]float64, len(ps)),
	}
	for i, p := range ps {
		opt.m[i] = make([]float64, len(p.value))
		opt.v[i] = make([]float64, len(p.value))
	}
	return opt
}

// ClipGradNorm scales all gradients so their global L2 norm does not
// exceed maxNorm. Returns the pre-clip norm.
func (o *AdamW) ClipGradNorm(maxNorm float64) float64 {
	var sum float64
	for _, p := range o.params {
		for _, g := range p.grad {
			sum += g * g
		}
	}
	norm := math.Sqrt(sum)
	if norm > maxNorm && norm > 0 {
		scale := maxNorm / norm
		for _, p := range o.params {
			for i := range p.grad {
				p.grad[i] *= scale
			}
		}
	}
	return norm
}

// Step applies one update with the given learning rate.
func (o *AdamW) Step(lr float64) {
	o.step++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.step))

	for i, p := range o.params {
		m := o.m[i]
		v := o.v[i]
		for j := range p.value {
			g := p.grad[j]
			m[j] = o.Beta1*m[j] + (1-o.Beta1)*g
			v[j] = o.Beta2*v[j] + (1-o.Beta2)*g*g
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			p.value[j] -= lr * (mHat/(math.Sqrt(vHat)+o.Eps) + o.WeightDecay*p.value[j])
		}
	}
}

// CosineAnnealedLR returns the learning rate for epoch in [0, total)
// annealed from base toward zero, matching a cosine schedule over the
// full epoch count.
func CosineAnnealedLR(base float64, epoch, total int) float64 {
	if total <= 1 {
		return base
	}
	return base * 0.5 * (1 + math.Cos(math.Pi*float64(epoch)/float64(total)))
}
