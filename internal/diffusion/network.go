package diffusion

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// param is one learnable tensor, flattened, with its accumulated gradient.
type param struct {
	value []float64
	grad  []float64
}

// layer is one differentiable block. forward caches whatever backward
// needs; backward accumulates parameter gradients and returns the
// gradient with respect to the layer input.
type layer interface {
	forward(x *mat.Dense, train bool) *mat.Dense
	backward(grad *mat.Dense) *mat.Dense
	params() []*param
}

// ---- linear ----

type linear struct {
	in, out int
	w       *param // in*out, row-major [in][out]
	b       *param // out

	x *mat.Dense // cached input
}

func newLinear(in, out int, rng *rand.Rand) *linear {
	w := make([]float64, in*out)
	std := math.Sqrt(2.0 / float64(in+out))
	for i := range w {
		w[i] = rng.NormFloat64() * std
	}
	return &linear{
		in:  in,
		out: out,
		w:   &param{value: w, grad: make([]float64, in*out)},
		b:   &param{value: make([]float64, out), grad: make([]float64, out)},
	}
}

func (l *linear) weight() *mat.Dense { return mat.NewDense(l.in, l.out, l.w.value) }

func (l *linear) forward(x *mat.Dense, train bool) *mat.Dense {
	if train {
		l.x = x
	}
	rows, _ := x.Dims()
	out := mat.NewDense(rows, l.out, nil)
	out.Mul(x, l.weight())
	raw := out.RawMatrix()
	for r := 0; r < rows; r++ {
		row := raw.Data[r*raw.Stride : r*raw.Stride+l.out]
		for c := range row {
			row[c] += l.b.value[c]
		}
	}
	return out
}

func (l *linear) backward(grad *mat.Dense) *mat.Dense {
	rows, _ := grad.Dims()

	// dW += X^T * dY
	dw := mat.NewDense(l.in, l.out, l.w.grad)
	var acc mat.Dense
	acc.Mul(l.x.T(), grad)
	dw.Add(dw, &acc)

	// db += column sums of dY
	graw := grad.RawMatrix()
	for r := 0; r < rows; r++ {
		row := graw.Data[r*graw.Stride : r*graw.Stride+l.out]
		for c := range row {
			l.b.grad[c] += row[c]
		}
	}

	// dX = dY * W^T
	dx := mat.NewDense(rows, l.in, nil)
	dx.Mul(grad, l.weight().T())
	return dx
}

func (l *linear) params() []*param { return []*param{l.w, l.b} }

// ---- gelu ----

type gelu struct {
	x *mat.Dense
}

const geluC = 0.7978845608028654 // sqrt(2/pi)

func geluFn(x float64) float64 {
	return 0.5 * x * (1 + math.Tanh(geluC*(x+0.044715*x*x*x)))
}

func geluGrad(x float64) float64 {
	inner := geluC * (x + 0.044715*x*x*x)
	t := math.Tanh(inner)
	sech2 := 1 - t*t
	return 0.5*(1+t) + 0.5*x*sech2*geluC*(1+3*0.044715*x*x)
}

func (g *gelu) forward(x *mat.Dense, train bool) *mat.Dense {
	if train {
		g.x = x
	}
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return geluFn(v) }, x)
	return &out
}

func (g *gelu) backward(grad *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(r, c int, v float64) float64 { return v * geluGrad(g.x.At(r, c)) }, grad)
	return &dx
}

func (g *gelu) params() []*param { return nil }

// ---- layer normalization ----

type layerNorm struct {
	dim   int
	gamma *param
	beta  *param

	xhat   *mat.Dense
	invStd []float64
}

const lnEps = 1e-5

func newLayerNorm(dim int) *layerNorm {
	gamma := make([]float64, dim)
	for i := range gamma {
		gamma[i] = 1
	}
	return &layerNorm{
		dim:   dim,
		gamma: &param{value: gamma, grad: make([]float64, dim)},
		beta:  &param{value: make([]float64, dim), grad: make([]float64, dim)},
	}
}

func (ln *layerNorm) forward(x *mat.Dense, train bool) *mat.Dense {
	rows, cols := x.Dims()
	xhat := mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)
	invStd := make([]float64, rows)

	for r := 0; r < rows; r++ {
		row := x.RawRowView(r)
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(cols)
		var variance float64
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(cols)
		inv := 1 / math.Sqrt(variance+lnEps)
		invStd[r] = inv

		for c, v := range row {
			h := (v - mean) * inv
			xhat.Set(r, c, h)
			out.Set(r, c, ln.gamma.value[c]*h+ln.beta.value[c])
		}
	}

	if train {
		ln.xhat = xhat
		ln.invStd = invStd
	}
	return out
}

func (ln *layerNorm) backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	dx := mat.NewDense(rows, cols, nil)
	n := float64(cols)

	for r := 0; r < rows; r++ {
		grow := grad.RawRowView(r)
		hrow := ln.xhat.RawRowView(r)

		var sumDh, sumDhH float64
		dh := make([]float64, cols)
		for c := 0; c < cols; c++ {
			ln.gamma.grad[c] += grow[c] * hrow[c]
			ln.beta.grad[c] += grow[c]
			dh[c] = grow[c] * ln.gamma.value[c]
			sumDh += dh[c]
			sumDhH += dh[c] * hrow[c]
		}
		inv := ln.invStd[r]
		for c := 0; c < cols; c++ {
			dx.Set(r, c, inv*(dh[c]-sumDh/n-hrow[c]*sumDhH/n))
		}
	}
	return dx
}

func (ln *layerNorm) params() []*param { return []*param{ln.gamma, ln.beta} }

// ---- dropout ----

type dropout struct {
	rate float64
	rng  *rand.Rand
	mask *mat.Dense
}

func (d *dropout) forward(x *mat.Dense, train bool) *mat.Dense {
	if !train || d.rate <= 0 {
		d.mask = nil
		return x
	}
	rows, cols := x.Dims()
	scale := 1 / (1 - d.rate)
	mask := mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if d.rng.Float64() < d.rate {
				continue
			}
			mask.Set(r, c, scale)
			out.Set(r, c, x.At(r, c)*scale)
		}
	}
	d.mask = mask
	return out
}

func (d *dropout) backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	var dx mat.Dense
	dx.MulElem(grad, d.mask)
	return &dx
}

func (d *dropout) params() []*param { return nil }

// ---- stack ----

type stack struct {
	layers []layer
}

func (s *stack) forward(x *mat.Dense, train bool) *mat.Dense {
	for _, l := range s.layers {
		x = l.forward(x, train)
	}
	return x
}

func (s *stack) backward(grad *mat.Dense) *mat.Dense {
	for i := len(s.layers) - 1; i >= 0; i-- {
		grad = s.layers[i].backward(grad)
	}
	return grad
}

func (s *stack) params() []*param {
	var ps []*param
	for _, l := range s.layers {
		ps = append(ps, l.params()...)
	}
	return ps
}

// NetworkConfig sizes the denoising network.
type NetworkConfig struct {
	InputDim        int // features per bar
	HiddenDim       int
	NumLayers       int
	LookbackWindow  int
	ForecastHorizon int
	DropoutRate     float64
}

// DefaultNetworkConfig mirrors the production model dimensions.
func DefaultNetworkConfig(lookback, horizon int) NetworkConfig {
	return NetworkConfig{
		InputDim:        5,
		HiddenDim:       128,
		NumLayers:       4,
		LookbackWindow:  lookback,
		ForecastHorizon: horizon,
		DropoutRate:     0.1,
	}
}

// DenoisingNetwork predicts the noise component of a noisy future window
// given the diffusion timestep and the historical condition window.
// Go has no maintained autodiff library, so the backward pass is written
// explicitly; the matrix kernels are gonum's.
type DenoisingNetwork struct {
	cfg NetworkConfig

	condEncoder *stack
	encoder     *stack
	denoiser    *stack
}

// NewDenoisingNetwork initializes all weights from rng.
func NewDenoisingNetwork(cfg NetworkConfig, rng *rand.Rand) (*DenoisingNetwork, error) {
	if cfg.InputDim <= 0 || cfg.HiddenDim <= 0 || cfg.LookbackWindow <= 0 || cfg.ForecastHorizon <= 0 {
		return nil, fmt.Errorf("denoising network: invalid config %+v", cfg)
	}
	h := cfg.HiddenDim
	condIn := cfg.LookbackWindow * cfg.InputDim
	targetIn := cfg.ForecastHorizon * cfg.InputDim

	cond := &stack{layers: []layer{
		newLinear(condIn, 2*h, rng),
		&gelu{},
		newLayerNorm(2 * h),
		newLinear(2*h, h, rng),
		&gelu{},
	}}

	enc := &stack{layers: []layer{
		newLinear(targetIn+h, h, rng),
		&gelu{},
		newLayerNorm(h),
	}}
	for i := 0; i < cfg.NumLayers; i++ {
		enc.layers = append(enc.layers,
			newLinear(h, h, rng),
			&gelu{},
			newLayerNorm(h),
			&dropout{rate: cfg.DropoutRate, rng: rng},
		)
	}

	den := &stack{layers: []layer{
		newLinear(h, 2*h, rng),
		&gelu{},
		newLayerNorm(2 * h),
		&dropout{rate: cfg.DropoutRate, rng: rng},
		newLinear(2*h, h, rng),
		&gelu{},
		newLayerNorm(h),
		newLinear(h, targetIn, rng),
	}}

	return &DenoisingNetwork{cfg: cfg, condEncoder: cond, encoder: enc, denoiser: den}, nil
}

// Config returns the network dimensions.
func (n *DenoisingNetwork) Config() NetworkConfig { return n.cfg }

// timestepEmbedding builds standard sinusoidal embeddings for each
// per-example timestep.
func timestepEmbedding(ts []int, dim int) *mat.Dense {
	half := dim / 2
	out := mat.NewDense(len(ts), dim, nil)
	logBase := math.Log(10000) / float64(half-1)
	for i, t := range ts {
		for j := 0; j < half; j++ {
			freq := math.Exp(-logBase * float64(j))
			angle := float64(t) * freq
			out.Set(i, j, math.Sin(angle))
			out.Set(i, half+j, math.Cos(angle))
		}
	}
	return out
}

// Forward predicts noise for a batch. noisy is [B, H*F], cond is [B, L*F],
// ts has one diffusion timestep per example.
func (n *DenoisingNetwork) Forward(noisy *mat.Dense, ts []int, cond *mat.Dense, train bool) (*mat.Dense, error) {
	b, tc := noisy.Dims()
	cb, cc := cond.Dims()
	targetIn := n.cfg.ForecastHorizon * n.cfg.InputDim
	condIn := n.cfg.LookbackWindow * n.cfg.InputDim
	if tc != targetIn || cc != condIn {
		return nil, fmt.Errorf("%w: target cols %d (want %d), condition cols %d (want %d)",
			ErrShapeMismatch, tc, targetIn, cc, condIn)
	}
	if cb != b || len(ts) != b {
		return nil, fmt.Errorf("%w: batch %d, condition batch %d, timesteps %d",
			ErrShapeMismatch, b, cb, len(ts))
	}

	condEmb := n.condEncoder.forward(cond, train)

	tEmb := timestepEmbedding(ts, n.cfg.HiddenDim)
	xin := mat.NewDense(b, targetIn+n.cfg.HiddenDim, nil)
	xin.Augment(noisy, tEmb)

	encoded := n.encoder.forward(xin, train)

	var combined mat.Dense
	combined.Add(encoded, condEmb)

	out := n.denoiser.forward(&combined, train)
	return out, nil
}

// Backward propagates the output gradient through the whole network,
// accumulating parameter gradients. Must follow a Forward with train=true.
func (n *DenoisingNetwork) Backward(grad *mat.Dense) {
	dCombined := n.denoiser.backward(grad)
	// combined = encoded + condEmb: the gradient flows unchanged into both.
	n.encoder.backward(dCombined)
	n.condEncoder.backward(dCombined)
}

// Params exposes all learnable tensors for the optimizer and checkpoints.
func (n *DenoisingNetwork) Params() []*param {
	var ps []*param
	ps = append(ps, n.condEncoder.params()...)
	ps = append(ps, n.encoder.params()...)
	ps = append(ps, n.denoiser.params()...)
	return ps
}

// ZeroGrads clears accumulated gradients before a new batch.
func (n *DenoisingNetwork) ZeroGrads() {
	for _, p := range n.Params() {
		for i := range p.grad {
			p.grad[i] = 0
		}
	}
}

// Weights snapshots every parameter tensor.
func (n *DenoisingNetwork) Weights() [][]float64 {
	ps := n.Params()
	out := make([][]float64, len(ps))
	for i, p := range ps {
		w := make([]float64, len(p.value))
		copy(w, p.value)
		out[i] = w
	}
	return out
}

// SetWeights restores a snapshot taken from a network of identical shape.
func (n *DenoisingNetwork) SetWeights(weights [][]float64) error {
	ps := n.Params()
	if len(weights) != len(ps) {
		return fmt.Errorf("%w: %d weight tensors, network has %d", ErrShapeMismatch, len(weights), len(ps))
	}
	for i, p := range ps {
		if len(weights[i]) != len(p.value) {
			return fmt.Errorf("%w: tensor %d has %d values, want %d", ErrShapeMismatch, i, len(weights[i]), len(p.value))
		}
	}
	for i, p := range ps {
		copy(p.value, weights[i])
	}
	return nil
}
