package diffusion

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Process implements the DDPM forward noising and learned reverse
// (denoising) process over flattened (horizon x features) windows.
// All stochastic draws flow through the injected rng so runs are
// reproducible given a seed.
type Process struct {
	sched *VarianceSchedule
	net   *DenoisingNetwork
	rng   *rand.Rand
}

// NewProcess wires a schedule and network together.
func NewProcess(sched *VarianceSchedule, net *DenoisingNetwork, rng *rand.Rand) *Process {
	return &Process{sched: sched, net: net, rng: rng}
}

// Schedule returns the immutable variance schedule.
func (p *Process) Schedule() *VarianceSchedule { return p.sched }

// Network returns the denoising network.
func (p *Process) Network() *DenoisingNetwork { return p.net }

func (p *Process) randn(rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = p.rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

func (p *Process) checkTimesteps(ts []int) error {
	for _, t := range ts {
		if t < 0 || t >= p.sched.T {
			return fmt.Errorf("%w: timestep %d outside [0,%d)", ErrShapeMismatch, t, p.sched.T)
		}
	}
	return nil
}

// ForwardNoise applies the closed-form forward process
// x_t = sqrt(abar_t)*x0 + sqrt(1-abar_t)*noise, broadcasting the
// per-example scalar across the window. A nil noise draws standard
// normal; the used noise is returned alongside x_t.
func (p *Process) ForwardNoise(x0 *mat.Dense, ts []int, noise *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	rows, cols := x0.Dims()
	if len(ts) != rows {
		return nil, nil, fmt.Errorf("%w: %d examples, %d timesteps", ErrShapeMismatch, rows, len(ts))
	}
	if err := p.checkTimesteps(ts); err != nil {
		return nil, nil, err
	}
	if noise == nil {
		noise = p.randn(rows, cols)
	} else if nr, nc := noise.Dims(); nr != rows || nc != cols {
		return nil, nil, fmt.Errorf("%w: noise %dx%d, data %dx%d", ErrShapeMismatch, nr, nc, rows, cols)
	}

	xt := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		a := p.sched.SqrtAC[ts[r]]
		b := p.sched.SqrtOneMinusAC[ts[r]]
		xrow := x0.RawRowView(r)
		nrow := noise.RawRowView(r)
		orow := xt.RawRowView(r)
		for c := range orow {
			orow[c] = a*xrow[c] + b*nrow[c]
		}
	}
	return xt, noise, nil
}

// ReverseStep denoises one step. At t == 0 it returns the posterior mean
// with no injected noise; the terminal step must stay deterministic.
func (p *Process) ReverseStep(xt *mat.Dense, t int, cond *mat.Dense) (*mat.Dense, error) {
	rows, cols := xt.Dims()
	if cr, _ := cond.Dims(); cr != rows {
		return nil, fmt.Errorf("%w: sample batch %d, condition batch %d", ErrShapeMismatch, rows, cr)
	}
	if t < 0 || t >= p.sched.T {
		return nil, fmt.Errorf("%w: timestep %d outside [0,%d)", ErrShapeMismatch, t, p.sched.T)
	}

	ts := make([]int, rows)
	for i := range ts {
		ts[i] = t
	}
	noisePred, err := p.net.Forward(xt, ts, cond, false)
	if err != nil {
		return nil, err
	}

	beta := p.sched.Betas[t]
	invSqrtAlpha := 1 / math.Sqrt(p.sched.Alphas[t])
	coef := beta / p.sched.SqrtOneMinusAC[t]

	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		xrow := xt.RawRowView(r)
		erow := noisePred.RawRowView(r)
		orow := out.RawRowView(r)
		for c := range orow {
			orow[c] = invSqrtAlpha * (xrow[c] - coef*erow[c])
		}
	}

	if t == 0 {
		return out, nil
	}

	sigma := math.Sqrt(beta)
	z := p.randn(rows, cols)
	for r := 0; r < rows; r++ {
		orow := out.RawRowView(r)
		zrow := z.RawRowView(r)
		for c := range orow {
			orow[c] += sigma * zrow[c]
		}
	}
	return out, nil
}

// Sample runs the full reverse loop from pure noise down to t = 0.
// The T steps are strictly sequential; this is the dominant latency cost.
func (p *Process) Sample(cond *mat.Dense, batch int) (*mat.Dense, error) {
	cr, _ := cond.Dims()
	if cr != batch {
		return nil, fmt.Errorf("%w: requested batch %d, condition batch %d", ErrShapeMismatch, batch, cr)
	}
	cols := p.net.cfg.ForecastHorizon * p.net.cfg.InputDim

	x := p.randn(batch, cols)
	var err error
	for t := p.sched.T - 1; t >= 0; t-- {
		x, err = p.ReverseStep(x, t, cond)
		if err != nil {
			return nil, fmt.Errorf("reverse step t=%d: %w", t, err)
		}
	}

	if hasNonFinite(x) {
		return nil, fmt.Errorf("%w: non-finite value in sampled output", ErrNumericInstability)
	}
	return x, nil
}

// Loss computes the simplified DDPM objective: MSE between true and
// predicted noise at a uniformly drawn timestep per example.
func (p *Process) Loss(x0, cond *mat.Dense) (float64, error) {
	loss, _, _, err := p.lossForward(x0, cond, false)
	return loss, err
}

// TrainStep computes the loss and accumulates parameter gradients for one
// batch. The caller owns ZeroGrads, clipping, and the optimizer step.
func (p *Process) TrainStep(x0, cond *mat.Dense) (float64, error) {
	loss, pred, noise, err := p.lossForward(x0, cond, true)
	if err != nil {
		return 0, err
	}

	rows, cols := pred.Dims()
	scale := 2 / float64(rows*cols)
	grad := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		prow := pred.RawRowView(r)
		nrow := noise.RawRowView(r)
		grow := grad.RawRowView(r)
		for c := range grow {
			grow[c] = scale * (prow[c] - nrow[c])
		}
	}
	p.net.Backward(grad)
	return loss, nil
}

func (p *Process) lossForward(x0, cond *mat.Dense, train bool) (float64, *mat.Dense, *mat.Dense, error) {
	rows, _ := x0.Dims()
	if cr, _ := cond.Dims(); cr != rows {
		return 0, nil, nil, fmt.Errorf("%w: target batch %d, condition batch %d", ErrShapeMismatch, rows, cr)
	}

	ts := make([]int, rows)
	for i := range ts {
		ts[i] = p.rng.Intn(p.sched.T)
	}

	xt, noise, err := p.ForwardNoise(x0, ts, nil)
	if err != nil {
		return 0, nil, nil, err
	}

	pred, err := p.net.Forward(xt, ts, cond, train)
	if err != nil {
		return 0, nil, nil, err
	}

	var sum float64
	_, cols := pred.Dims()
	for r := 0; r < rows; r++ {
		prow := pred.RawRowView(r)
		nrow := noise.RawRowView(r)
		for c := range prow {
			d := prow[c] - nrow[c]
			sum += d * d
		}
	}
	loss := sum / float64(rows*cols)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, nil, nil, fmt.Errorf("%w: loss is %v", ErrNumericInstability, loss)
	}
	return loss, pred, noise, nil
}

func hasNonFinite(m *mat.Dense) bool {
	raw := m.RawMatrix()
	for _, v := range raw.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
