package diffusion

import (
	"fmt"
	"math"
)

const (
	betaMin = 1e-4
	betaMax = 0.9999
)

// VarianceSchedule precomputes the cosine noise schedule shared by the
// forward and reverse processes. Immutable once constructed.
type VarianceSchedule struct {
	T int

	Betas             []float64
	Alphas            []float64
	AlphasCumprod     []float64
	AlphasCumprodPrev []float64 // alpha_bar_{t-1}, with alpha_bar_{-1} = 1
	SqrtAC            []float64 // sqrt(alpha_bar_t)
	SqrtOneMinusAC    []float64 // sqrt(1 - alpha_bar_t)
}

// NewVarianceSchedule builds the cosine schedule of Nichol & Dhariwal with
// offset s = 0.008, betas clipped to [1e-4, 0.9999].
func NewVarianceSchedule(timesteps int) (*VarianceSchedule, error) {
	if timesteps <= 0 {
		return nil, fmt.Errorf("variance schedule: timesteps must be positive, got %d", timesteps)
	}

	const s = 0.008
	// alpha_bar at the T+1 boundary points, normalized so f(0) = 1.
	f := func(x float64) float64 {
		v := math.Cos((x/float64(timesteps) + s) / (1 + s) * math.Pi / 2)
		return v * v
	}
	f0 := f(0)

	sched := &VarianceSchedule{
		T:                 timesteps,
		Betas:             make([]float64, timesteps),
		Alphas:            make([]float64, timesteps),
		AlphasCumprod:     make([]float64, timesteps),
		AlphasCumprodPrev: make([]float64, timesteps),
		SqrtAC:            make([]float64, timesteps),
		SqrtOneMinusAC:    make([]float64, timesteps),
	}

	prev := f0 / f0
	cumprod := 1.0
	for t := 0; t < timesteps; t++ {
		cur := f(float64(t+1)) / f0
		beta := 1 - cur/prev
		beta = math.Min(math.Max(beta, betaMin), betaMax)

		alpha := 1 - beta
		sched.AlphasCumprodPrev[t] = cumprod
		cumprod *= alpha

		sched.Betas[t] = beta
		sched.Alphas[t] = alpha
		sched.AlphasCumprod[t] = cumprod
		sched.SqrtAC[t] = math.Sqrt(cumprod)
		sched.SqrtOneMinusAC[t] = math.Sqrt(1 - cumprod)

		prev = cur
	}

	return sched, nil
}
