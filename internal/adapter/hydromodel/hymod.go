package hydromodel

import (
	"context"
	"math"

	"github.com/couchcryptid/catchment-etl/internal/domain"
)

var hymodParams = []paramSpec{
	{name: "Sm", min: 1e-6, max: math.Inf(1)},
	{name: "beta", min: 0, max: math.Inf(1)},
	{name: "alfa", min: 0, max: 1},
	{name: "Rs", min: 0, max: 1},
	{name: "Rf", min: 0, max: 1},
}

// HyMod is the five-parameter HyMod model: a probability-distributed soil
// moisture store feeding one slow and three quick linear reservoirs.
//
// Params are [Sm, beta, alfa, Rs, Rf]. States are [soil, slow, quick1,
// quick2, quick3] and fluxes are [Ea, ER1, ER2, Qslow, Qquick], all in mm.
type HyMod struct{}

func (HyMod) Name() string { return "HyMod" }

func (HyMod) Simulate(ctx context.Context, in domain.ModelInput, params, initial []float64) (domain.Simulation, error) {
	if err := in.Validate(); err != nil {
		return domain.Simulation{}, err
	}
	if err := checkParams("HyMod", hymodParams, params); err != nil {
		return domain.Simulation{}, err
	}
	state, err := initialState("HyMod", initial, 5)
	if err != nil {
		return domain.Simulation{}, err
	}

	soil := soilStore{sm: params[0], beta: params[1], w: math.Min(state[0], params[0])}
	alfa := params[2]
	slow := linearReservoir{k: params[3], s: state[1]}
	quick := [3]linearReservoir{
		{k: params[4], s: state[2]},
		{k: params[4], s: state[3]},
		{k: params[4], s: state[4]},
	}

	n := in.Len()
	sim := domain.Simulation{
		Model:  "HyMod",
		Flow:   make([]float64, n),
		States: make([][]float64, n),
		Fluxes: make([][]float64, n),
	}
	for t := range n {
		if t%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return domain.Simulation{}, err
			}
		}

		er1, er2, ea := soil.update(in.Precipitation[t], in.PET[t])
		qs := slow.update((1 - alfa) * er2)
		qf := er1 + alfa*er2
		for i := range quick {
			qf = quick[i].update(qf)
		}

		sim.Flow[t] = qs + qf
		sim.States[t] = []float64{soil.w, slow.s, quick[0].s, quick[1].s, quick[2].s}
		sim.Fluxes[t] = []float64{ea, er1, er2, qs, qf}
	}
	return sim, nil
}

// soilStore is the Pareto-distributed storage of HyMod. sm is the basin
// average capacity and w the current storage.
type soilStore struct {
	sm, beta float64
	w        float64
}

// update adds p, then evaporates at pet scaled by relative storage. It
// returns overflow excess, infiltration excess and actual evaporation.
func (s *soilStore) update(p, pet float64) (er1, er2, ea float64) {
	cmax := s.sm * (s.beta + 1)
	w1 := s.w
	c1 := cmax * (1 - math.Pow(1-clamp01(w1/s.sm), 1/(s.beta+1)))
	c2 := math.Min(c1+p, cmax)
	er1 = math.Max(p-cmax+c1, 0)
	w2 := s.sm * (1 - math.Pow(1-clamp01(c2/cmax), s.beta+1))
	er2 = math.Max((c2-c1)-(w2-w1), 0)

	ea = math.Min(w2, math.Max(pet, 0)*w2/s.sm)
	s.w = w2 - ea
	return er1, er2, ea
}

// linearReservoir releases fraction k of its content each step.
type linearReservoir struct {
	k, s float64
}

func (r *linearReservoir) update(in float64) float64 {
	total := r.s + in
	q := r.k * total
	r.s = total - q
	return q
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
