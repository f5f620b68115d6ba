package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ModelInput holds the forcing series consumed by a rainfall-runoff model.
// All three series must have the same, non-zero length.
type ModelInput struct {
	Precipitation []float64
	PET           []float64
	Temperature   []float64
}

// InputFromTable extracts model forcing from a normalized table.
func InputFromTable(t CatchmentTable) ModelInput {
	in := ModelInput{
		Precipitation: make([]float64, t.Len()),
		PET:           make([]float64, t.Len()),
		Temperature:   make([]float64, t.Len()),
	}
	for i := range t.Records {
		in.Precipitation[i] = t.Records[i].Precipitation
		in.PET[i] = t.Records[i].PET
		in.Temperature[i] = t.Records[i].Temperature
	}
	return in
}

// Len returns the number of time steps.
func (in ModelInput) Len() int { return len(in.Precipitation) }

// Validate checks that the series are non-empty and aligned.
func (in ModelInput) Validate() error {
	n := len(in.Precipitation)
	if n == 0 {
		return errors.New("model input is empty")
	}
	if len(in.PET) != n || len(in.Temperature) != n {
		return fmt.Errorf("model input length mismatch: P=%d PET=%d T=%d", n, len(in.PET), len(in.Temperature))
	}
	return nil
}

// Tile repeats the input n times back to back. The repeated series give the
// model a spin-up period to fill its storages.
func (in ModelInput) Tile(n int) (ModelInput, error) {
	if n < 1 {
		return ModelInput{}, fmt.Errorf("tile count must be >= 1, got %d", n)
	}
	return ModelInput{
		Precipitation: tile(in.Precipitation, n),
		PET:           tile(in.PET, n),
		Temperature:   tile(in.Temperature, n),
	}, nil
}

func tile(s []float64, n int) []float64 {
	out := make([]float64, 0, len(s)*n)
	for range n {
		out = append(out, s...)
	}
	return out
}

// Simulation is the output of one model run. States and Fluxes are indexed
// [step][variable]; the variable layout is model specific.
type Simulation struct {
	Model  string
	Flow   []float64
	States [][]float64
	Fluxes [][]float64
}

// Len returns the number of simulated steps.
func (s Simulation) Len() int { return len(s.Flow) }

// Tail keeps the last n steps of every series.
func (s Simulation) Tail(n int) Simulation {
	if n >= len(s.Flow) || n < 0 {
		return s
	}
	from := len(s.Flow) - n
	out := Simulation{Model: s.Model, Flow: s.Flow[from:]}
	if len(s.States) >= len(s.Flow) {
		out.States = s.States[len(s.States)-n:]
	}
	if len(s.Fluxes) >= len(s.Flow) {
		out.Fluxes = s.Fluxes[len(s.Fluxes)-n:]
	}
	return out
}

// ModelExecutor runs a rainfall-runoff model. params and initial are model
// specific; a nil initial state means empty storages.
type ModelExecutor interface {
	Name() string
	Simulate(ctx context.Context, in ModelInput, params, initial []float64) (Simulation, error)
}

// DailyResult is one day of simulated output aligned with its observations.
type DailyResult struct {
	Catchment     string
	Model         string
	Date          time.Time
	DisplayDate   string
	SimulatedQ    float64 // mm/day
	ActualET      float64 // mm/day, first flux column
	ObservedQ     float64 // mm/day, NaN when unobserved
	Precipitation float64 // mm/day
	ProcessedAt   time.Time
}

// DailyResults pairs the final table.Len() steps of sim with the table rows.
func DailyResults(catchment string, table CatchmentTable, sim Simulation) ([]DailyResult, error) {
	n := table.Len()
	if sim.Len() < n {
		return nil, fmt.Errorf("%s simulation has %d steps, need at least %d", sim.Model, sim.Len(), n)
	}
	sim = sim.Tail(n)

	now := clock.Now().UTC()
	out := make([]DailyResult, n)
	for i, rec := range table.Records {
		et := 0.0
		if i < len(sim.Fluxes) && len(sim.Fluxes[i]) > 0 {
			et = sim.Fluxes[i][0]
		}
		out[i] = DailyResult{
			Catchment:     catchment,
			Model:         sim.Model,
			Date:          rec.Date,
			DisplayDate:   rec.DisplayDate,
			SimulatedQ:    sim.Flow[i],
			ActualET:      et,
			ObservedQ:     rec.Streamflow,
			Precipitation: rec.Precipitation,
			ProcessedAt:   now,
		}
	}
	return out, nil
}

// CatchmentRun bundles everything produced for one catchment file.
type CatchmentRun struct {
	Catchment   string
	Table       CatchmentTable
	Simulations []Simulation
	Results     []DailyResult
}
