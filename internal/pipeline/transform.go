package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/catchment-etl/internal/domain"
)

// Normalizer produces a normalized table for a file relative to the data directory.
// Both *domain.Normalizer and the catalog cache satisfy it.
type Normalizer interface {
	Normalize(relPath string) (domain.CatchmentTable, error)
}

// ParamsFunc returns the parameter vector for model on catchment.
type ParamsFunc func(catchment, model string) ([]float64, error)

// CatchmentTransformer implements Transformer: normalize, spin up and run
// every executor, then pair the simulated year with the observations.
type CatchmentTransformer struct {
	normalizer Normalizer
	executors  []domain.ModelExecutor
	params     ParamsFunc
	spinUp     int
	logger     *slog.Logger
}

// NewTransformer creates a CatchmentTransformer. spinUp is the number of
// times the window is repeated before the final simulated year.
func NewTransformer(n Normalizer, executors []domain.ModelExecutor, params ParamsFunc, spinUp int, logger *slog.Logger) *CatchmentTransformer {
	return &CatchmentTransformer{
		normalizer: n,
		executors:  executors,
		params:     params,
		spinUp:     spinUp,
		logger:     logger,
	}
}

func (t *CatchmentTransformer) Transform(ctx context.Context, relPath string) (domain.CatchmentRun, error) {
	table, err := t.normalizer.Normalize(relPath)
	if err != nil {
		return domain.CatchmentRun{}, err
	}

	run := domain.CatchmentRun{Catchment: domain.CatchmentName(relPath), Table: table}
	if table.Len() == 0 {
		t.logger.Warn("no records inside window, skipping models", "catchment", run.Catchment)
		return run, nil
	}

	for _, exec := range t.executors {
		params, err := t.params(run.Catchment, exec.Name())
		if err != nil {
			return domain.CatchmentRun{}, &domain.ModelError{Model: exec.Name(), Catchment: run.Catchment, Err: err}
		}
		sim, results, err := Simulate(ctx, exec, params, run.Catchment, table, t.spinUp)
		if err != nil {
			return domain.CatchmentRun{}, err
		}
		run.Simulations = append(run.Simulations, sim)
		run.Results = append(run.Results, results...)
	}
	return run, nil
}

// Simulate runs exec over table repeated spinUp times and returns the final
// table.Len() steps together with the daily results built from them.
// Failures are returned as *domain.ModelError.
func Simulate(ctx context.Context, exec domain.ModelExecutor, params []float64, catchment string, table domain.CatchmentTable, spinUp int) (domain.Simulation, []domain.DailyResult, error) {
	fail := func(err error) (domain.Simulation, []domain.DailyResult, error) {
		return domain.Simulation{}, nil, &domain.ModelError{Model: exec.Name(), Catchment: catchment, Err: err}
	}

	forcing, err := domain.InputFromTable(table).Tile(spinUp)
	if err != nil {
		return fail(fmt.Errorf("spin-up: %w", err))
	}

	sim, err := exec.Simulate(ctx, forcing, params, nil)
	if err != nil {
		return fail(err)
	}
	sim = sim.Tail(table.Len())

	results, err := domain.DailyResults(catchment, table, sim)
	if err != nil {
		return fail(err)
	}
	return sim, results, nil
}
