package hydromodel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/catchment-etl/internal/domain"
)

// seasonalInput builds a deterministic year of forcing with a cold winter.
func seasonalInput(days int) domain.ModelInput {
	in := domain.ModelInput{
		Precipitation: make([]float64, days),
		PET:           make([]float64, days),
		Temperature:   make([]float64, days),
	}
	for i := range days {
		phase := 2 * math.Pi * float64(i) / 365
		if i%3 == 0 {
			in.Precipitation[i] = 4 + 3*math.Sin(phase)
		}
		in.PET[i] = 1.5 - 1.2*math.Cos(phase)
		in.Temperature[i] = 8 - 12*math.Cos(phase)
	}
	return in
}

func zeroInput(days int) domain.ModelInput {
	return domain.ModelInput{
		Precipitation: make([]float64, days),
		PET:           make([]float64, days),
		Temperature:   make([]float64, days),
	}
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func column(rows [][]float64, i int) []float64 {
	out := make([]float64, len(rows))
	for t, r := range rows {
		out[t] = r[i]
	}
	return out
}

func TestHyMod_ZeroForcingGivesZeroFlow(t *testing.T) {
	params, err := Params("camelsgb_33024", KeyHyMod)
	require.NoError(t, err)

	sim, err := HyMod{}.Simulate(context.Background(), zeroInput(30), params, nil)
	require.NoError(t, err)
	require.Len(t, sim.Flow, 30)
	for _, q := range sim.Flow {
		assert.Zero(t, q)
	}
}

func TestHyMod_MassBalance(t *testing.T) {
	for name, preset := range Presets {
		t.Run(name, func(t *testing.T) {
			in := seasonalInput(730)
			sim, err := HyMod{}.Simulate(context.Background(), in, preset.HyMod, nil)
			require.NoError(t, err)

			last := sim.States[len(sim.States)-1]
			storage := sum(last)
			balance := sum(in.Precipitation) - sum(column(sim.Fluxes, 0)) - sum(sim.Flow) - storage
			assert.InDelta(t, 0, balance, 1e-6)

			for _, q := range sim.Flow {
				assert.GreaterOrEqual(t, q, 0.0)
			}
		})
	}
}

func TestHyMod_SoilNeverExceedsCapacity(t *testing.T) {
	params := []float64{10, 0.5, 0.3, 0.1, 0.5}
	in := seasonalInput(365)
	for i := range in.Precipitation {
		in.Precipitation[i] = 50
	}

	sim, err := HyMod{}.Simulate(context.Background(), in, params, nil)
	require.NoError(t, err)
	for _, st := range sim.States {
		assert.LessOrEqual(t, st[0], 10.0+1e-9)
	}
}

func TestHBV_ZeroForcingGivesZeroFlow(t *testing.T) {
	params, err := Params("hysets_10BE007", KeyHBV)
	require.NoError(t, err)

	sim, err := HBV{Case: 1}.Simulate(context.Background(), zeroInput(30), params, nil)
	require.NoError(t, err)
	for _, q := range sim.Flow {
		assert.Zero(t, q)
	}
}

func TestHBV_MassBalance(t *testing.T) {
	// MAXBAS = 1 so routing returns the generated runoff unchanged.
	params := []float64{1.2, 0.3, 50, 5.9, 0.2, 0.15, 0.01, 12, 1, 0.5, 3, 0.05, 0.1}

	for _, c := range []int{1, 2} {
		in := seasonalInput(730)
		sim, err := HBV{Case: c}.Simulate(context.Background(), in, params, nil)
		require.NoError(t, err)

		// Snow still on the ground is the difference left over.
		last := sim.States[len(sim.States)-1]
		ea := sum(column(sim.Fluxes, 0))
		unaccounted := sum(in.Precipitation) - ea - sum(sim.Flow) - sum(last)
		assert.GreaterOrEqual(t, unaccounted, -1e-6, "case %d", c)

		generated := sum(column(sim.Fluxes, 3)) + sum(column(sim.Fluxes, 4))
		assert.InDelta(t, generated, sum(sim.Flow), 1e-6, "case %d", c)
	}
}

func TestHBV_WarmMassBalanceIsExact(t *testing.T) {
	params := []float64{2, 0.7, 120, 2, 0.1, 0.05, 0.02, 20, 1, -50, 3, 0.05, 0.1}
	in := seasonalInput(365)

	sim, err := HBV{Case: 1}.Simulate(context.Background(), in, params, nil)
	require.NoError(t, err)

	last := sim.States[len(sim.States)-1]
	balance := sum(in.Precipitation) - sum(column(sim.Fluxes, 0)) - sum(sim.Flow) - sum(last)
	assert.InDelta(t, 0, balance, 1e-6)
}

func TestHBV_SnowAccumulatesWhenCold(t *testing.T) {
	params, err := Params("camelsgb_33024", KeyHBV)
	require.NoError(t, err)

	in := zeroInput(20)
	for i := range in.Temperature {
		in.Temperature[i] = -10
		in.Precipitation[i] = 5
	}

	sim, err := HBV{Case: 1}.Simulate(context.Background(), in, params, nil)
	require.NoError(t, err)
	for _, q := range sim.Flow {
		assert.Zero(t, q)
	}
	assert.Zero(t, sim.States[19][0])
}

func TestHBV_InitialState(t *testing.T) {
	params := []float64{1, 1, 100, 1, 0.1, 0.1, 0.1, 10, 1, 0, 3, 0.05, 0.1}

	sim, err := HBV{Case: 1}.Simulate(context.Background(), zeroInput(5), params, []float64{20, 5, 30})
	require.NoError(t, err)
	assert.Greater(t, sim.Flow[0], 0.0)
}

func TestMaxbasWeights(t *testing.T) {
	tests := []struct {
		maxbas float64
		n      int
	}{
		{1, 1},
		{1.3, 2},
		{2, 2},
		{4.5, 5},
		{7, 7},
	}

	for _, tt := range tests {
		w := maxbasWeights(tt.maxbas)
		require.Len(t, w, tt.n)
		assert.InDelta(t, 1, sum(w), 1e-12, "maxbas %g", tt.maxbas)
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}

	assert.Equal(t, []float64{0.5, 0.5}, maxbasWeights(2))
}

func TestRoute(t *testing.T) {
	got := route([]float64{2, 0, 0, 4}, []float64{0.5, 0.5})
	assert.Equal(t, []float64{1, 1, 0, 2}, got)
}

func TestParameterValidation(t *testing.T) {
	hbv, err := Params("camelsgb_33024", KeyHBV)
	require.NoError(t, err)
	badMaxbas := append([]float64(nil), hbv...)
	badMaxbas[8] = 0.5
	negativeFC := append([]float64(nil), hbv...)
	negativeFC[2] = -1

	tests := []struct {
		name    string
		exec    domain.ModelExecutor
		params  []float64
		initial []float64
	}{
		{"hymod short vector", HyMod{}, []float64{1, 2}, nil},
		{"hymod alfa above one", HyMod{}, []float64{100, 0.5, 1.5, 0.1, 0.5}, nil},
		{"hymod NaN", HyMod{}, []float64{math.NaN(), 0.5, 0.5, 0.1, 0.5}, nil},
		{"hymod bad initial", HyMod{}, []float64{100, 0.5, 0.5, 0.1, 0.5}, []float64{1}},
		{"hbv maxbas below one", HBV{Case: 1}, badMaxbas, nil},
		{"hbv negative FC", HBV{Case: 1}, negativeFC, nil},
		{"hbv without snow", HBV{Case: 1}, hbv[:9], nil},
		{"hbv unknown case", HBV{Case: 3}, hbv, nil},
		{"hbv negative initial", HBV{Case: 1}, hbv, []float64{-1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.exec.Simulate(context.Background(), seasonalInput(10), tt.params, tt.initial)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidParameters)

			var pe *ParameterError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestSimulate_RejectsMisalignedInput(t *testing.T) {
	in := seasonalInput(10)
	in.PET = in.PET[:5]

	_, err := HyMod{}.Simulate(context.Background(), in, Presets[DefaultCatchment].HyMod, nil)
	require.Error(t, err)
}

func TestSimulate_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := HyMod{}.Simulate(ctx, seasonalInput(10), Presets[DefaultCatchment].HyMod, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, Presets["hysets_10BE007"], PresetFor("hysets_10BE007"))
	assert.Equal(t, Presets[DefaultCatchment], PresetFor("unknown_catchment"))

	hbv, err := Params("camels_11124500", "HBV")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 500, 4, 0.3, 0.2, 0.01, 38, 1, 0.8, 4.5, 0.04, 0.2}, hbv)

	_, err = Params("camels_11124500", "gr4j")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestExecutors(t *testing.T) {
	execs, err := Executors([]string{"HBV", " hymod"})
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "HBV", execs[0].Name())
	assert.Equal(t, "HyMod", execs[1].Name())

	_, err = Executors([]string{"hbv", "sacramento"})
	assert.ErrorIs(t, err, ErrUnknownModel)

	assert.Equal(t, []string{"hbv", "hbv2", "hymod"}, Keys())
}

func TestLookup_HBVPercolationFirst(t *testing.T) {
	exec, err := Lookup("HBV2")
	require.NoError(t, err)
	assert.Equal(t, HBV{Case: 2}, exec)
	assert.Equal(t, "HBV2", exec.Name())

	drainFirst, err := Lookup(KeyHBV)
	require.NoError(t, err)

	params, err := Params("hysets_10BE007", exec.Name())
	require.NoError(t, err)
	forcing, err := seasonalInput(365).Tile(2)
	require.NoError(t, err)

	got, err := exec.Simulate(context.Background(), forcing, params, nil)
	require.NoError(t, err)
	want, err := drainFirst.Simulate(context.Background(), forcing, params, nil)
	require.NoError(t, err)

	assert.Equal(t, "HBV2", got.Model)
	assert.NotEqual(t, want.Flow, got.Flow)
}

func TestPresetsRunWithSpinUp(t *testing.T) {
	year := seasonalInput(365)
	forcing, err := year.Tile(10)
	require.NoError(t, err)

	for name := range Presets {
		for _, key := range Keys() {
			exec, err := Lookup(key)
			require.NoError(t, err)
			params, err := Params(name, key)
			require.NoError(t, err)

			sim, err := exec.Simulate(context.Background(), forcing, params, nil)
			require.NoError(t, err, "%s/%s", name, key)
			tail := sim.Tail(365)
			require.Len(t, tail.Flow, 365)
			for _, q := range tail.Flow {
				assert.False(t, math.IsNaN(q))
				assert.GreaterOrEqual(t, q, 0.0)
			}
		}
	}
}
