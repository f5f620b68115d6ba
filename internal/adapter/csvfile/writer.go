// Package csvfile writes catchment runs as CSV files, one per model.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/catchment-etl/internal/domain"
)

// ResultHeader is the column layout of <catchment>_<model>.csv.
var ResultHeader = []string{"Date", "date", "Q [mm/day]", "ET [mm/day]", "Q_obs [mm/day]", "P [mm/day]", "Model"}

// Writer writes result and normalized tables below Dir.
type Writer struct {
	Dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{Dir: dir}, nil
}

// Load writes <catchment>_normalized.csv and one <catchment>_<model>.csv per simulated model.
func (w *Writer) Load(ctx context.Context, run domain.CatchmentRun) error {
	path := filepath.Join(w.Dir, run.Catchment+"_normalized.csv")
	if err := writeFile(path, func(cw *csv.Writer) error { return WriteTable(cw, run.Table) }); err != nil {
		return err
	}

	byModel := make(map[string][]domain.DailyResult)
	for _, r := range run.Results {
		byModel[r.Model] = append(byModel[r.Model], r)
	}
	for _, sim := range run.Simulations {
		if err := ctx.Err(); err != nil {
			return err
		}
		results := byModel[sim.Model]
		path := filepath.Join(w.Dir, fmt.Sprintf("%s_%s.csv", run.Catchment, sim.Model))
		if err := writeFile(path, func(cw *csv.Writer) error { return WriteResults(cw, results) }); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable writes a normalized table with an ISO date column first.
func WriteTable(cw *csv.Writer, t domain.CatchmentTable) error {
	header := append([]string{"date"}, t.Columns()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range t.Records {
		row := []string{
			r.Date.Format(domain.DateLayout),
			formatFloat(r.Precipitation),
			formatFloat(r.PET),
			formatFloat(r.Streamflow),
			formatFloat(r.Temperature),
			r.DisplayDate,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResults writes daily results using ResultHeader.
func WriteResults(cw *csv.Writer, results []domain.DailyResult) error {
	if err := cw.Write(ResultHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.DisplayDate,
			r.Date.Format(domain.DateLayout),
			formatFloat(r.SimulatedQ),
			formatFloat(r.ActualET),
			formatFloat(r.ObservedQ),
			formatFloat(r.Precipitation),
			r.Model,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, write func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(csv.NewWriter(f)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// formatFloat renders NaN as an empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
