package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Semantic column names of a normalized catchment table.
const (
	ColPrecipitation = "P [mm/day]"
	ColPET           = "PET [mm/day]"
	ColStreamflow    = "Q [mm/day]"
	ColTemperature   = "T [C]"
	ColDate          = "Date"
)

const (
	// DateLayout is the layout of the source date column.
	DateLayout = "2006-01-02"
	// DisplayDateLayout renders the chart label, e.g. "Oct-01-02".
	DisplayDateLayout = "Jan-02-06"
)

// semanticColumns lists the four numeric columns in output order.
var semanticColumns = []string{ColPrecipitation, ColPET, ColStreamflow, ColTemperature}

// ColumnMapping maps one source CSV column onto a semantic column.
type ColumnMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DefaultColumnMappings returns the Caravan column names used by the course datasets.
func DefaultColumnMappings() []ColumnMapping {
	return []ColumnMapping{
		{Source: "total_precipitation_sum", Target: ColPrecipitation},
		{Source: "potential_evaporation_sum", Target: ColPET},
		{Source: "streamflow", Target: ColStreamflow},
		{Source: "temperature_2m_mean", Target: ColTemperature},
	}
}

// ValidateColumnMappings checks that mappings cover each semantic column exactly once.
func ValidateColumnMappings(mappings []ColumnMapping) error {
	if len(mappings) != len(semanticColumns) {
		return fmt.Errorf("column mappings: expected %d entries, got %d", len(semanticColumns), len(mappings))
	}
	sources := make(map[string]bool, len(mappings))
	targets := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if strings.TrimSpace(m.Source) == "" {
			return fmt.Errorf("column mappings: empty source for target %q", m.Target)
		}
		if !isSemanticColumn(m.Target) {
			return fmt.Errorf("column mappings: unknown target %q", m.Target)
		}
		if sources[m.Source] {
			return fmt.Errorf("column mappings: duplicate source %q", m.Source)
		}
		if targets[m.Target] {
			return fmt.Errorf("column mappings: duplicate target %q", m.Target)
		}
		sources[m.Source] = true
		targets[m.Target] = true
	}
	return nil
}

// ParseColumnMappings parses "source=target" pairs separated by commas.
// A blank value yields DefaultColumnMappings.
func ParseColumnMappings(s string) ([]ColumnMapping, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultColumnMappings(), nil
	}

	var out []ColumnMapping
	for _, pair := range strings.Split(s, ",") {
		src, target, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("column mappings: entry %q: want source=target", pair)
		}
		out = append(out, ColumnMapping{Source: strings.TrimSpace(src), Target: strings.TrimSpace(target)})
	}
	if err := ValidateColumnMappings(out); err != nil {
		return nil, err
	}
	return out, nil
}

func isSemanticColumn(name string) bool {
	for _, c := range semanticColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Window is a closed range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow is the 2002-10-01 to 2003-09-30 hydrological year.
func DefaultWindow() Window {
	return Window{
		Start: time.Date(2002, time.October, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2003, time.September, 30, 0, 0, 0, 0, time.UTC),
	}
}

// ParseWindow builds a Window from two YYYY-MM-DD strings.
func ParseWindow(start, end string) (Window, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return Window{}, fmt.Errorf("window start %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return Window{}, fmt.Errorf("window end %q: %w", end, err)
	}
	w := Window{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate rejects a window whose end precedes its start.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s is before start %s", w.End.Format(DateLayout), w.Start.Format(DateLayout))
	}
	return nil
}

// Contains reports whether day falls within the window, both ends inclusive.
func (w Window) Contains(day time.Time) bool {
	return !day.Before(w.Start) && !day.After(w.End)
}

// CatchmentRecord is one day of normalized catchment data.
type CatchmentRecord struct {
	Date          time.Time // calendar day at midnight UTC
	Precipitation float64   // mm/day
	PET           float64   // mm/day
	Streamflow    float64   // mm/day, NaN when unobserved
	Temperature   float64   // °C
	DisplayDate   string
}

// CatchmentTable is the normalized, windowed time series of a single catchment file.
type CatchmentTable struct {
	Source  string
	Records []CatchmentRecord
}

// Columns returns the output column order.
func (t CatchmentTable) Columns() []string {
	cols := make([]string, 0, len(semanticColumns)+1)
	cols = append(cols, semanticColumns...)
	return append(cols, ColDate)
}

// Len returns the number of days in the table.
func (t CatchmentTable) Len() int { return len(t.Records) }

// Dates returns the date index.
func (t CatchmentTable) Dates() []time.Time {
	out := make([]time.Time, len(t.Records))
	for i := range t.Records {
		out[i] = t.Records[i].Date
	}
	return out
}

// Series returns one numeric column by its semantic name.
func (t CatchmentTable) Series(column string) ([]float64, error) {
	var pick func(CatchmentRecord) float64
	switch column {
	case ColPrecipitation:
		pick = func(r CatchmentRecord) float64 { return r.Precipitation }
	case ColPET:
		pick = func(r CatchmentRecord) float64 { return r.PET }
	case ColStreamflow:
		pick = func(r CatchmentRecord) float64 { return r.Streamflow }
	case ColTemperature:
		pick = func(r CatchmentRecord) float64 { return r.Temperature }
	default:
		return nil, fmt.Errorf("unknown column %q", column)
	}
	out := make([]float64, len(t.Records))
	for i := range t.Records {
		out[i] = pick(t.Records[i])
	}
	return out, nil
}

// CatchmentName derives a catchment identifier from a file path,
// e.g. "gb/camelsgb_33024.csv" → "camelsgb_33024".
func CatchmentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
