package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultDateColumn is the name of the date key in Caravan files.
const DefaultDateColumn = "date"

// Normalizer turns raw catchment CSV files into windowed CatchmentTables.
// It holds only configuration and is safe for concurrent use.
type Normalizer struct {
	baseDir    string
	dateColumn string
	mappings   []ColumnMapping
	window     Window
}

// NormalizerOption customizes a Normalizer.
type NormalizerOption func(*Normalizer)

// WithDateColumn overrides the source date column name.
func WithDateColumn(name string) NormalizerOption {
	return func(n *Normalizer) { n.dateColumn = name }
}

// WithColumnMappings overrides the source → semantic column mapping.
func WithColumnMappings(m []ColumnMapping) NormalizerOption {
	return func(n *Normalizer) { n.mappings = append([]ColumnMapping(nil), m...) }
}

// WithWindow overrides the analysis window.
func WithWindow(w Window) NormalizerOption {
	return func(n *Normalizer) { n.window = w }
}

// NewNormalizer creates a Normalizer resolving relative paths against baseDir.
func NewNormalizer(baseDir string, opts ...NormalizerOption) (*Normalizer, error) {
	n := &Normalizer{
		baseDir:    baseDir,
		dateColumn: DefaultDateColumn,
		mappings:   DefaultColumnMappings(),
		window:     DefaultWindow(),
	}
	for _, opt := range opts {
		opt(n)
	}

	if strings.TrimSpace(n.dateColumn) == "" {
		return nil, errors.New("normalizer: date column is required")
	}
	if err := ValidateColumnMappings(n.mappings); err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}
	if err := n.window.Validate(); err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}
	return n, nil
}

// BaseDir returns the directory relative paths are resolved against.
func (n *Normalizer) BaseDir() string { return n.baseDir }

// Window returns the configured analysis window.
func (n *Normalizer) Window() Window { return n.window }

// Normalize reads baseDir/relativePath and returns the normalized table.
// The file is opened read-only and never modified.
func (n *Normalizer) Normalize(relativePath string) (CatchmentTable, error) {
	path := filepath.Join(n.baseDir, relativePath)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CatchmentTable{}, &NotFoundError{Path: path, Err: err}
		}
		return CatchmentTable{}, fmt.Errorf("open catchment file: %w", err)
	}
	defer f.Close()

	return n.NormalizeReader(path, f)
}

// NormalizeReader normalizes CSV content from r. source names the input in errors.
func (n *Normalizer) NormalizeReader(source string, r io.Reader) (CatchmentTable, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return CatchmentTable{}, &SchemaError{Path: source, Missing: n.requiredColumns()}
	}
	if err != nil {
		return CatchmentTable{}, &ParseError{Path: source, Line: 1, Err: err}
	}

	idx := headerIndex(header)
	var missing []string
	for _, col := range n.requiredColumns() {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return CatchmentTable{}, &SchemaError{Path: source, Missing: missing}
	}

	dateIdx := idx[n.dateColumn]
	var rows []CatchmentRecord
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CatchmentTable{}, &ParseError{Path: source, Line: csvErrorLine(err), Err: err}
		}
		line, _ := cr.FieldPos(0)

		row, err := n.parseRow(source, line, rec, idx, dateIdx)
		if err != nil {
			return CatchmentTable{}, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})

	records := make([]CatchmentRecord, 0, len(rows))
	for _, rec := range rows {
		if !n.window.Contains(rec.Date) {
			continue
		}
		rec.DisplayDate = rec.Date.Format(DisplayDateLayout)
		records = append(records, rec)
	}

	return CatchmentTable{Source: source, Records: records}, nil
}

func (n *Normalizer) parseRow(source string, line int, rec []string, idx map[string]int, dateIdx int) (CatchmentRecord, error) {
	rawDate := strings.TrimSpace(rec[dateIdx])
	day, err := time.Parse(DateLayout, rawDate)
	if err != nil {
		return CatchmentRecord{}, &ParseError{Path: source, Line: line, Column: n.dateColumn, Value: rawDate, Err: err}
	}

	out := CatchmentRecord{Date: day}
	for _, m := range n.mappings {
		raw := rec[idx[m.Source]]
		v, err := parseNumber(raw)
		if err != nil {
			return CatchmentRecord{}, &ParseError{Path: source, Line: line, Column: m.Source, Value: raw, Err: err}
		}
		switch m.Target {
		case ColPrecipitation:
			out.Precipitation = v
		case ColPET:
			out.PET = v
		case ColStreamflow:
			out.Streamflow = v
		case ColTemperature:
			out.Temperature = v
		}
	}
	return out, nil
}

func (n *Normalizer) requiredColumns() []string {
	cols := make([]string, 0, len(n.mappings)+1)
	cols = append(cols, n.dateColumn)
	for _, m := range n.mappings {
		cols = append(cols, m.Source)
	}
	return cols
}

// headerIndex maps trimmed header names to their position. A UTF-8 byte order
// mark on the first column is dropped; on duplicate names the first wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// parseNumber parses a numeric cell. Empty and "NaN" cells are missing values.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func csvErrorLine(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
