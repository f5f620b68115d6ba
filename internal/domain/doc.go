// Package domain models daily catchment time series and the rainfall-runoff
// simulations run over them.
//
// # Data Source
//
// Catchment files come from the Caravan family of datasets (CAMELS-GB,
// CAMELS-US, HYSETS). Each file is a comma-separated table with a header row
// and one row per day, keyed by a "date" column in YYYY-MM-DD form. Files carry
// dozens of ERA5-Land derived columns; only four are used here:
//
//	total_precipitation_sum    →  P [mm/day]
//	potential_evaporation_sum  →  PET [mm/day]
//	streamflow                 →  Q [mm/day]
//	temperature_2m_mean        →  T [C]
//
// The mapping is configuration (see [ColumnMapping]). Renamed or missing source
// columns surface as a [SchemaError].
//
// # Analysis Window
//
// Normalization restricts a file to one hydrological year, by default
// 2002-10-01 through 2003-09-30 inclusive. Rows are sorted by date before
// windowing so unsorted sources still produce ascending output.
//
// Missing values:
//
//	Empty cells and "NaN" are read as math.NaN(), matching the upstream
//	datasets' convention for gaps in observed streamflow. Any other text in a
//	numeric column is a [ParseError].
//
// Display dates:
//
//	Each row carries a short label for charts, layout "Jan-02-06",
//	e.g. 2002-10-01 → "Oct-01-02".
//
// # Spin-up
//
// Conceptual models start with empty storages. The single analysis year is
// repeated ([ModelInput.Tile]) so stores reach a dynamic steady state, then only
// the final year of output is kept ([Simulation.Tail]).
package domain
