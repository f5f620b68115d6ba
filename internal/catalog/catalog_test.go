package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/catchment-etl/internal/adapter/filesystem"
	"github.com/couchcryptid/catchment-etl/internal/domain"
	"github.com/couchcryptid/catchment-etl/internal/observability"
)

const header = "date,total_precipitation_sum,potential_evaporation_sum,streamflow,temperature_2m_mean\n"

// countingNormalizer counts the reads that reach the wrapped normalizer.
type countingNormalizer struct {
	*domain.Normalizer
	calls int
}

func (c *countingNormalizer) Normalize(relPath string) (domain.CatchmentTable, error) {
	c.calls++
	return c.Normalizer.Normalize(relPath)
}

func newTestCatalog(t *testing.T, dir string, size int) (*Catalog, *countingNormalizer, *observability.Metrics) {
	t.Helper()
	n, err := domain.NewNormalizer(dir)
	require.NoError(t, err)
	src, err := filesystem.NewSource(dir, "*.csv")
	require.NoError(t, err)

	counting := &countingNormalizer{Normalizer: n}
	metrics := observability.NewMetricsForTesting()
	c, err := New(counting, src, size, metrics)
	require.NoError(t, err)
	return c, counting, metrics
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(header+body), 0o600))
}

func TestCatalog_CachesTables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "camelsgb_33024.csv", "2002-10-01,0.5,0.1,1.2,15.3\n")
	c, counting, metrics := newTestCatalog(t, dir, 4)

	first, err := c.Normalize("camelsgb_33024.csv")
	require.NoError(t, err)
	second, err := c.Normalize("camelsgb_33024.csv")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.calls, "second lookup is served from the cache")
	assert.Equal(t, 1, c.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CatalogLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CatalogLookups.WithLabelValues("miss")), 0)
}

func TestCatalog_ReloadsModifiedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "2002-10-01,0.5,0.1,1.2,15.3\n")
	c, counting, _ := newTestCatalog(t, dir, 4)

	table, err := c.Normalize("a.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	writeFile(t, dir, "a.csv", "2002-10-01,0.5,0.1,1.2,15.3\n2002-10-02,0.7,0.1,1.1,14.0\n")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.csv"), later, later))

	table, err = c.Normalize("a.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 2, counting.calls)
}

func TestCatalog_DoesNotCacheFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("date,streamflow\n"), 0o600))
	c, counting, _ := newTestCatalog(t, dir, 4)

	_, err := c.Normalize("bad.csv")
	require.ErrorIs(t, err, domain.ErrSchema)
	_, err = c.Normalize("bad.csv")
	require.ErrorIs(t, err, domain.ErrSchema)

	assert.Equal(t, 2, counting.calls)
	assert.Zero(t, c.Len())
}

func TestCatalog_MissingFile(t *testing.T) {
	c, _, _ := newTestCatalog(t, t.TempDir(), 4)

	_, err := c.Normalize("absent.csv")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_Evicts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		writeFile(t, dir, name, "2002-10-01,0.5,0.1,1.2,15.3\n")
	}
	c, _, _ := newTestCatalog(t, dir, 2)

	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		_, err := c.Normalize(name)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
}

func TestCatalog_ListAndResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hysets_10BE007.csv", "")
	writeFile(t, dir, "camelsgb_33024.csv", "")
	c, _, _ := newTestCatalog(t, dir, 4)

	paths, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"camelsgb_33024.csv", "hysets_10BE007.csv"}, paths)

	path, err := c.Resolve(context.Background(), "hysets_10BE007")
	require.NoError(t, err)
	assert.Equal(t, "hysets_10BE007.csv", path)

	_, err = c.Resolve(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNew_InvalidSize(t *testing.T) {
	n, err := domain.NewNormalizer(t.TempDir())
	require.NoError(t, err)

	_, err = New(n, nil, 0, observability.NewMetricsForTesting())
	require.Error(t, err)
}
