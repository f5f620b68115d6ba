// Package catalog serves normalized catchment tables through an LRU cache.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/catchment-etl/internal/domain"
	"github.com/couchcryptid/catchment-etl/internal/observability"
)

// Normalizer reads one catchment file relative to BaseDir.
type Normalizer interface {
	Normalize(relPath string) (domain.CatchmentTable, error)
	BaseDir() string
}

// Lister enumerates the catchment files available to the catalog.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

type entry struct {
	modTime time.Time
	size    int64
	table   domain.CatchmentTable
}

// Catalog is a read-through cache in front of a Normalizer. An entry is
// reused only while the file's modification time and size are unchanged.
// Returned tables share their records with the cache and must not be modified.
type Catalog struct {
	normalizer Normalizer
	lister     Lister
	cache      *lru.Cache[string, entry]
	metrics    *observability.Metrics
}

// New creates a Catalog holding at most size tables.
func New(n Normalizer, l Lister, size int, metrics *observability.Metrics) (*Catalog, error) {
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	return &Catalog{normalizer: n, lister: l, cache: cache, metrics: metrics}, nil
}

// Normalize returns the cached table for relPath or normalizes the file.
// Failures are not cached.
func (c *Catalog) Normalize(relPath string) (domain.CatchmentTable, error) {
	info, err := os.Stat(filepath.Join(c.normalizer.BaseDir(), relPath))
	if err != nil {
		// Let the normalizer produce the typed error.
		return c.normalizer.Normalize(relPath)
	}

	if e, ok := c.cache.Get(relPath); ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		c.metrics.CatalogLookups.WithLabelValues("hit").Inc()
		return e.table, nil
	}
	c.metrics.CatalogLookups.WithLabelValues("miss").Inc()

	table, err := c.normalizer.Normalize(relPath)
	if err != nil {
		c.cache.Remove(relPath)
		return domain.CatchmentTable{}, err
	}
	c.cache.Add(relPath, entry{modTime: info.ModTime(), size: info.Size(), table: table})
	return table, nil
}

// List returns the catchment files known to the lister.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	return c.lister.List(ctx)
}

// Resolve maps a catchment name such as "camelsgb_33024" to its file.
func (c *Catalog) Resolve(ctx context.Context, name string) (string, error) {
	paths, err := c.lister.List(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if domain.CatchmentName(p) == name {
			return p, nil
		}
	}
	return "", &domain.NotFoundError{
		Path: filepath.Join(c.normalizer.BaseDir(), name),
		Err:  os.ErrNotExist,
	}
}

// Len returns the number of cached tables.
func (c *Catalog) Len() int {
	return c.cache.Len()
}
