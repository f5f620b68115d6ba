package pipeline

import (
	"context"

	"github.com/couchcryptid/catchment-etl/internal/domain"
)

// MultiLoader loads each run into every sink in order, stopping at the first error.
type MultiLoader []Loader

func (m MultiLoader) Load(ctx context.Context, run domain.CatchmentRun) error {
	for _, l := range m {
		if err := l.Load(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// NopLoader discards every run.
type NopLoader struct{}

func (NopLoader) Load(context.Context, domain.CatchmentRun) error { return nil }
