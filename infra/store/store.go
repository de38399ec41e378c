// Package store loads engine inputs and persists assignment results. Two
// backends are provided: PostgreSQL for deployments and CSV files for local
// runs, with the CSV loader doubling as the fallback when the database is
// unreachable.
package store

import (
	"context"

	"github.com/fieldops/dispatchd/core/model"
)

// Loader provides the four input tables of a batch run.
type Loader interface {
	Dispatches(ctx context.Context) ([]model.Dispatch, error)
	Technicians(ctx context.Context) ([]model.Technician, error)
	Availability(ctx context.Context) (*model.AvailabilitySet, error)
	History(ctx context.Context) ([]model.HistoryRecord, error)
}

// Writer persists the assignments of one run.
type Writer interface {
	WriteAssignments(ctx context.Context, runID string, assignments []model.Assignment) error
}
