// Package store persists providers, patients, orders, care plans and their
// source attributions.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careplan-cli/internal/config"
	"github.com/sells-group/careplan-cli/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = eris.New("store: not found")

	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = eris.New("store: duplicate record")
)

// DefaultListLimit caps ListCarePlans when no limit is given.
const DefaultListLimit = 100

// Store defines the persistence interface for the care-plan service.
type Store interface {
	// Duplicate checks
	PatientExists(ctx context.Context, mrn string) (bool, error)
	ProviderExists(ctx context.Context, npi string) (bool, error)
	OrderExists(ctx context.Context, patientID, medication, diagnosis string) (bool, error)

	// Inserts. ID and CreatedAt are assigned by the store.
	CreateProvider(ctx context.Context, p *model.Provider) error
	CreatePatient(ctx context.Context, p *model.Patient) error
	CreateOrder(ctx context.Context, o *model.Order) error
	CreateCarePlan(ctx context.Context, cp *model.CarePlan) error

	// Care plans
	GetCarePlan(ctx context.Context, id string) (*model.CarePlanDetail, error)
	ListCarePlans(ctx context.Context, limit int) ([]model.CarePlanRecord, error)
	SaveAttribution(ctx context.Context, carePlanID string, doc *model.SourceAttribution) error

	// Audit
	LogAuditEvent(ctx context.Context, ev model.AuditEvent) error

	// Reporting
	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite", "":
		st, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func listLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

// reportDate formats a care plan's generation time for report listings.
const reportDate = "2006-01-02"
