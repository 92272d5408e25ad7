package careplan

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/careplan-cli/internal/model"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) PatientExists(ctx context.Context, mrn string) (bool, error) {
	args := m.Called(ctx, mrn)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ProviderExists(ctx context.Context, npi string) (bool, error) {
	args := m.Called(ctx, npi)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) OrderExists(ctx context.Context, patientID, medication, diagnosis string) (bool, error) {
	args := m.Called(ctx, patientID, medication, diagnosis)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CreateProvider(ctx context.Context, p *model.Provider) error {
	args := m.Called(ctx, p)
	p.ID = "pr-1"
	return args.Error(0)
}

func (m *mockStore) CreatePatient(ctx context.Context, p *model.Patient) error {
	args := m.Called(ctx, p)
	p.ID = "p-1"
	return args.Error(0)
}

func (m *mockStore) CreateOrder(ctx context.Context, o *model.Order) error {
	args := m.Called(ctx, o)
	o.ID = "o-1"
	return args.Error(0)
}

func (m *mockStore) CreateCarePlan(ctx context.Context, cp *model.CarePlan) error {
	args := m.Called(ctx, cp)
	cp.ID = "cp-1"
	cp.Version = 1
	return args.Error(0)
}

func (m *mockStore) GetCarePlan(ctx context.Context, id string) (*model.CarePlanDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CarePlanDetail), args.Error(1)
}

func (m *mockStore) ListCarePlans(ctx context.Context, limit int) ([]model.CarePlanRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CarePlanRecord), args.Error(1)
}

func (m *mockStore) SaveAttribution(ctx context.Context, carePlanID string, doc *model.SourceAttribution) error {
	args := m.Called(ctx, carePlanID, doc)
	return args.Error(0)
}

func (m *mockStore) LogAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockStore) Stats(ctx context.Context) (*model.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Stats), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Attributor Mock ---

type mockAttributor struct {
	mock.Mock
}

func (m *mockAttributor) Generate(ctx context.Context, carePlanText, patientRecordText string) (*model.SourceAttribution, error) {
	args := m.Called(ctx, carePlanText, patientRecordText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceAttribution), args.Error(1)
}
