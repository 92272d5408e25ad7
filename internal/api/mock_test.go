package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/careplan-cli/internal/model"
	"github.com/sells-group/careplan-cli/internal/monitoring"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, form *model.CarePlanForm) (*model.GeneratedCarePlan, error) {
	args := m.Called(ctx, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GeneratedCarePlan), args.Error(1)
}

func (m *mockService) Get(ctx context.Context, id string) (*model.CarePlanDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CarePlanDetail), args.Error(1)
}

func (m *mockService) List(ctx context.Context, limit int) ([]model.CarePlanRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CarePlanRecord), args.Error(1)
}

func (m *mockService) Attribute(ctx context.Context, carePlanID string) (*model.SourceAttribution, error) {
	args := m.Called(ctx, carePlanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceAttribution), args.Error(1)
}

func (m *mockService) AttributeText(ctx context.Context, carePlanText, patientRecordText string) (*model.SourceAttribution, error) {
	args := m.Called(ctx, carePlanText, patientRecordText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceAttribution), args.Error(1)
}

type fakeStatus struct {
	snap *monitoring.Snapshot
	err  error
}

func (f *fakeStatus) Collect(context.Context) (*monitoring.Snapshot, error) {
	return f.snap, f.err
}
