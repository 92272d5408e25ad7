// Package careplan creates care plans from intake forms and attaches source
// attribution to them.
package careplan

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careplan-cli/internal/model"
	"github.com/sells-group/careplan-cli/internal/store"
)

var (
	// ErrDuplicate matches every *DuplicateError.
	ErrDuplicate = eris.New("careplan: duplicate record")

	// ErrNotFound is returned when the requested care plan does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrEmptyCarePlan is returned when ad-hoc attribution is requested
	// without care plan text.
	ErrEmptyCarePlan = eris.New("careplan: care plan text is required")
)

// DuplicateError reports which record already exists.
type DuplicateError struct {
	Message string
}

func (e *DuplicateError) Error() string { return e.Message }

// Is makes every DuplicateError match ErrDuplicate.
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// Audit event types.
const (
	EventCreateProvider      = "create_provider"
	EventCreatePatient       = "create_patient"
	EventCreateOrder         = "create_order"
	EventGenerateCarePlan    = "generate_care_plan"
	EventGenerateAttribution = "generate_attribution"
)

// Attributor generates source attribution for a care plan.
type Attributor interface {
	Generate(ctx context.Context, carePlanText, patientRecordText string) (*model.SourceAttribution, error)
}

// Service coordinates intake, drafting, persistence and attribution.
type Service struct {
	store      store.Store
	drafter    Drafter
	attributor Attributor
	now        func() time.Time
}

// NewService creates a Service.
func NewService(st store.Store, drafter Drafter, attributor Attributor) *Service {
	return &Service{
		store:      st,
		drafter:    drafter,
		attributor: attributor,
		now:        time.Now,
	}
}

// Create validates form, stores its provider, patient and order, drafts the
// care plan and stores it.
func (s *Service) Create(ctx context.Context, form *model.CarePlanForm) (*model.GeneratedCarePlan, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	f := *form
	f.Diagnosis.AdditionalDiagnoses = compact(form.Diagnosis.AdditionalDiagnoses)
	f.Diagnosis.MedicationHistory = compact(form.Diagnosis.MedicationHistory)
	p, prov, dx := f.Patient, f.Provider, f.Diagnosis

	exists, err := s.store.PatientExists(ctx, p.MRN)
	if err != nil {
		return nil, eris.Wrap(err, "careplan: check patient")
	}
	if exists {
		return nil, &DuplicateError{Message: "Patient with this MRN already exists"}
	}

	exists, err = s.store.ProviderExists(ctx, prov.ProviderNPI)
	if err != nil {
		return nil, eris.Wrap(err, "careplan: check provider")
	}
	if exists {
		return nil, &DuplicateError{Message: "Provider with this NPI already exists"}
	}

	provider := &model.Provider{Name: prov.ProviderName, NPI: prov.ProviderNPI}
	if err := s.store.CreateProvider(ctx, provider); err != nil {
		return nil, conflictOr(err, "Provider with this NPI already exists", "careplan: create provider")
	}
	s.audit(ctx, EventCreateProvider, provider.ID, "provider", "New provider created")

	patient := &model.Patient{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		MRN:         p.MRN,
		ProviderID:  provider.ID,
		DateOfBirth: p.DateOfBirth,
		Sex:         p.Sex,
		WeightKg:    p.WeightKg,
		Allergies:   p.Allergies,
	}
	if err := s.store.CreatePatient(ctx, patient); err != nil {
		return nil, conflictOr(err, "Patient with this MRN already exists", "careplan: create patient")
	}
	s.audit(ctx, EventCreatePatient, patient.ID, "patient", "New patient created")

	exists, err = s.store.OrderExists(ctx, patient.ID, dx.MedicationName, dx.PrimaryDiagnosis)
	if err != nil {
		return nil, eris.Wrap(err, "careplan: check order")
	}
	if exists {
		return nil, &DuplicateError{Message: duplicateOrderMessage}
	}

	order := &model.Order{
		PatientID:           patient.ID,
		MedicationName:      dx.MedicationName,
		PrimaryDiagnosis:    dx.PrimaryDiagnosis,
		AdditionalDiagnoses: dx.AdditionalDiagnoses,
		MedicationHistory:   dx.MedicationHistory,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, conflictOr(err, duplicateOrderMessage, "careplan: create order")
	}
	s.audit(ctx, EventCreateOrder, order.ID, "order", "New order created")

	text, err := s.drafter.Draft(ctx, &f)
	if err != nil {
		return nil, eris.Wrap(err, "careplan: draft care plan")
	}

	cp := &model.CarePlan{
		OrderID:     order.ID,
		PlanText:    text,
		GeneratedBy: s.drafter.Name(),
		GeneratedAt: s.now().UTC(),
	}
	if err := s.store.CreateCarePlan(ctx, cp); err != nil {
		return nil, eris.Wrap(err, "careplan: create care plan")
	}
	s.audit(ctx, EventGenerateCarePlan, cp.ID, "care_plan", "Care plan generated")

	zap.L().Info("created care plan",
		zap.String("care_plan_id", cp.ID),
		zap.String("order_id", order.ID),
		zap.Int("version", cp.Version),
	)

	return &model.GeneratedCarePlan{
		ID:           cp.ID,
		PatientName:  patient.FullName(),
		MRN:          patient.MRN,
		ProviderName: provider.Name,
		Medication:   order.MedicationName,
		CarePlanText: cp.PlanText,
		GeneratedAt:  cp.GeneratedAt,
	}, nil
}

const duplicateOrderMessage = "Duplicate order exists for this patient, medication, and diagnosis combination"

// Get returns a stored care plan with its order, patient and provider.
func (s *Service) Get(ctx context.Context, id string) (*model.CarePlanDetail, error) {
	return s.store.GetCarePlan(ctx, id)
}

// List returns report rows for stored care plans, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]model.CarePlanRecord, error) {
	rows, err := s.store.ListCarePlans(ctx, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.CarePlanRecord{}
	}
	return rows, nil
}

// Attribute generates source attribution for a stored care plan and saves it.
// The stored care plan is left unchanged when generation fails.
func (s *Service) Attribute(ctx context.Context, carePlanID string) (*model.SourceAttribution, error) {
	detail, err := s.store.GetCarePlan(ctx, carePlanID)
	if err != nil {
		return nil, err
	}

	record := PatientRecordText(detail.Patient, detail.Order)
	zap.L().Info("generating source attribution",
		zap.String("care_plan_id", carePlanID),
		zap.Int("care_plan_chars", len(detail.CarePlan.PlanText)),
		zap.Int("patient_record_chars", len(record)),
	)

	doc, err := s.attributor.Generate(ctx, detail.CarePlan.PlanText, record)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveAttribution(ctx, carePlanID, doc); err != nil {
		return nil, eris.Wrap(err, "careplan: save attribution")
	}
	s.audit(ctx, EventGenerateAttribution, carePlanID, "care_plan", "Source attribution generated")

	zap.L().Info("stored source attribution",
		zap.String("care_plan_id", carePlanID),
		zap.Int("sections", len(doc.Sections)),
		zap.Int("statements", doc.StatementCount()),
		zap.Bool("fallback", doc.IsFallback()),
	)
	return doc, nil
}

// AttributeText generates source attribution for text that is not stored.
func (s *Service) AttributeText(ctx context.Context, carePlanText, patientRecordText string) (*model.SourceAttribution, error) {
	if strings.TrimSpace(carePlanText) == "" {
		return nil, ErrEmptyCarePlan
	}
	return s.attributor.Generate(ctx, carePlanText, patientRecordText)
}

// audit records an event. Failures are logged and otherwise ignored.
func (s *Service) audit(ctx context.Context, eventType, entityID, entityType, description string) {
	err := s.store.LogAuditEvent(ctx, model.AuditEvent{
		EventType:   eventType,
		EntityID:    entityID,
		EntityType:  entityType,
		Description: description,
	})
	if err != nil {
		zap.L().Warn("audit log failed",
			zap.String("event_type", eventType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func conflictOr(err error, message, wrap string) error {
	if eris.Is(err, store.ErrConflict) {
		return &DuplicateError{Message: message}
	}
	return eris.Wrap(err, wrap)
}

// compact drops blank entries from free-text lists.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
