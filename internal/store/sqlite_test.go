package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careplan-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedCarePlan inserts a provider, patient, order and care plan.
func seedCarePlan(t *testing.T, st Store, mrn, npi string) *model.CarePlan {
	t.Helper()
	ctx := context.Background()

	prov := &model.Provider{Name: "Dr. Jane Smith", NPI: npi}
	require.NoError(t, st.CreateProvider(ctx, prov))

	weight := 72.5
	pat := &model.Patient{
		FirstName:  "John",
		LastName:   "Doe",
		MRN:        mrn,
		ProviderID: prov.ID,
		Sex:        "Male",
		WeightKg:   &weight,
		Allergies:  "Penicillin",
	}
	require.NoError(t, st.CreatePatient(ctx, pat))

	ord := &model.Order{
		PatientID:           pat.ID,
		MedicationName:      "IVIG",
		PrimaryDiagnosis:    "G70.00",
		AdditionalDiagnoses: []string{"I10"},
	}
	require.NoError(t, st.CreateOrder(ctx, ord))

	cp := &model.CarePlan{OrderID: ord.ID, PlanText: "CARE PLAN\nMonitor vitals.", GeneratedBy: "template"}
	require.NoError(t, st.CreateCarePlan(ctx, cp))
	return cp
}

func TestSQLite_ExistsChecks(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := st.PatientExists(ctx, "123456")
	require.NoError(t, err)
	assert.False(t, ok)

	cp := seedCarePlan(t, st, "123456", "1234567890")

	ok, err = st.PatientExists(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.ProviderExists(ctx, "1234567890")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.ProviderExists(ctx, "0000000000")
	require.NoError(t, err)
	assert.False(t, ok)

	detail, err := st.GetCarePlan(ctx, cp.ID)
	require.NoError(t, err)

	ok, err = st.OrderExists(ctx, detail.Patient.ID, "IVIG", "G70.00")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.OrderExists(ctx, detail.Patient.ID, "IVIG", "G70.01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_DuplicateInsertIsConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateProvider(ctx, &model.Provider{Name: "A", NPI: "1234567890"}))
	err := st.CreateProvider(ctx, &model.Provider{Name: "B", NPI: "1234567890"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConflict))
}

func TestSQLite_GetCarePlan(t *testing.T) {
	st := newTestSQLiteStore(t)
	cp := seedCarePlan(t, st, "123456", "1234567890")

	d, err := st.GetCarePlan(context.Background(), cp.ID)
	require.NoError(t, err)

	assert.Equal(t, cp.ID, d.CarePlan.ID)
	assert.Equal(t, 1, d.CarePlan.Version)
	assert.Equal(t, "CARE PLAN\nMonitor vitals.", d.CarePlan.PlanText)
	assert.Nil(t, d.CarePlan.Attribution)
	assert.Equal(t, "IVIG", d.Order.MedicationName)
	assert.Equal(t, []string{"I10"}, d.Order.AdditionalDiagnoses)
	assert.Equal(t, []string{}, d.Order.MedicationHistory)
	assert.Equal(t, "John Doe", d.Patient.FullName())
	assert.Empty(t, d.Patient.DateOfBirth)
	require.NotNil(t, d.Patient.WeightKg)
	assert.InDelta(t, 72.5, *d.Patient.WeightKg, 1e-9)
	assert.Equal(t, "Dr. Jane Smith", d.Provider.Name)
}

func TestSQLite_GetCarePlan_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCarePlan(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_CarePlanVersionIncrements(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	first := seedCarePlan(t, st, "123456", "1234567890")

	second := &model.CarePlan{OrderID: first.OrderID, PlanText: "revised", GeneratedBy: "template"}
	require.NoError(t, st.CreateCarePlan(ctx, second))
	assert.Equal(t, 2, second.Version)
}

func TestSQLite_SaveAttribution(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	cp := seedCarePlan(t, st, "123456", "1234567890")

	doc := &model.SourceAttribution{
		Sections: []model.AttributionSection{{
			Section: "Monitoring",
			Statements: []model.AttributionStatement{{
				Statement:       "Monitor renal function.",
				Sources:         []string{"Patient Record: creatinine 1.4"},
				AttributionType: model.AttributionPatientData,
			}},
		}},
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		ModelUsed:   "openai/gpt-oss-20b:free",
	}
	require.NoError(t, st.SaveAttribution(ctx, cp.ID, doc))

	d, err := st.GetCarePlan(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, d.CarePlan.Attribution)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.Stats{CarePlans: 1, Attributed: 1, Fallback: 0}, stats)
}

func TestSQLite_SaveAttribution_FallbackCounted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	a := seedCarePlan(t, st, "123456", "1234567890")
	seedCarePlan(t, st, "654321", "0987654321")

	fallback := &model.SourceAttribution{
		Sections: []model.AttributionSection{{
			Section: model.FallbackSection,
			Statements: []model.AttributionStatement{{
				Statement:       model.FallbackStatement,
				Sources:         []string{model.FallbackSource},
				AttributionType: model.AttributionStandardPractice,
			}},
		}},
	}
	require.NoError(t, st.SaveAttribution(ctx, a.ID, fallback))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.Stats{CarePlans: 2, Attributed: 1, Fallback: 1}, stats)
}

func TestSQLite_SaveAttribution_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SaveAttribution(context.Background(), "missing", &model.SourceAttribution{Sections: []model.AttributionSection{}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ListCarePlans_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	st.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Hour)
	}

	older := seedCarePlan(t, st, "111111", "1111111111")
	newer := seedCarePlan(t, st, "222222", "2222222222")

	rows, err := st.ListCarePlans(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)
	assert.Equal(t, older.ID, rows[1].ID)
	assert.Equal(t, "John Doe", rows[0].PatientName)
	assert.Equal(t, "222222", rows[0].MRN)
	assert.Equal(t, "Dr. Jane Smith", rows[0].Provider)
	assert.Equal(t, "IVIG", rows[0].Medication)
	assert.Equal(t, "2025-03-01", rows[0].Date)

	rows, err = st.ListCarePlans(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSQLite_LogAuditEvent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.LogAuditEvent(ctx, model.AuditEvent{
		EventType:  "generate_attribution",
		EntityID:   "cp-1",
		EntityType: "care_plan",
	}))

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE event_type = 'generate_attribution' AND description IS NULL`,
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}
