package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/careplan-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS providers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	npi        TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS patients (
	id            TEXT PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	mrn           TEXT NOT NULL UNIQUE,
	provider_id   TEXT REFERENCES providers(id),
	date_of_birth TEXT,
	sex           TEXT,
	weight_kg     REAL,
	allergies     TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS orders (
	id                   TEXT PRIMARY KEY,
	patient_id           TEXT NOT NULL REFERENCES patients(id),
	medication_name      TEXT NOT NULL,
	primary_diagnosis    TEXT NOT NULL,
	additional_diagnoses TEXT NOT NULL DEFAULT '[]',
	medication_history   TEXT NOT NULL DEFAULT '[]',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (patient_id, medication_name, primary_diagnosis)
);

CREATE TABLE IF NOT EXISTS care_plans (
	id                   TEXT PRIMARY KEY,
	order_id             TEXT NOT NULL REFERENCES orders(id),
	plan_text            TEXT NOT NULL,
	generated_by         TEXT NOT NULL,
	generated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	version              INTEGER NOT NULL DEFAULT 1,
	is_final             BOOLEAN NOT NULL DEFAULT 0,
	attribution          TEXT,
	attribution_fallback BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	description TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_patients_provider_id ON patients(provider_id);
CREATE INDEX IF NOT EXISTS idx_orders_patient_id ON orders(patient_id);
CREATE INDEX IF NOT EXISTS idx_care_plans_order_id ON care_plans(order_id);
CREATE INDEX IF NOT EXISTS idx_care_plans_generated_at ON care_plans(generated_at);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *SQLiteStore) PatientExists(ctx context.Context, mrn string) (bool, error) {
	ok, err := s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE mrn = ?)`, mrn)
	return ok, eris.Wrapf(err, "sqlite: patient exists %s", mrn)
}

func (s *SQLiteStore) ProviderExists(ctx context.Context, npi string) (bool, error) {
	ok, err := s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM providers WHERE npi = ?)`, npi)
	return ok, eris.Wrapf(err, "sqlite: provider exists %s", npi)
}

func (s *SQLiteStore) OrderExists(ctx context.Context, patientID, medication, diagnosis string) (bool, error) {
	ok, err := s.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE patient_id = ? AND medication_name = ? AND primary_diagnosis = ?)`,
		patientID, medication, diagnosis,
	)
	return ok, eris.Wrap(err, "sqlite: order exists")
}

func (s *SQLiteStore) CreateProvider(ctx context.Context, p *model.Provider) error {
	p.ID = uuid.New().String()
	p.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO providers (id, name, npi, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.NPI, p.CreatedAt,
	)
	return sqliteInsertErr(err, "provider")
}

func (s *SQLiteStore) CreatePatient(ctx context.Context, p *model.Patient) error {
	p.ID = uuid.New().String()
	p.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (id, first_name, last_name, mrn, provider_id, date_of_birth, sex, weight_kg, allergies, created_at)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), ?)`,
		p.ID, p.FirstName, p.LastName, p.MRN, p.ProviderID, p.DateOfBirth, p.Sex, p.WeightKg, p.Allergies, p.CreatedAt,
	)
	return sqliteInsertErr(err, "patient")
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *model.Order) error {
	o.ID = uuid.New().String()
	o.CreatedAt = s.now().UTC()

	additional, err := json.Marshal(nonNil(o.AdditionalDiagnoses))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal additional diagnoses")
	}
	history, err := json.Marshal(nonNil(o.MedicationHistory))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal medication history")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, patient_id, medication_name, primary_diagnosis, additional_diagnoses, medication_history, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.PatientID, o.MedicationName, o.PrimaryDiagnosis, string(additional), string(history), o.CreatedAt,
	)
	return sqliteInsertErr(err, "order")
}

// CreateCarePlan inserts cp as the next version for its order.
func (s *SQLiteStore) CreateCarePlan(ctx context.Context, cp *model.CarePlan) error {
	cp.ID = uuid.New().String()
	if cp.GeneratedAt.IsZero() {
		cp.GeneratedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM care_plans WHERE order_id = ?`, cp.OrderID,
	).Scan(&cp.Version); err != nil {
		return eris.Wrap(err, "sqlite: next care plan version")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO care_plans (id, order_id, plan_text, generated_by, generated_at, version, is_final)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.OrderID, cp.PlanText, cp.GeneratedBy, cp.GeneratedAt, cp.Version, cp.IsFinal,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert care plan")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit care plan")
}

const sqliteCarePlanDetail = `
SELECT cp.id, cp.order_id, cp.plan_text, cp.generated_by, cp.generated_at, cp.version, cp.is_final, cp.attribution,
       o.id, o.patient_id, o.medication_name, o.primary_diagnosis, o.additional_diagnoses, o.medication_history, o.created_at,
       p.id, p.first_name, p.last_name, p.mrn, COALESCE(p.provider_id, ''), COALESCE(p.date_of_birth, ''),
       COALESCE(p.sex, ''), p.weight_kg, COALESCE(p.allergies, ''), p.created_at,
       COALESCE(pr.id, ''), COALESCE(pr.name, ''), COALESCE(pr.npi, '')
FROM care_plans cp
JOIN orders o ON o.id = cp.order_id
JOIN patients p ON p.id = o.patient_id
LEFT JOIN providers pr ON pr.id = p.provider_id
WHERE cp.id = ?`

func (s *SQLiteStore) GetCarePlan(ctx context.Context, id string) (*model.CarePlanDetail, error) {
	var d model.CarePlanDetail
	var attribution sql.NullString
	var additional, history string
	var weight sql.NullFloat64

	err := s.db.QueryRowContext(ctx, sqliteCarePlanDetail, id).Scan(
		&d.CarePlan.ID, &d.CarePlan.OrderID, &d.CarePlan.PlanText, &d.CarePlan.GeneratedBy,
		&d.CarePlan.GeneratedAt, &d.CarePlan.Version, &d.CarePlan.IsFinal, &attribution,
		&d.Order.ID, &d.Order.PatientID, &d.Order.MedicationName, &d.Order.PrimaryDiagnosis,
		&additional, &history, &d.Order.CreatedAt,
		&d.Patient.ID, &d.Patient.FirstName, &d.Patient.LastName, &d.Patient.MRN, &d.Patient.ProviderID,
		&d.Patient.DateOfBirth, &d.Patient.Sex, &weight, &d.Patient.Allergies, &d.Patient.CreatedAt,
		&d.Provider.ID, &d.Provider.Name, &d.Provider.NPI,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get care plan %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get care plan %s", id)
	}

	if weight.Valid {
		d.Patient.WeightKg = &weight.Float64
	}
	if err := json.Unmarshal([]byte(additional), &d.Order.AdditionalDiagnoses); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal additional diagnoses")
	}
	if err := json.Unmarshal([]byte(history), &d.Order.MedicationHistory); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal medication history")
	}
	if attribution.Valid {
		if d.CarePlan.Attribution, err = decodeAttribution([]byte(attribution.String)); err != nil {
			return nil, eris.Wrapf(err, "sqlite: get care plan %s", id)
		}
	}
	return &d, nil
}

func (s *SQLiteStore) ListCarePlans(ctx context.Context, limit int) ([]model.CarePlanRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cp.id, p.first_name || ' ' || p.last_name, p.mrn, COALESCE(pr.name, ''), o.medication_name, cp.generated_at
		 FROM care_plans cp
		 JOIN orders o ON o.id = cp.order_id
		 JOIN patients p ON p.id = o.patient_id
		 LEFT JOIN providers pr ON pr.id = p.provider_id
		 ORDER BY cp.generated_at DESC, cp.rowid DESC
		 LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list care plans")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CarePlanRecord
	for rows.Next() {
		var r model.CarePlanRecord
		var at time.Time
		if err := rows.Scan(&r.ID, &r.PatientName, &r.MRN, &r.Provider, &r.Medication, &at); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan care plan row")
		}
		r.Date = at.Format(reportDate)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list care plans")
}

func (s *SQLiteStore) SaveAttribution(ctx context.Context, carePlanID string, doc *model.SourceAttribution) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attribution")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE care_plans SET attribution = ?, attribution_fallback = ? WHERE id = ?`,
		string(data), doc.IsFallback(), carePlanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save attribution %s", carePlanID)
	}
	return checkRowsAffected(res, "care plan", carePlanID)
}

func (s *SQLiteStore) LogAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, event_type, entity_id, entity_type, description, created_at)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)`,
		uuid.New().String(), ev.EventType, ev.EntityID, ev.EntityType, ev.Description, s.now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: audit %s", ev.EventType)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(attribution), COALESCE(SUM(CASE WHEN attribution_fallback THEN 1 ELSE 0 END), 0) FROM care_plans`,
	).Scan(&st.CarePlans, &st.Attributed, &st.Fallback)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &st, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func sqliteInsertErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrapf(ErrConflict, "sqlite: insert %s", entity)
	}
	return eris.Wrapf(err, "sqlite: insert %s", entity)
}
