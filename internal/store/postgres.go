package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/careplan-cli/internal/db"
	"github.com/sells-group/careplan-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS providers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	npi        TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patients (
	id            TEXT PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	mrn           TEXT NOT NULL UNIQUE,
	provider_id   TEXT REFERENCES providers(id),
	date_of_birth TEXT,
	sex           TEXT,
	weight_kg     DOUBLE PRECISION,
	allergies     TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id                   TEXT PRIMARY KEY,
	patient_id           TEXT NOT NULL REFERENCES patients(id),
	medication_name      TEXT NOT NULL,
	primary_diagnosis    TEXT NOT NULL,
	additional_diagnoses TEXT[] NOT NULL DEFAULT '{}',
	medication_history   TEXT[] NOT NULL DEFAULT '{}',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (patient_id, medication_name, primary_diagnosis)
);

CREATE TABLE IF NOT EXISTS care_plans (
	id                   TEXT PRIMARY KEY,
	order_id             TEXT NOT NULL REFERENCES orders(id),
	plan_text            TEXT NOT NULL,
	generated_by         TEXT NOT NULL,
	generated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	version              INTEGER NOT NULL DEFAULT 1,
	is_final             BOOLEAN NOT NULL DEFAULT false,
	attribution          JSONB,
	attribution_fallback BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_patients_provider_id ON patients(provider_id);
CREATE INDEX IF NOT EXISTS idx_orders_patient_id ON orders(patient_id);
CREATE INDEX IF NOT EXISTS idx_care_plans_order_id ON care_plans(order_id);
CREATE INDEX IF NOT EXISTS idx_care_plans_generated_at ON care_plans(generated_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, postgresMigration)
		return err
	})
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PostgresStore) PatientExists(ctx context.Context, mrn string) (bool, error) {
	ok, err := s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE mrn = $1)`, mrn)
	return ok, eris.Wrapf(err, "postgres: patient exists %s", mrn)
}

func (s *PostgresStore) ProviderExists(ctx context.Context, npi string) (bool, error) {
	ok, err := s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM providers WHERE npi = $1)`, npi)
	return ok, eris.Wrapf(err, "postgres: provider exists %s", npi)
}

func (s *PostgresStore) OrderExists(ctx context.Context, patientID, medication, diagnosis string) (bool, error) {
	ok, err := s.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE patient_id = $1 AND medication_name = $2 AND primary_diagnosis = $3)`,
		patientID, medication, diagnosis,
	)
	return ok, eris.Wrap(err, "postgres: order exists")
}

func (s *PostgresStore) CreateProvider(ctx context.Context, p *model.Provider) error {
	p.ID = uuid.New().String()
	p.CreatedAt = s.now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO providers (id, name, npi, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.NPI, p.CreatedAt,
	)
	return pgInsertErr(err, "provider")
}

func (s *PostgresStore) CreatePatient(ctx context.Context, p *model.Patient) error {
	p.ID = uuid.New().String()
	p.CreatedAt = s.now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO patients (id, first_name, last_name, mrn, provider_id, date_of_birth, sex, weight_kg, allergies, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), $10)`,
		p.ID, p.FirstName, p.LastName, p.MRN, p.ProviderID, p.DateOfBirth, p.Sex, p.WeightKg, p.Allergies, p.CreatedAt,
	)
	return pgInsertErr(err, "patient")
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	o.ID = uuid.New().String()
	o.CreatedAt = s.now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, patient_id, medication_name, primary_diagnosis, additional_diagnoses, medication_history, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.PatientID, o.MedicationName, o.PrimaryDiagnosis,
		nonNil(o.AdditionalDiagnoses), nonNil(o.MedicationHistory), o.CreatedAt,
	)
	return pgInsertErr(err, "order")
}

// CreateCarePlan inserts cp as the next version for its order.
func (s *PostgresStore) CreateCarePlan(ctx context.Context, cp *model.CarePlan) error {
	cp.ID = uuid.New().String()
	if cp.GeneratedAt.IsZero() {
		cp.GeneratedAt = s.now().UTC()
	}

	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM care_plans WHERE order_id = $1`, cp.OrderID,
		).Scan(&cp.Version); err != nil {
			return eris.Wrap(err, "next version")
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO care_plans (id, order_id, plan_text, generated_by, generated_at, version, is_final)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			cp.ID, cp.OrderID, cp.PlanText, cp.GeneratedBy, cp.GeneratedAt, cp.Version, cp.IsFinal,
		)
		return err
	})
	return eris.Wrap(err, "postgres: insert care plan")
}

const postgresCarePlanDetail = `
SELECT cp.id, cp.order_id, cp.plan_text, cp.generated_by, cp.generated_at, cp.version, cp.is_final, cp.attribution,
       o.id, o.patient_id, o.medication_name, o.primary_diagnosis, o.additional_diagnoses, o.medication_history, o.created_at,
       p.id, p.first_name, p.last_name, p.mrn, COALESCE(p.provider_id, ''), COALESCE(p.date_of_birth, ''),
       COALESCE(p.sex, ''), p.weight_kg, COALESCE(p.allergies, ''), p.created_at,
       COALESCE(pr.id, ''), COALESCE(pr.name, ''), COALESCE(pr.npi, '')
FROM care_plans cp
JOIN orders o ON o.id = cp.order_id
JOIN patients p ON p.id = o.patient_id
LEFT JOIN providers pr ON pr.id = p.provider_id
WHERE cp.id = $1`

func (s *PostgresStore) GetCarePlan(ctx context.Context, id string) (*model.CarePlanDetail, error) {
	var d model.CarePlanDetail
	var attribution []byte

	err := s.pool.QueryRow(ctx, postgresCarePlanDetail, id).Scan(
		&d.CarePlan.ID, &d.CarePlan.OrderID, &d.CarePlan.PlanText, &d.CarePlan.GeneratedBy,
		&d.CarePlan.GeneratedAt, &d.CarePlan.Version, &d.CarePlan.IsFinal, &attribution,
		&d.Order.ID, &d.Order.PatientID, &d.Order.MedicationName, &d.Order.PrimaryDiagnosis,
		&d.Order.AdditionalDiagnoses, &d.Order.MedicationHistory, &d.Order.CreatedAt,
		&d.Patient.ID, &d.Patient.FirstName, &d.Patient.LastName, &d.Patient.MRN, &d.Patient.ProviderID,
		&d.Patient.DateOfBirth, &d.Patient.Sex, &d.Patient.WeightKg, &d.Patient.Allergies, &d.Patient.CreatedAt,
		&d.Provider.ID, &d.Provider.Name, &d.Provider.NPI,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get care plan %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get care plan %s", id)
	}

	if d.CarePlan.Attribution, err = decodeAttribution(attribution); err != nil {
		return nil, eris.Wrapf(err, "postgres: get care plan %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListCarePlans(ctx context.Context, limit int) ([]model.CarePlanRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cp.id, p.first_name || ' ' || p.last_name, p.mrn, COALESCE(pr.name, ''), o.medication_name, cp.generated_at
		 FROM care_plans cp
		 JOIN orders o ON o.id = cp.order_id
		 JOIN patients p ON p.id = o.patient_id
		 LEFT JOIN providers pr ON pr.id = p.provider_id
		 ORDER BY cp.generated_at DESC
		 LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list care plans")
	}
	defer rows.Close()

	var out []model.CarePlanRecord
	for rows.Next() {
		var r model.CarePlanRecord
		var at time.Time
		if err := rows.Scan(&r.ID, &r.PatientName, &r.MRN, &r.Provider, &r.Medication, &at); err != nil {
			return nil, eris.Wrap(err, "postgres: scan care plan row")
		}
		r.Date = at.Format(reportDate)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list care plans")
}

func (s *PostgresStore) SaveAttribution(ctx context.Context, carePlanID string, doc *model.SourceAttribution) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attribution")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE care_plans SET attribution = $1, attribution_fallback = $2 WHERE id = $3`,
		data, doc.IsFallback(), carePlanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save attribution %s", carePlanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: save attribution %s", carePlanID)
	}
	return nil
}

func (s *PostgresStore) LogAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, event_type, entity_id, entity_type, description, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		uuid.New().String(), ev.EventType, ev.EntityID, ev.EntityType, ev.Description, s.now().UTC(),
	)
	return eris.Wrapf(err, "postgres: audit %s", ev.EventType)
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(attribution), COUNT(*) FILTER (WHERE attribution_fallback) FROM care_plans`,
	).Scan(&st.CarePlans, &st.Attributed, &st.Fallback)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &st, nil
}

func pgInsertErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(ErrConflict, "postgres: insert %s", entity)
	}
	return eris.Wrapf(err, "postgres: insert %s", entity)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func decodeAttribution(data []byte) (*model.SourceAttribution, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var doc model.SourceAttribution
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "unmarshal attribution")
	}
	return &doc, nil
}
