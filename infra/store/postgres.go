package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fieldops/dispatchd/core/model"
	"github.com/fieldops/dispatchd/infra/logger"
)

// PostgresConfig holds connection settings for the PostgreSQL backend.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, ssl)
}

// PostgresStore loads inputs from and writes assignments to PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	log logger.Logger
}

// NewPostgresStore opens and pings the database. The caller owns Close.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db, log: logger.New("postgres-store")}, nil
}

// NewPostgresStoreFromDB wraps an existing connection, used by tests.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, log: logger.New("postgres-store")}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Dispatches(ctx context.Context) ([]model.Dispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dispatch_id, required_skill, city, latitude, longitude, appointment,
		       COALESCE(priority, ''), COALESCE(service_tier, ''), COALESCE(equipment, ''),
		       COALESCE(first_time_fix, FALSE), COALESCE(initial_technician, '')
		FROM dispatches
		ORDER BY appointment, dispatch_id`)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var out []model.Dispatch
	for rows.Next() {
		var d model.Dispatch
		var priority string
		if err := rows.Scan(&d.ID, &d.RequiredSkill, &d.City, &d.Latitude, &d.Longitude,
			&d.Appointment, &priority, &d.ServiceTier, &d.Equipment,
			&d.FirstTimeFix, &d.InitialTechnician); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		d.Priority = model.Priority(priority)
		if err := d.Validate(); err != nil {
			s.log.Warnf("skipping dispatch row: %v", err)
			continue
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Technicians(ctx context.Context) ([]model.Technician, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT technician_id, primary_skill, COALESCE(secondary_skills, '{}'),
		       city, latitude, longitude, capacity, COALESCE(assigned, 0)
		FROM technicians
		ORDER BY technician_id`)
	if err != nil {
		return nil, fmt.Errorf("query technicians: %w", err)
	}
	defer rows.Close()

	var out []model.Technician
	for rows.Next() {
		var t model.Technician
		if err := rows.Scan(&t.ID, &t.PrimarySkill, pq.Array(&t.SecondarySkills),
			&t.City, &t.Latitude, &t.Longitude, &t.Capacity, &t.Assigned); err != nil {
			return nil, fmt.Errorf("scan technician: %w", err)
		}
		if err := t.Validate(); err != nil {
			s.log.Warnf("skipping technician row: %v", err)
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Availability(ctx context.Context) (*model.AvailabilitySet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT technician_id, day, available FROM technician_availability`)
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	defer rows.Close()

	avail := model.NewAvailabilitySet()
	for rows.Next() {
		var techID string
		var day time.Time
		var available bool
		if err := rows.Scan(&techID, &day, &available); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		avail.Set(techID, day, available)
	}
	return avail, rows.Err()
}

func (s *PostgresStore) History(ctx context.Context) ([]model.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dispatch_id, required_skill, COALESCE(city, ''), technician_id, appointment,
		       COALESCE(distance_km, 0), COALESCE(duration_min, 0),
		       COALESCE(service_tier, ''), COALESCE(equipment, ''),
		       COALESCE(first_time_fix, FALSE), productive
		FROM dispatch_history
		ORDER BY appointment, dispatch_id`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		var h model.HistoryRecord
		if err := rows.Scan(&h.DispatchID, &h.RequiredSkill, &h.City, &h.TechnicianID,
			&h.Appointment, &h.DistanceKM, &h.DurationMin, &h.ServiceTier,
			&h.Equipment, &h.FirstTimeFix, &h.Productive); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// WriteAssignments persists the run atomically: either every assignment of
// the batch lands or none do.
func (s *PostgresStore) WriteAssignments(ctx context.Context, runID string, assignments []model.Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assignments (
			run_id, dispatch_id, technician_id, distance_km, workload_ratio,
			skill_match, confidence, success_probability, final_score,
			level, reason, warnings, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		var techID sql.NullString
		if a.TechnicianID != "" {
			techID = sql.NullString{String: a.TechnicianID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			runID, a.DispatchID, techID, a.DistanceKM, a.WorkloadRatio,
			a.SkillMatch, a.Confidence, a.SuccessProb, a.FinalScore,
			a.Level, a.Reason, pq.Array(a.Warnings)); err != nil {
			return fmt.Errorf("insert assignment %s: %w", a.DispatchID, err)
		}
	}
	return tx.Commit()
}
