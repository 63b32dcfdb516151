package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/veridian/comply/internal/models"
)

type Store struct {
	db *sqlx.DB
}

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

func New(cfg Config) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) CreateEntity(ctx context.Context, entity *models.EntityProfile) error {
	query := `
		INSERT INTO entity_profiles (
			id, name, entity_type, state, annual_turnover, employee_count,
			gst_registered, pf_registered, esi_registered, incorporation_date,
			trigger_dates, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = time.Now()
	entity.Active = true

	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		entity.Name,
		entity.EntityType,
		entity.State,
		entity.AnnualTurnover,
		entity.EmployeeCount,
		entity.GSTRegistered,
		entity.PFRegistered,
		entity.ESIRegistered,
		entity.IncorporationDate,
		entity.TriggerDates,
		entity.Active,
		entity.CreatedAt,
		entity.UpdatedAt,
	)
	return err
}

func (s *Store) GetEntity(ctx context.Context, id uuid.UUID) (*models.EntityProfile, error) {
	var entity models.EntityProfile
	query := `SELECT * FROM entity_profiles WHERE id = $1`
	err := s.db.GetContext(ctx, &entity, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &entity, err
}

func (s *Store) ListEntities(ctx context.Context, activeOnly bool) ([]models.EntityProfile, error) {
	var entities []models.EntityProfile
	query := `SELECT * FROM entity_profiles WHERE 1=1`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY name`
	err := s.db.SelectContext(ctx, &entities, query)
	return entities, err
}

func (s *Store) UpdateEntity(ctx context.Context, entity *models.EntityProfile) error {
	entity.UpdatedAt = time.Now()
	query := `
		UPDATE entity_profiles
		SET name = $1, entity_type = $2, state = $3, annual_turnover = $4,
		    employee_count = $5, gst_registered = $6, pf_registered = $7,
		    esi_registered = $8, incorporation_date = $9, trigger_dates = $10,
		    active = $11, updated_at = $12
		WHERE id = $13
	`
	_, err := s.db.ExecContext(ctx, query,
		entity.Name,
		entity.EntityType,
		entity.State,
		entity.AnnualTurnover,
		entity.EmployeeCount,
		entity.GSTRegistered,
		entity.PFRegistered,
		entity.ESIRegistered,
		entity.IncorporationDate,
		entity.TriggerDates,
		entity.Active,
		entity.UpdatedAt,
		entity.ID,
	)
	return err
}

func (s *Store) CreateFiling(ctx context.Context, filing *models.FilingRecord) error {
	query := `
		INSERT INTO filing_records (id, entity_id, rule_code, period_key, status, reference, filed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_id, rule_code, period_key)
		DO UPDATE SET status = EXCLUDED.status, reference = EXCLUDED.reference, filed_at = EXCLUDED.filed_at
	`
	if filing.ID == uuid.Nil {
		filing.ID = uuid.New()
	}
	filing.CreatedAt = time.Now()
	if filing.FiledAt.IsZero() {
		filing.FiledAt = filing.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, query,
		filing.ID,
		filing.EntityID,
		filing.RuleCode,
		filing.PeriodKey,
		filing.Status,
		filing.Reference,
		filing.FiledAt,
		filing.CreatedAt,
	)
	return err
}

// ListFilings returns an entity's filings, newest first.
func (s *Store) ListFilings(ctx context.Context, entityID uuid.UUID, ruleCode string) ([]models.FilingRecord, error) {
	var filings []models.FilingRecord
	query := `SELECT * FROM filing_records WHERE entity_id = $1`
	args := []interface{}{entityID}
	if ruleCode != "" {
		query += ` AND rule_code = $2`
		args = append(args, ruleCode)
	}
	query += ` ORDER BY filed_at DESC`
	err := s.db.SelectContext(ctx, &filings, query, args...)
	return filings, err
}

// GetFiling looks up the filing for one (entity, rule, period) obligation.
func (s *Store) GetFiling(ctx context.Context, entityID uuid.UUID, ruleCode, periodKey string) (*models.FilingRecord, error) {
	var filing models.FilingRecord
	query := `SELECT * FROM filing_records WHERE entity_id = $1 AND rule_code = $2 AND period_key = $3`
	err := s.db.GetContext(ctx, &filing, query, entityID, ruleCode, periodKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &filing, err
}
