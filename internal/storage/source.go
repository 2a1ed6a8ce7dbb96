package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type SourcePostgresStorage struct {
	db *sqlx.DB
}

func NewSourcePostgresStorage(db *sqlx.DB) *SourcePostgresStorage {
	return &SourcePostgresStorage{db: db}
}

const sourceColumns = `id, name, icon, source_type, config, is_active, total_collected, last_crawl_at, created_at`

// Sources все источники, отсортированные по имени
func (s *SourcePostgresStorage) Sources(ctx context.Context) ([]model.Source, error) {
	var sources []dbSource
	if err := s.db.SelectContext(ctx, &sources, `SELECT `+sourceColumns+` FROM crawl_sources ORDER BY name`); err != nil {
		return nil, err
	}

	return lo.Map(sources, func(source dbSource, _ int) model.Source {
		return source.toModel()
	}), nil
}

// ActiveSources источники, которые надо обходить при сборе
func (s *SourcePostgresStorage) ActiveSources(ctx context.Context) ([]model.Source, error) {
	var sources []dbSource
	if err := s.db.SelectContext(
		ctx,
		&sources,
		`SELECT `+sourceColumns+` FROM crawl_sources WHERE is_active = TRUE ORDER BY id`,
	); err != nil {
		return nil, err
	}

	return lo.Map(sources, func(source dbSource, _ int) model.Source {
		return source.toModel()
	}), nil
}

func (s *SourcePostgresStorage) SourceByID(ctx context.Context, id int64) (*model.Source, error) {
	var source dbSource
	err := s.db.GetContext(ctx, &source, `SELECT `+sourceColumns+` FROM crawl_sources WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m := source.toModel()
	return &m, nil
}

// Add добавляет источник или обновляет существующий с тем же именем
func (s *SourcePostgresStorage) Add(ctx context.Context, source model.Source) (int64, error) {
	config := []byte(source.Config)
	if len(config) == 0 {
		config = []byte("{}")
	}

	var id int64
	err := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO crawl_sources (name, icon, source_type, config, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET icon = EXCLUDED.icon, source_type = EXCLUDED.source_type,
			config = EXCLUDED.config, is_active = EXCLUDED.is_active
		RETURNING id`,
		source.Name,
		source.Icon,
		source.Kind,
		config,
		source.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, persistErr("add source", err)
	}

	return id, nil
}

// MarkCrawled обновляет время последнего сбора и счетчик собранных записей
func (s *SourcePostgresStorage) MarkCrawled(ctx context.Context, id int64, newItems int, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE crawl_sources SET last_crawl_at = $1, total_collected = total_collected + $2 WHERE id = $3`,
		at,
		newItems,
		id,
	)
	return persistErr("mark source crawled", err)
}

// SourcesWithLogs источники вместе с последней записью журнала сбора
func (s *SourcePostgresStorage) SourcesWithLogs(ctx context.Context) ([]model.SourceWithLog, error) {
	var rows []dbSourceWithLog
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT s.id, s.name, s.icon, s.source_type, s.config, s.is_active, s.total_collected,
			s.last_crawl_at, s.created_at,
			l.id AS log_id, l.run_id AS log_run_id, l.status AS log_status,
			l.items_found AS log_items_found, l.items_new AS log_items_new,
			l.error_message AS log_error_message, l.duration_ms AS log_duration_ms,
			l.created_at AS log_created_at
		FROM crawl_sources s
		LEFT JOIN LATERAL (
			SELECT * FROM crawl_logs WHERE source_id = s.id ORDER BY created_at DESC, id DESC LIMIT 1
		) l ON TRUE
		ORDER BY s.name`,
	); err != nil {
		return nil, err
	}

	return lo.Map(rows, func(row dbSourceWithLog, _ int) model.SourceWithLog {
		return row.toModel()
	}), nil
}

type dbSource struct {
	ID             int64        `db:"id"`
	Name           string       `db:"name"`
	Icon           string       `db:"icon"`
	Kind           string       `db:"source_type"`
	Config         []byte       `db:"config"`
	IsActive       bool         `db:"is_active"`
	TotalCollected int          `db:"total_collected"`
	LastCrawlAt    sql.NullTime `db:"last_crawl_at"`
	CreatedAt      time.Time    `db:"created_at"`
}

func (s dbSource) toModel() model.Source {
	return model.Source{
		ID:             s.ID,
		Name:           s.Name,
		Icon:           s.Icon,
		Kind:           s.Kind,
		Config:         s.Config,
		IsActive:       s.IsActive,
		TotalCollected: s.TotalCollected,
		LastCrawlAt:    nullTime(s.LastCrawlAt),
		CreatedAt:      s.CreatedAt,
	}
}

type dbSourceWithLog struct {
	dbSource
	LogID           sql.NullInt64  `db:"log_id"`
	LogRunID        sql.NullString `db:"log_run_id"`
	LogStatus       sql.NullString `db:"log_status"`
	LogItemsFound   sql.NullInt64  `db:"log_items_found"`
	LogItemsNew     sql.NullInt64  `db:"log_items_new"`
	LogErrorMessage sql.NullString `db:"log_error_message"`
	LogDurationMs   sql.NullInt64  `db:"log_duration_ms"`
	LogCreatedAt    sql.NullTime   `db:"log_created_at"`
}

func (r dbSourceWithLog) toModel() model.SourceWithLog {
	out := model.SourceWithLog{Source: r.dbSource.toModel()}
	if !r.LogID.Valid {
		return out
	}

	out.RecentLog = &model.CrawlLog{
		ID:           r.LogID.Int64,
		RunID:        r.LogRunID.String,
		SourceID:     r.ID,
		Status:       r.LogStatus.String,
		ItemsFound:   int(r.LogItemsFound.Int64),
		ItemsNew:     int(r.LogItemsNew.Int64),
		ErrorMessage: nullString(r.LogErrorMessage),
		DurationMs:   r.LogDurationMs.Int64,
		CreatedAt:    r.LogCreatedAt.Time,
	}
	return out
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return lo.ToPtr(t.Time)
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return lo.ToPtr(s.String)
}
