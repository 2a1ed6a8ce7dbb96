package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

// Категория "전체" в фильтре означает все категории
const allCategories = "전체"

type TrendPostgresStorage struct {
	db *sqlx.DB
}

func NewTrendPostgresStorage(db *sqlx.DB) *TrendPostgresStorage {
	return &TrendPostgresStorage{db: db}
}

// Create сохраняет тренд и возвращает его id
func (s *TrendPostgresStorage) Create(ctx context.Context, trend model.Trend) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO trends (title, summary, category, impact, relevance_score, source_name, source_icon,
			source_url, source_id, tags, raw_item_ids, ai_analysis, published_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		trend.Title,
		trend.Summary,
		trend.Category,
		trend.Impact,
		trend.RelevanceScore,
		trend.SourceName,
		trend.SourceIcon,
		trend.SourceURL,
		trend.SourceID,
		pq.StringArray(lo.Ternary(trend.Tags == nil, []string{}, trend.Tags)),
		pq.Int64Array(lo.Ternary(trend.RawItemIDs == nil, []int64{}, trend.RawItemIDs)),
		[]byte(trend.AIAnalysis),
		trend.PublishedDate.Format(time.DateOnly),
	).Scan(&id)
	if err != nil {
		return 0, persistErr("insert trend", err)
	}

	return id, nil
}

// Trends неархивные тренды вместе с действиями, свежие и релевантные первыми
func (s *TrendPostgresStorage) Trends(ctx context.Context, filter model.TrendFilter) ([]model.Trend, error) {
	query := `SELECT ` + trendColumns + ` FROM trends WHERE is_archived = FALSE`
	var args []any

	if filter.Category != "" && filter.Category != allCategories {
		args = append(args, filter.Category)
		query += ` AND category = ?`
	}
	if filter.Impact != "" {
		args = append(args, filter.Impact)
		query += ` AND impact = ?`
	}

	query += ` ORDER BY published_date DESC, relevance_score DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var trends []dbTrend
	if err := s.db.SelectContext(ctx, &trends, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	if len(trends) == 0 {
		return []model.Trend{}, nil
	}

	ids := lo.Map(trends, func(t dbTrend, _ int) int64 { return t.ID })

	var actions []dbAction
	if err := s.db.SelectContext(
		ctx,
		&actions,
		`SELECT `+actionColumns+` FROM actions WHERE trend_id = ANY($1) ORDER BY created_at, id`,
		pq.Int64Array(ids),
	); err != nil {
		return nil, err
	}

	byTrend := lo.GroupBy(actions, func(a dbAction) int64 { return a.TrendID })

	return lo.Map(trends, func(t dbTrend, _ int) model.Trend {
		m := t.toModel()
		m.Actions = lo.Map(byTrend[t.ID], func(a dbAction, _ int) model.Action {
			return a.toModel()
		})
		return m
	}), nil
}

// SetArchived архивирует тренд или возвращает его в ленту
func (s *TrendPostgresStorage) SetArchived(ctx context.Context, id int64, archived bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE trends SET is_archived = $1 WHERE id = $2`, archived, id)
	if err != nil {
		return persistErr("archive trend", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("archive trend", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

const trendColumns = `id, title, summary, category, impact, relevance_score, source_name, source_icon,
	source_url, source_id, tags, raw_item_ids, ai_analysis, is_archived, published_date, created_at`

type dbTrend struct {
	ID             int64          `db:"id"`
	Title          string         `db:"title"`
	Summary        string         `db:"summary"`
	Category       string         `db:"category"`
	Impact         string         `db:"impact"`
	RelevanceScore int            `db:"relevance_score"`
	SourceName     sql.NullString `db:"source_name"`
	SourceIcon     sql.NullString `db:"source_icon"`
	SourceURL      sql.NullString `db:"source_url"`
	SourceID       sql.NullInt64  `db:"source_id"`
	Tags           pq.StringArray `db:"tags"`
	RawItemIDs     pq.Int64Array  `db:"raw_item_ids"`
	AIAnalysis     []byte         `db:"ai_analysis"`
	IsArchived     bool           `db:"is_archived"`
	PublishedDate  time.Time      `db:"published_date"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (t dbTrend) toModel() model.Trend {
	var sourceID *int64
	if t.SourceID.Valid {
		sourceID = lo.ToPtr(t.SourceID.Int64)
	}

	return model.Trend{
		ID:             t.ID,
		Title:          t.Title,
		Summary:        t.Summary,
		Category:       t.Category,
		Impact:         t.Impact,
		RelevanceScore: t.RelevanceScore,
		SourceName:     nullString(t.SourceName),
		SourceIcon:     nullString(t.SourceIcon),
		SourceURL:      nullString(t.SourceURL),
		SourceID:       sourceID,
		Tags:           lo.Ternary(t.Tags == nil, []string{}, []string(t.Tags)),
		RawItemIDs:     lo.Ternary(t.RawItemIDs == nil, []int64{}, []int64(t.RawItemIDs)),
		AIAnalysis:     t.AIAnalysis,
		IsArchived:     t.IsArchived,
		PublishedDate:  t.PublishedDate,
		CreatedAt:      t.CreatedAt,
		Actions:        []model.Action{},
	}
}
