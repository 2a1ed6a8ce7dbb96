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

type ActionPostgresStorage struct {
	db *sqlx.DB
}

func NewActionPostgresStorage(db *sqlx.DB) *ActionPostgresStorage {
	return &ActionPostgresStorage{db: db}
}

const actionColumns = `id, trend_id, text, priority, status, notes, completed_at, created_at`

// Create добавляет действие к тренду в статусе pending
func (s *ActionPostgresStorage) Create(ctx context.Context, action model.Action) (int64, error) {
	priority := lo.Ternary(action.Priority == "", model.ImpactMedium, action.Priority)

	var id int64
	err := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO actions (trend_id, text, priority, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		action.TrendID,
		action.Text,
		priority,
		model.StatusPending,
	).Scan(&id)
	if err != nil {
		return 0, persistErr("insert action", err)
	}

	return id, nil
}

// Actions действия с кратким описанием тренда, новые первыми.
// Пустой status - без фильтра
func (s *ActionPostgresStorage) Actions(ctx context.Context, status string) ([]model.Action, error) {
	query := `SELECT a.id, a.trend_id, a.text, a.priority, a.status, a.notes, a.completed_at, a.created_at,
			t.title AS trend_title, t.category AS trend_category, t.impact AS trend_impact
		FROM actions a
		JOIN trends t ON t.id = a.trend_id`
	var args []any

	if status != "" {
		query += ` WHERE a.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC`

	var rows []dbActionWithTrend
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	return lo.Map(rows, func(row dbActionWithTrend, _ int) model.Action {
		a := row.dbAction.toModel()
		a.Trend = &model.TrendRef{
			ID:       row.TrendID,
			Title:    row.TrendTitle,
			Category: row.TrendCategory,
			Impact:   row.TrendImpact,
		}
		return a
	}), nil
}

// Update меняет статус и заметки действия.
// done выставляет completed_at = now, любой другой статус его сбрасывает
func (s *ActionPostgresStorage) Update(ctx context.Context, id int64, upd model.ActionUpdate, now time.Time) (*model.Action, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, persistErr("update action", err)
	}
	defer tx.Rollback()

	if upd.Status != nil {
		var completedAt *time.Time
		if *upd.Status == model.StatusDone {
			completedAt = &now
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE actions SET status = $1, completed_at = $2 WHERE id = $3`,
			*upd.Status,
			completedAt,
			id,
		); err != nil {
			return nil, persistErr("update action", err)
		}
	}

	if upd.Notes != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE actions SET notes = $1 WHERE id = $2`, *upd.Notes, id); err != nil {
			return nil, persistErr("update action", err)
		}
	}

	var row dbActionWithTrend
	err = tx.GetContext(ctx, &row, `
		SELECT a.id, a.trend_id, a.text, a.priority, a.status, a.notes, a.completed_at, a.created_at,
			t.title AS trend_title, '' AS trend_category, '' AS trend_impact
		FROM actions a
		JOIN trends t ON t.id = a.trend_id
		WHERE a.id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("update action", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, persistErr("update action", err)
	}

	a := row.dbAction.toModel()
	a.Trend = &model.TrendRef{ID: row.TrendID, Title: row.TrendTitle}
	return &a, nil
}

type dbAction struct {
	ID          int64          `db:"id"`
	TrendID     int64          `db:"trend_id"`
	Text        string         `db:"text"`
	Priority    string         `db:"priority"`
	Status      string         `db:"status"`
	Notes       sql.NullString `db:"notes"`
	CompletedAt sql.NullTime   `db:"completed_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (a dbAction) toModel() model.Action {
	return model.Action{
		ID:          a.ID,
		TrendID:     a.TrendID,
		Text:        a.Text,
		Priority:    a.Priority,
		Status:      a.Status,
		Notes:       nullString(a.Notes),
		CompletedAt: nullTime(a.CompletedAt),
		CreatedAt:   a.CreatedAt,
	}
}

type dbActionWithTrend struct {
	dbAction
	TrendTitle    string `db:"trend_title"`
	TrendCategory string `db:"trend_category"`
	TrendImpact   string `db:"trend_impact"`
}
