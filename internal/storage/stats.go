package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type StatsPostgresStorage struct {
	db *sqlx.DB
}

func NewStatsPostgresStorage(db *sqlx.DB) *StatsPostgresStorage {
	return &StatsPostgresStorage{db: db}
}

// Weekly сводка с начала недели weekStart (полночь понедельника)
func (s *StatsPostgresStorage) Weekly(ctx context.Context, weekStart time.Time) (model.WeeklyStats, error) {
	var row struct {
		TotalTrends      int `db:"total_trends"`
		HighImpactCount  int `db:"high_impact_count"`
		TotalActions     int `db:"total_actions"`
		CompletedActions int `db:"completed_actions"`
	}

	day := weekStart.Format(time.DateOnly)
	err := s.db.GetContext(ctx, &row, `
		SELECT
			(SELECT count(*) FROM trends WHERE published_date >= $1::date) AS total_trends,
			(SELECT count(*) FROM trends WHERE published_date >= $1::date AND impact = 'high') AS high_impact_count,
			(SELECT count(*) FROM actions WHERE created_at >= $2) AS total_actions,
			(SELECT count(*) FROM actions WHERE created_at >= $2 AND status = 'done') AS completed_actions`,
		day,
		weekStart,
	)
	if err != nil {
		return model.WeeklyStats{}, err
	}

	return model.WeeklyStats{
		WeekStart:        day,
		TotalTrends:      row.TotalTrends,
		TotalActions:     row.TotalActions,
		CompletedActions: row.CompletedActions,
		HighImpactCount:  row.HighImpactCount,
		ApplyRate:        model.ApplyRate(row.CompletedActions, row.TotalActions),
	}, nil
}
