package storage

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "postgres"), mock
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)

	// повторный migrate по живой базе не должен падать
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(line, "CREATE ") {
			assert.Contains(t, line, "IF NOT EXISTS")
		}
	}

	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnError(errors.New("permission denied"))

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db))

	err := Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Equal(t, "migrate: permission denied", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemStorage_StoreCountsOnlyInserted(t *testing.T) {
	db, mock := newMock(t)
	s := NewItemPostgresStorage(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO raw_items"))
	prep.ExpectExec().WithArgs(int64(3), "a", "A", "", "", "", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(int64(3), "b", "B", "", "", "", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := s.Store(context.Background(), 3, []model.Item{
		{ExternalID: "a", Title: "A"},
		{ExternalID: "b", Title: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemStorage_StoreFailureIsPersistenceError(t *testing.T) {
	db, mock := newMock(t)
	s := NewItemPostgresStorage(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO raw_items"))
	prep.ExpectExec().WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := s.Store(context.Background(), 1, []model.Item{{ExternalID: "x"}})

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "store items", perr.Op)
}

func TestItemStorage_ClaimBatch(t *testing.T) {
	db, mock := newMock(t)
	s := NewItemPostgresStorage(db)

	created := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "source_id", "external_id", "title", "content", "url", "author",
		"published_at", "is_processed", "raw_data", "created_at", "source_name", "source_icon",
	}).
		AddRow(12, 3, "e2", "Second", "body", "https://x/2", "", nil, false, []byte(`{}`), created, "HN", "🟠").
		AddRow(11, 3, "e1", "First", "body", "https://x/1", "bob", created, false, []byte(`{}`), created, "HN", "🟠")

	mock.ExpectQuery(regexp.QuoteMeta("WITH claimed AS")).
		WithArgs("claim-1", 50, float64(900)).
		WillReturnRows(rows)

	items, err := s.ClaimBatch(context.Background(), "claim-1", 50, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, int64(12), items[0].ID)
	assert.Nil(t, items[0].PublishedAt)
	assert.Equal(t, "HN", items[0].SourceName)
	require.NotNil(t, items[1].PublishedAt)
	assert.Equal(t, "bob", items[1].Author)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemStorage_MarkProcessedAndRelease(t *testing.T) {
	db, mock := newMock(t)
	s := NewItemPostgresStorage(db)

	mock.ExpectExec(regexp.QuoteMeta("SET is_processed = TRUE")).
		WithArgs(pq.Int64Array{1, 2}).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("SET claim_id = NULL, claimed_at = NULL WHERE id = ANY($1) AND is_processed = FALSE")).
		WithArgs(pq.Int64Array{3}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkProcessed(context.Background(), []int64{1, 2}))
	require.NoError(t, s.ReleaseClaim(context.Background(), []int64{3}))
	require.NoError(t, s.MarkProcessed(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendStorage_TrendsWithActions(t *testing.T) {
	db, mock := newMock(t)
	s := NewTrendPostgresStorage(db)

	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM trends WHERE is_archived = FALSE AND category = $1")).
		WithArgs("LLM", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "summary", "category", "impact", "relevance_score", "source_name", "source_icon",
			"source_url", "source_id", "tags", "raw_item_ids", "ai_analysis", "is_archived", "published_date", "created_at",
		}).AddRow(1, "T", "S", "LLM", "high", 90, "HN", nil, nil, 3, "{ai,llm}", "{11,12}", []byte(`{}`), false, day, day))

	mock.ExpectQuery(regexp.QuoteMeta("FROM actions WHERE trend_id = ANY($1)")).
		WithArgs(pq.Int64Array{1}).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "trend_id", "text", "priority", "status", "notes", "completed_at", "created_at",
		}).AddRow(5, 1, "do it", "high", "pending", nil, nil, day))

	trends, err := s.Trends(context.Background(), model.TrendFilter{Category: "LLM", Limit: 50})
	require.NoError(t, err)
	require.Len(t, trends, 1)

	tr := trends[0]
	assert.Equal(t, []string{"ai", "llm"}, tr.Tags)
	assert.Equal(t, []int64{11, 12}, tr.RawItemIDs)
	require.NotNil(t, tr.SourceName)
	assert.Equal(t, "HN", *tr.SourceName)
	assert.Nil(t, tr.SourceIcon)
	require.Len(t, tr.Actions, 1)
	assert.Equal(t, "do it", tr.Actions[0].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendStorage_AllCategoriesSkipsFilter(t *testing.T) {
	db, mock := newMock(t)
	s := NewTrendPostgresStorage(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM trends WHERE is_archived = FALSE ORDER BY")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	trends, err := s.Trends(context.Background(), model.TrendFilter{Category: "전체", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, trends)
	assert.NotNil(t, trends)
}

func TestTrendStorage_SetArchivedNotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewTrendPostgresStorage(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE trends SET is_archived")).
		WithArgs(true, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetArchived(context.Background(), 99, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActionStorage_UpdateDoneSetsCompletedAt(t *testing.T) {
	db, mock := newMock(t)
	s := NewActionPostgresStorage(db)

	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	status := model.StatusDone
	notes := "shipped"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actions SET status = $1, completed_at = $2")).
		WithArgs("done", now, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actions SET notes = $1")).
		WithArgs("shipped", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "trend_id", "text", "priority", "status", "notes", "completed_at", "created_at",
			"trend_title", "trend_category", "trend_impact",
		}).AddRow(7, 2, "do it", "medium", "done", "shipped", now, now, "Parent", "", ""))
	mock.ExpectCommit()

	a, err := s.Update(context.Background(), 7, model.ActionUpdate{Status: &status, Notes: &notes}, now)
	require.NoError(t, err)

	assert.Equal(t, model.StatusDone, a.Status)
	require.NotNil(t, a.CompletedAt)
	assert.True(t, a.CompletedAt.Equal(now))
	require.NotNil(t, a.Trend)
	assert.Equal(t, model.TrendRef{ID: 2, Title: "Parent"}, *a.Trend)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionStorage_UpdateOtherStatusClearsCompletedAt(t *testing.T) {
	db, mock := newMock(t)
	s := NewActionPostgresStorage(db)

	now := time.Now()
	status := model.StatusInProgress

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actions SET status = $1, completed_at = $2")).
		WithArgs("in_progress", nil, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).
		WithArgs(7).
		WillReturnError(errors.New("sql: no rows in result set"))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), 7, model.ActionUpdate{Status: &status}, now)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionStorage_UpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	s := NewActionPostgresStorage(db)

	notes := "x"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actions SET notes = $1")).
		WithArgs("x", 404).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), 404, model.ActionUpdate{Notes: &notes}, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsStorage_Weekly(t *testing.T) {
	db, mock := newMock(t)
	s := NewStatsPostgresStorage(db)

	weekStart := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AS total_trends")).
		WithArgs("2026-10-19", weekStart).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_trends", "high_impact_count", "total_actions", "completed_actions",
		}).AddRow(6, 2, 10, 4))

	stats, err := s.Weekly(context.Background(), weekStart)
	require.NoError(t, err)

	assert.Equal(t, model.WeeklyStats{
		WeekStart:        "2026-10-19",
		TotalTrends:      6,
		TotalActions:     10,
		CompletedActions: 4,
		HighImpactCount:  2,
		ApplyRate:        40,
	}, stats)
}

func TestCrawlLogStorage_Add(t *testing.T) {
	db, mock := newMock(t)
	s := NewCrawlLogPostgresStorage(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawl_logs")).
		WithArgs("run-1", 3, "success", 4, 3, nil, 120).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Add(context.Background(), model.CrawlLog{
		RunID:      "run-1",
		SourceID:   3,
		Status:     model.CrawlSuccess,
		ItemsFound: 4,
		ItemsNew:   3,
		DurationMs: 120,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
