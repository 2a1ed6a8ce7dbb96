package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type ItemPostgresStorage struct {
	db *sqlx.DB
}

func NewItemPostgresStorage(db *sqlx.DB) *ItemPostgresStorage {
	return &ItemPostgresStorage{db: db}
}

// Store сохраняет записи источника одной транзакцией.
// Уже известные (source_id, external_id) молча пропускаются, возвращается число новых
func (s *ItemPostgresStorage) Store(ctx context.Context, sourceID int64, items []model.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, persistErr("store items", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO raw_items (source_id, external_id, title, content, url, author, published_at, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id, external_id) DO NOTHING`)
	if err != nil {
		return 0, persistErr("store items", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		raw, err := json.Marshal(item.Raw)
		if err != nil {
			return 0, persistErr("store items", err)
		}

		res, err := stmt.ExecContext(
			ctx,
			sourceID,
			item.ExternalID,
			item.Title,
			item.Content,
			item.URL,
			item.Author,
			item.PublishedAt,
			raw,
		)
		if err != nil {
			return 0, persistErr("store items", err)
		}

		// При конфликте строка не вставляется и affected = 0
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, persistErr("store items", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, persistErr("store items", err)
	}

	return inserted, nil
}

// ClaimBatch одним запросом захватывает до limit необработанных записей, самые свежие первыми.
// Записи с активным захватом другого запуска не трогаются, просроченный захват (старше ttl) перехватывается
func (s *ItemPostgresStorage) ClaimBatch(ctx context.Context, claimID string, limit int, ttl time.Duration) ([]model.RawItem, error) {
	var items []dbRawItem
	err := s.db.SelectContext(ctx, &items, `
		WITH claimed AS (
			UPDATE raw_items SET claim_id = $1, claimed_at = now()
			WHERE id IN (
				SELECT id FROM raw_items
				WHERE is_processed = FALSE
					AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $3))
				ORDER BY created_at DESC, id DESC
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, source_id, external_id, title, content, url, author,
				published_at, is_processed, raw_data, created_at
		)
		SELECT c.*, COALESCE(s.name, '') AS source_name, COALESCE(s.icon, '') AS source_icon
		FROM claimed c
		LEFT JOIN crawl_sources s ON s.id = c.source_id
		ORDER BY c.created_at DESC, c.id DESC`,
		claimID,
		limit,
		ttl.Seconds(),
	)
	if err != nil {
		return nil, err
	}

	return lo.Map(items, func(item dbRawItem, _ int) model.RawItem {
		return item.toModel()
	}), nil
}

// MarkProcessed помечает записи обработанными навсегда
func (s *ItemPostgresStorage) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE raw_items SET is_processed = TRUE, claim_id = NULL, claimed_at = NULL WHERE id = ANY($1)`,
		pq.Int64Array(ids),
	)
	return persistErr("mark items processed", err)
}

// ReleaseClaim снимает захват, записи снова доступны следующему запуску
func (s *ItemPostgresStorage) ReleaseClaim(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE raw_items SET claim_id = NULL, claimed_at = NULL WHERE id = ANY($1) AND is_processed = FALSE`,
		pq.Int64Array(ids),
	)
	return persistErr("release claim", err)
}

type dbRawItem struct {
	ID          int64        `db:"id"`
	SourceID    int64        `db:"source_id"`
	ExternalID  string       `db:"external_id"`
	Title       string       `db:"title"`
	Content     string       `db:"content"`
	URL         string       `db:"url"`
	Author      string       `db:"author"`
	PublishedAt sql.NullTime `db:"published_at"`
	IsProcessed bool         `db:"is_processed"`
	RawData     []byte       `db:"raw_data"`
	CreatedAt   time.Time    `db:"created_at"`
	SourceName  string       `db:"source_name"`
	SourceIcon  string       `db:"source_icon"`
}

func (i dbRawItem) toModel() model.RawItem {
	return model.RawItem{
		ID:          i.ID,
		SourceID:    i.SourceID,
		ExternalID:  i.ExternalID,
		Title:       i.Title,
		Content:     i.Content,
		URL:         i.URL,
		Author:      i.Author,
		PublishedAt: nullTime(i.PublishedAt),
		IsProcessed: i.IsProcessed,
		RawData:     i.RawData,
		CreatedAt:   i.CreatedAt,
		SourceName:  i.SourceName,
		SourceIcon:  i.SourceIcon,
	}
}
