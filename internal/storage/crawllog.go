package storage

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

type CrawlLogPostgresStorage struct {
	db *sqlx.DB
}

func NewCrawlLogPostgresStorage(db *sqlx.DB) *CrawlLogPostgresStorage {
	return &CrawlLogPostgresStorage{db: db}
}

// Add дописывает строку журнала сбора, журнал только растет
func (s *CrawlLogPostgresStorage) Add(ctx context.Context, log model.CrawlLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO crawl_logs (run_id, source_id, status, items_found, items_new, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.RunID,
		log.SourceID,
		log.Status,
		log.ItemsFound,
		log.ItemsNew,
		log.ErrorMessage,
		log.DurationMs,
	)
	return persistErr("insert crawl log", err)
}
