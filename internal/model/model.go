package model

import (
	"encoding/json"
	"time"
)

// Виды источников
const (
	KindRSS         = "rss"
	KindReddit      = "reddit"
	KindThreads     = "threads"
	KindTwitter     = "twitter"
	KindYouTube     = "youtube"
	KindProductHunt = "producthunt"
)

// Уровни влияния тренда и приоритеты действий
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// Статусы действий
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Статусы записи в журнале сбора
const (
	CrawlSuccess = "success"
	CrawlError   = "error"
	CrawlSkipped = "skipped"
)

// Категория по умолчанию, если модель ее не указала
const CategoryOther = "기타"

// Закрытый набор категорий трендов
var Categories = []string{"LLM", "SEO", "B2B", "챗봇", "개발", "생산성", "마케팅", CategoryOther}

// Настроенный источник контента
type Source struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	// rss, reddit и т.д.
	Kind string `json:"source_type"`
	// Настройки, свои для каждого вида источника
	Config   json.RawMessage `json:"config"`
	IsActive bool            `json:"is_active"`
	// Сколько всего новых записей собрано из источника
	TotalCollected int        `json:"total_collected"`
	LastCrawlAt    *time.Time `json:"last_crawl_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Запись, как ее отдает источник, еще не сохраненная
type Item struct {
	ExternalID  string
	Title       string
	Content     string
	URL         string
	Author      string
	PublishedAt *time.Time
	// Категории из ленты, для reddit - сабреддит
	Categories []string
	// Исходные данные для аудита
	Raw map[string]any
}

// Нормализованная сохраненная запись
type RawItem struct {
	ID          int64           `json:"id"`
	SourceID    int64           `json:"source_id"`
	ExternalID  string          `json:"external_id"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	URL         string          `json:"url"`
	Author      string          `json:"author"`
	PublishedAt *time.Time      `json:"published_at"`
	IsProcessed bool            `json:"is_processed"`
	RawData     json.RawMessage `json:"raw_data"`
	CreatedAt   time.Time       `json:"created_at"`

	// Заполняются при захвате пачки анализатором
	SourceName string `json:"source_name,omitempty"`
	SourceIcon string `json:"source_icon,omitempty"`
}

// Тренд, выделенный моделью из одной или нескольких записей
type Trend struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	Category       string          `json:"category"`
	Impact         string          `json:"impact"`
	RelevanceScore int             `json:"relevance_score"`
	SourceName     *string         `json:"source_name"`
	SourceIcon     *string         `json:"source_icon"`
	SourceURL      *string         `json:"source_url"`
	SourceID       *int64          `json:"source_id"`
	Tags           []string        `json:"tags"`
	RawItemIDs     []int64         `json:"raw_item_ids"`
	AIAnalysis     json.RawMessage `json:"ai_analysis"`
	IsArchived     bool            `json:"is_archived"`
	PublishedDate  time.Time       `json:"published_date"`
	CreatedAt      time.Time       `json:"created_at"`

	Actions []Action `json:"actions"`
}

// Рекомендованное действие по тренду
type Action struct {
	ID          int64      `json:"id"`
	TrendID     int64      `json:"trend_id"`
	Text        string     `json:"text"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Trend *TrendRef `json:"trends,omitempty"`
}

// Краткая ссылка на тренд для списка действий
type TrendRef struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Impact   string `json:"impact,omitempty"`
}

// Строка журнала: одна на пару (запуск, источник)
type CrawlLog struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	SourceID     int64     `json:"source_id"`
	Status       string    `json:"status"`
	ItemsFound   int       `json:"items_found"`
	ItemsNew     int       `json:"items_new"`
	ErrorMessage *string   `json:"error_message"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Источник вместе с последней записью журнала
type SourceWithLog struct {
	Source
	RecentLog *CrawlLog `json:"recent_log"`
}

// Изменения действия из API. nil - поле не трогаем
type ActionUpdate struct {
	Status *string
	Notes  *string
}

// Фильтр списка трендов
type TrendFilter struct {
	Category string
	Impact   string
	Limit    int
}

// Недельная сводка
type WeeklyStats struct {
	WeekStart        string `json:"week_start"`
	TotalTrends      int    `json:"total_trends"`
	TotalActions     int    `json:"total_actions"`
	CompletedActions int    `json:"completed_actions"`
	HighImpactCount  int    `json:"high_impact_count"`
	ApplyRate        int    `json:"apply_rate"`
}
