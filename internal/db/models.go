package db

import "time"

// SeenURL maps gatherer.seen_urls, the cross-run ledger of emitted canonical
// URLs.
type SeenURL struct {
	CanonicalURL string `gorm:"column:canonical_url;type:text;primaryKey"`
	FirstSeen    int64  `gorm:"column:first_seen;type:bigint;not null;index:idx_seen_urls_first_seen"`
}

func (SeenURL) TableName() string { return "gatherer.seen_urls" }

// GatherRun maps gatherer.gather_runs.
type GatherRun struct {
	RunID           int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID         string     `gorm:"column:run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Source          string     `gorm:"column:source;type:text;not null"`
	Query           string     `gorm:"column:query;type:text;not null;default:''"`
	Status          string     `gorm:"column:status;type:text;not null;default:running"`
	ArticlesFetched int        `gorm:"column:articles_fetched;type:integer;not null;default:0"`
	ArticlesNew     int        `gorm:"column:articles_new;type:integer;not null;default:0"`
	Clusters        int        `gorm:"column:clusters;type:integer;not null;default:0"`
	ErrorMessage    *string    `gorm:"column:error_message;type:text"`
	StartedAt       time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt      *time.Time `gorm:"column:finished_at;type:timestamptz"`
}

func (GatherRun) TableName() string { return "gatherer.gather_runs" }

// Story maps gatherer.stories. One row per newly emitted cluster.
type Story struct {
	StoryID         int64     `gorm:"column:story_id;primaryKey;autoIncrement"`
	StoryUUID       string    `gorm:"column:story_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	RunID           *int64    `gorm:"column:run_id;type:bigint"`
	CanonicalURL    string    `gorm:"column:canonical_url;type:text;not null;unique"`
	CanonicalTitle  string    `gorm:"column:canonical_title;type:text;not null"`
	CanonicalDomain string    `gorm:"column:canonical_domain;type:text;not null;default:''"`
	SourceType      string    `gorm:"column:source_type;type:text;not null"`
	EffectiveAt     time.Time `gorm:"column:effective_at;type:timestamptz;not null"`
	MemberCount     int       `gorm:"column:member_count;type:integer;not null;default:1"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Story) TableName() string { return "gatherer.stories" }

// StoryArticle maps gatherer.story_articles.
type StoryArticle struct {
	ArticleID       int64      `gorm:"column:article_id;primaryKey;autoIncrement"`
	StoryID         int64      `gorm:"column:story_id;type:bigint;not null"`
	URL             string     `gorm:"column:url;type:text;not null"`
	CanonicalURL    string     `gorm:"column:canonical_url;type:text;not null"`
	Title           string     `gorm:"column:title;type:text;not null"`
	NormalizedTitle string     `gorm:"column:normalized_title;type:text;not null;default:''"`
	Domain          string     `gorm:"column:domain;type:text;not null;default:''"`
	Language        string     `gorm:"column:language;type:text;not null;default:''"`
	SourceCountry   string     `gorm:"column:source_country;type:text;not null;default:''"`
	SourceType      string     `gorm:"column:source_type;type:text;not null"`
	IsCanonical     bool       `gorm:"column:is_canonical;type:boolean;not null;default:false"`
	SeenAt          *time.Time `gorm:"column:seen_at;type:timestamptz"`
	PublishedAt     *time.Time `gorm:"column:published_at;type:timestamptz"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (StoryArticle) TableName() string { return "gatherer.story_articles" }

func autoMigrateModels() []any {
	return []any{
		&SeenURL{},
		&GatherRun{},
		&Story{},
		&StoryArticle{},
	}
}
