package crawler

import "time"

// Section names the list region an item was discovered in.
type Section string

// Known list sections.
const (
	SectionPickup   Section = "pickup"
	SectionTimeline Section = "timeline"
)

// RawItem is a candidate article scraped from a list page. Title and URL are
// always populated; PublishedAt is nil when the list markup carries no date.
type RawItem struct {
	Title       string
	URL         string
	ImageURL    string
	NewsSource  string
	PublishedAt *time.Time
	Section     Section
}

// Page is a fetched document together with the URL it was loaded from.
type Page struct {
	URL  string
	HTML string
}

// Article is the canonical record persisted by the ingestion layer. URL is the
// natural key.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    string    `json:"category"`
	Reporter    *string   `json:"reporter,omitempty"`
	Source      string    `json:"source"`
	NewsSource  string    `json:"news_source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CrawlJob describes one crawl of one source. Nil bounds are open; date
// bounds are inclusive whole days.
type CrawlJob struct {
	SourceID  string     `json:"source_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	MaxPages  *int       `json:"max_pages,omitempty"`
}

// OutcomeStatus reports how a single source fared.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// CrawlOutcome is the per-source result of a coordinator run.
type CrawlOutcome struct {
	SourceID     string        `json:"source_id"`
	Status       OutcomeStatus `json:"status"`
	ArticleCount int           `json:"article_count"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Skipped      int           `json:"skipped"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// IngestResult counts the effect of an upsert. Inserted and Updated are
// approximate when rows race with other writers.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Add merges other into r.
func (r *IngestResult) Add(other IngestResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
}

// Mode selects how the coordinator schedules sources.
type Mode string

// Execution modes.
const (
	ModeConcurrent Mode = "concurrent"
	ModeSequential Mode = "sequential"
)

// RunReport aggregates the outcomes of one coordinator run.
type RunReport struct {
	RunID         string         `json:"run_id"`
	Mode          Mode           `json:"mode"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Outcomes      []CrawlOutcome `json:"outcomes"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	TotalArticles int            `json:"total_articles"`
}

// Outcome returns the outcome recorded for sourceID.
func (r RunReport) Outcome(sourceID string) (CrawlOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.SourceID == sourceID {
			return o, true
		}
	}
	return CrawlOutcome{}, false
}
