package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

// JobRequest selects sources and shared bounds for one run.
type JobRequest struct {
	// SourceIDs lists the sources to crawl. Empty means every registered source.
	SourceIDs []string
	StartDate *time.Time
	EndDate   *time.Time
	MaxPages  *int
}

// BuildJobs expands req into one CrawlJob per source, in request order, or in
// ID order when no sources are named. Unknown and repeated IDs are rejected.
func BuildJobs(registry *source.Registry, req JobRequest) ([]crawler.CrawlJob, error) {
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			req.EndDate.Format(time.DateOnly), req.StartDate.Format(time.DateOnly))
	}
	if req.MaxPages != nil && *req.MaxPages < 0 {
		return nil, fmt.Errorf("max pages must be >= 0, got %d", *req.MaxPages)
	}

	ids := req.SourceIDs
	if len(ids) == 0 {
		ids = registry.IDs()
	}
	seen := make(map[string]bool, len(ids))
	var unknown []string
	jobs := make([]crawler.CrawlJob, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := registry.Lookup(id); !ok {
			unknown = append(unknown, id)
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("source %q requested twice", id)
		}
		seen[id] = true
		jobs = append(jobs, crawler.CrawlJob{
			SourceID:  id,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			MaxPages:  req.MaxPages,
		})
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", crawler.ErrUnknownSource, strings.Join(unknown, ", "))
	}
	return jobs, nil
}
