// Package progress streams crawl run milestones to pluggable sinks. Emit never
// blocks the crawl; a background goroutine batches events and fans them out.
package progress
