// Package crawler defines the shared records, capability interfaces, error
// taxonomy, and retry policy used across the harvest pipeline: sessions fetch
// pages, extractors turn markup into articles, and stores persist them.
package crawler
