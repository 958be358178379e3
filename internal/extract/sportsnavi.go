// Package extract parses list and article pages into crawler records.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/normalize"
)

const defaultBrandTitle = "Yahoo!ニュース"

var backgroundURL = regexp.MustCompile(`url\(["']?([^"')]+)["']?\)`)

// Sportsnavi extracts the markup family shared by every built-in source.
type Sportsnavi struct {
	dates   *normalize.DateParser
	cleaner *normalize.Cleaner
	clock   crawler.Clock
	logger  *zap.Logger
	brand   string
}

// Option customizes a Sportsnavi extractor.
type Option func(*Sportsnavi)

// WithBrandTitle overrides the site-branding headline ignored during title fallback.
func WithBrandTitle(brand string) Option {
	return func(s *Sportsnavi) {
		if brand != "" {
			s.brand = brand
		}
	}
}

// NewSportsnavi builds the extractor.
func NewSportsnavi(
	dates *normalize.DateParser,
	cleaner *normalize.Cleaner,
	clock crawler.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Sportsnavi {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sportsnavi{
		dates:   dates,
		cleaner: cleaner,
		clock:   clock,
		logger:  logger.Named("extract"),
		brand:   defaultBrandTitle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ crawler.Extractor = (*Sportsnavi)(nil)

func parseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// firstMatch returns the first selector in order that matches under root.
func firstMatch(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func firstText(root *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(root.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func imageSource(img *goquery.Selection) string {
	if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
		return src
	}
	return strings.TrimSpace(img.AttrOr("data-src", ""))
}

func backgroundImage(sel *goquery.Selection) string {
	style, ok := sel.Attr("style")
	if !ok {
		return ""
	}
	if m := backgroundURL.FindStringSubmatch(style); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// hostRoot returns scheme://host/ for pageURL; relative links resolve against the site root.
func hostRoot(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return pageURL
	}
	return u.Scheme + "://" + u.Host + "/"
}
