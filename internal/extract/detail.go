package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/normalize"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

var contentSelectors = []string{
	"article p",
	".article-body p",
	".article-content p",
	".highLightSearchTarget p",
	`[class*="article"] p`,
	`p[class*="sc-"]`,
}

var titleSelectors = []string{"title", `[class*="headline"]`, ".article-title"}

// imageHints identify article imagery among arbitrary page images.
var imageHints = []string{"newsatcl", "amd-img", "news"}

// ExtractDetail builds an article from a detail page. The embedded state
// payload is authoritative when it yields content; otherwise DOM heuristics
// are used. ok is false when neither path finds any content.
func (s *Sportsnavi) ExtractDetail(
	page crawler.Page,
	item crawler.RawItem,
	def source.Definition,
) (crawler.Article, bool, error) {
	doc, err := parseDocument(page.HTML)
	if err != nil {
		return crawler.Article{}, false, &crawler.ParseError{Field: "detail html", Input: page.URL, Err: err}
	}
	logger := s.logger.With(zap.String("url", item.URL), zap.String("source", def.ID))

	detail, err := findPayload(doc)
	switch {
	case err != nil:
		logger.Warn("state payload unusable, falling back to markup", zap.Error(err))
	case detail != nil:
		if article, ok := s.fromPayload(detail, item, def); ok {
			logger.Debug("article extracted from payload", zap.Int("chars", len([]rune(article.Content))))
			return article, true, nil
		}
		logger.Debug("state payload had no content, falling back to markup")
	}

	if article, ok := s.fromMarkup(doc, item, def); ok {
		logger.Debug("article extracted from markup", zap.Int("chars", len([]rune(article.Content))))
		return article, true, nil
	}
	logger.Info("no article content found")
	return crawler.Article{}, false, nil
}

func (s *Sportsnavi) fromPayload(d *articleDetail, item crawler.RawItem, def source.Definition) (crawler.Article, bool) {
	content := s.cleaner.Clean(strings.Join(d.paragraphTexts(), "\n\n"))
	if content == "" {
		return crawler.Article{}, false
	}
	title := strings.TrimSpace(d.Headline)
	if title == "" {
		title = item.Title
	}

	published := s.fallbackPublished(item)
	if d.CreateDate.Date != "" && s.dates != nil {
		if t, ok := s.dates.Parse(strings.TrimSpace(d.CreateDate.Date+" "+d.CreateDate.Time), s.now()); ok {
			published = t
		}
	}

	image := item.ImageURL
	if image == "" {
		image = normalize.ResolveURL(d.imageURL(), item.URL)
	}
	newsSource := item.NewsSource
	if d.Media.MediaName != "" {
		newsSource = d.Media.MediaName
	}
	return s.article(item, def, title, content, published, image, newsSource), true
}

func (s *Sportsnavi) fromMarkup(doc *goquery.Document, item crawler.RawItem, def source.Definition) (crawler.Article, bool) {
	var parts []string
	if paragraphs := firstMatch(doc.Selection, contentSelectors); paragraphs != nil {
		paragraphs.Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				parts = append(parts, text)
			}
		})
	}
	content := s.cleaner.Clean(strings.Join(parts, "\n\n"))
	if content == "" {
		return crawler.Article{}, false
	}

	image := item.ImageURL
	if image == "" {
		image = markupImage(doc)
	}
	image = normalize.ResolveURL(image, item.URL)
	return s.article(item, def, s.markupTitle(doc, item.Title), content, s.fallbackPublished(item), image, item.NewsSource), true
}

// markupTitle skips the site-branding h1 that precedes the real headline.
func (s *Sportsnavi) markupTitle(doc *goquery.Document, fallback string) string {
	title := fallback
	h1 := doc.Find("h1")
	switch {
	case h1.Length() >= 2:
		title = strings.TrimSpace(h1.Eq(1).Text())
	case h1.Length() == 1:
		if text := strings.TrimSpace(h1.Text()); text != s.brand {
			title = text
		}
	}
	if title != "" && title != s.brand {
		return title
	}
	for _, sel := range titleSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if sel == "title" {
			text, _, _ = strings.Cut(text, " - "+s.brand)
			text, _, _ = strings.Cut(text, "（")
			text = strings.TrimSpace(text)
		}
		if text != "" && text != s.brand {
			return text
		}
	}
	return fallback
}

func markupImage(doc *goquery.Document) string {
	if src := imageSource(doc.Find("article img").First()); src != "" {
		return src
	}
	var found string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := imageSource(img)
		for _, hint := range imageHints {
			if src != "" && strings.Contains(src, hint) {
				found = src
				return false
			}
		}
		return true
	})
	return found
}

func (s *Sportsnavi) fallbackPublished(item crawler.RawItem) time.Time {
	if item.PublishedAt != nil {
		return *item.PublishedAt
	}
	return s.now()
}

func (s *Sportsnavi) article(
	item crawler.RawItem,
	def source.Definition,
	title, content string,
	published time.Time,
	image, newsSource string,
) crawler.Article {
	return crawler.Article{
		URL:         item.URL,
		Title:       title,
		Content:     content,
		Description: normalize.Describe(content),
		PublishedAt: published,
		ImageURL:    image,
		Category:    def.CategoryLabel,
		Source:      def.ID,
		NewsSource:  newsSource,
	}
}

func (s *Sportsnavi) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
