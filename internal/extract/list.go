package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/normalize"
)

// sectionSpec lists, for each field, the selectors tried in order until one matches.
type sectionSpec struct {
	section    crawler.Section
	containers []string
	items      []string
	links      []string
	titles     []string // empty means the link text is the title
	credits    []string
	times      []string
	backdrops  []string // elements whose inline style may carry a background image
}

var pickupSpec = sectionSpec{
	section:    crawler.SectionPickup,
	containers: []string{".sn-modListPickupAdvanced", ".io-modPickup"},
	items:      []string{".sn-articlePickup", ".io-pickup__item"},
	links:      []string{".sn-articlePickup__title a", ".io-pickup__title a"},
	credits:    []string{".sn-articlePickup__credit", ".io-pickup__caption", ".io-pickup__copyright"},
	backdrops:  []string{`[style*="background"]`},
}

var timelineSpec = sectionSpec{
	section:    crawler.SectionTimeline,
	containers: []string{".sn-modTimeLine"},
	items:      []string{".sn-timeLine__item"},
	links:      []string{".sn-timeLine__itemArticleLink"},
	titles:     []string{".sn-timeLine__itemTitle"},
	credits:    []string{".sn-timeLine__itemCredit"},
	times:      []string{".sn-timeLine__itemTime"},
	backdrops:  []string{".sn-timeLine__itemThumbnail", ".sn-timeLine__itemVideoThumbnailImg"},
}

// ExtractList returns pickup items followed by timeline items. A missing
// section contributes nothing.
func (s *Sportsnavi) ExtractList(page crawler.Page) ([]crawler.RawItem, error) {
	doc, err := parseDocument(page.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse list page: %w", err)
	}
	root := hostRoot(page.URL)
	var items []crawler.RawItem
	for _, sec := range []sectionSpec{pickupSpec, timelineSpec} {
		found := s.extractSection(doc.Selection, sec, root)
		s.logger.Debug("list section extracted",
			zap.String("url", page.URL),
			zap.String("section", string(sec.section)),
			zap.Int("items", len(found)),
		)
		items = append(items, found...)
	}
	return items, nil
}

func (s *Sportsnavi) extractSection(doc *goquery.Selection, sec sectionSpec, root string) []crawler.RawItem {
	container := firstMatch(doc, sec.containers)
	if container == nil {
		s.logger.Debug("list section missing", zap.String("section", string(sec.section)))
		return nil
	}
	container = container.First()
	nodes := firstMatch(container, sec.items)
	if nodes == nil {
		return nil
	}
	var out []crawler.RawItem
	nodes.Each(func(_ int, node *goquery.Selection) {
		item, reason := s.extractItem(node, sec, root)
		if reason != "" {
			s.logger.Debug("list item dropped",
				zap.String("section", string(sec.section)),
				zap.String("reason", reason),
			)
			return
		}
		out = append(out, item)
	})
	return out
}

func (s *Sportsnavi) extractItem(node *goquery.Selection, sec sectionSpec, root string) (crawler.RawItem, string) {
	link := firstMatch(node, sec.links)
	if link == nil {
		return crawler.RawItem{}, "no link"
	}
	link = link.First()
	href := strings.TrimSpace(link.AttrOr("href", ""))
	title := strings.TrimSpace(link.Text())
	if len(sec.titles) > 0 {
		title = firstText(node, sec.titles)
	}
	if title == "" || href == "" {
		return crawler.RawItem{}, fmt.Sprintf("incomplete item title=%q url=%q", title, href)
	}

	item := crawler.RawItem{
		Title:      title,
		URL:        normalize.ResolveURL(href, root),
		ImageURL:   normalize.ResolveURL(s.itemImage(node, sec), root),
		NewsSource: firstText(node, sec.credits),
		Section:    sec.section,
	}
	if text := firstText(node, sec.times); text != "" && s.dates != nil {
		if t, ok := s.dates.Parse(text, s.now()); ok {
			item.PublishedAt = &t
		}
	}
	return item, ""
}

func (s *Sportsnavi) itemImage(node *goquery.Selection, sec sectionSpec) string {
	if img := node.Find("img").First(); img.Length() > 0 {
		if src := imageSource(img); src != "" {
			return src
		}
	}
	for _, sel := range sec.backdrops {
		if src := backgroundImage(node.Find(sel).First()); src != "" {
			return src
		}
	}
	return ""
}
