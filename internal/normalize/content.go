package normalize

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// DescriptionLimit is the number of characters kept in a description.
const DescriptionLimit = 200

// DefaultAdStrings are promotional phrases stripped from article bodies.
var DefaultAdStrings = []string{
	"不用抽 不用搶 現在用APP看新聞 保證天天中獎",
	"點我下載APP",
	"按我看活動辦法",
	"請繼續往下閱讀...",
	"Subscribe to our Telegram channel",
	"Click to subscribe",
	"Follow us on",
	"For the latest property news",
}

// Cleaner strips ads and redundant whitespace from article text.
type Cleaner struct {
	ads []string
}

// NewCleaner returns a cleaner removing DefaultAdStrings plus extra.
func NewCleaner(extra []string) *Cleaner {
	ads := make([]string, 0, len(DefaultAdStrings)+len(extra))
	ads = append(ads, DefaultAdStrings...)
	for _, ad := range extra {
		if strings.TrimSpace(ad) != "" {
			ads = append(ads, ad)
		}
	}
	return &Cleaner{ads: ads}
}

// Clean returns content with ads removed, each line whitespace-collapsed and
// trimmed, empty and repeated lines dropped, joined by newlines. Clean is
// idempotent.
func (c *Cleaner) Clean(content string) string {
	out := content
	// Removing an ad or collapsing spaces can expose a new match, so repeat
	// until a pass changes nothing.
	for {
		next := c.cleanOnce(out)
		if next == out {
			return next
		}
		out = next
	}
}

func (c *Cleaner) cleanOnce(content string) string {
	s := content
	for _, ad := range c.ads {
		s = strings.ReplaceAll(s, ad, "")
	}
	lines := strings.Split(s, "\n")
	seen := make(map[string]struct{}, len(lines))
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Describe returns the first DescriptionLimit characters of content, with
// "..." appended when truncated.
func Describe(content string) string {
	if utf8.RuneCountInString(content) <= DescriptionLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:DescriptionLimit]) + "..."
}

// ResolveURL makes raw absolute against base. Protocol-relative URLs get
// https. Unparseable input is returned trimmed but otherwise untouched.
func ResolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return raw
	}
	return baseURL.ResolveReference(ref).String()
}
