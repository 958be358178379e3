package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const stateMarker = "__PRELOADED_STATE__"

type preloadedState struct {
	ArticleDetail *articleDetail `json:"articleDetail"`
}

type articleDetail struct {
	Headline   string `json:"headline"`
	CreateDate struct {
		Date string `json:"date"`
		Time string `json:"time"`
	} `json:"createDate"`
	Thumbnail  json.RawMessage   `json:"thumbnail"`
	Images     []json.RawMessage `json:"images"`
	Paragraphs []json.RawMessage `json:"paragraphs"`
	Media      struct {
		MediaName string `json:"mediaName"`
	} `json:"media"`
}

// findPayload locates the embedded state script and decodes its article detail.
// It returns (nil, nil) when the page carries no usable payload.
func findPayload(doc *goquery.Document) (*articleDetail, error) {
	var (
		detail  *articleDetail
		lastErr error
	)
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		body := script.Text()
		if !strings.Contains(body, stateMarker) {
			return true
		}
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return true
		}
		var state preloadedState
		if err := json.Unmarshal([]byte(body[start:end+1]), &state); err != nil {
			lastErr = fmt.Errorf("decode state payload: %w", err)
			return true
		}
		if state.ArticleDetail == nil {
			return true
		}
		detail = state.ArticleDetail
		return false
	})
	if detail != nil {
		return detail, nil
	}
	return nil, lastErr
}

// paragraphTexts accepts paragraphs encoded either as {"text": ...} objects or bare strings.
func (d *articleDetail) paragraphTexts() []string {
	texts := make([]string, 0, len(d.Paragraphs))
	for _, raw := range d.Paragraphs {
		if text := stringOrField(raw, "text"); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func (d *articleDetail) imageURL() string {
	if u := stringOrField(d.Thumbnail, "url"); u != "" {
		return u
	}
	if len(d.Images) > 0 {
		return stringOrField(d.Images[0], "url")
	}
	return ""
}

// stringOrField decodes raw as a JSON string, or as an object and returns its field.
func stringOrField(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if err := json.Unmarshal(obj[field], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
