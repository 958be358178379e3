package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

var npbDef = source.Definition{
	ID:                "npb",
	BaseURL:           "https://baseball.yahoo.co.jp/npb/",
	CategoryLabel:     "NPB",
	RequiresScripting: true,
}

const payloadHTML = `<html><head><title>ignored</title>
<script>window.__PRELOADED_STATE__ = {"articleDetail":{"headline":"ペイロード見出し",
"createDate":{"date":"2025/11/4","time":"11:56"},
"thumbnail":{"url":"https://amd-img.example/thumb.jpg"},
"media":{"mediaName":"デイリースポーツ"},
"paragraphs":[{"text":"第一段落です。"},"第二段落です。",{"other":"x"},{"text":"第一段落です。"}]}};</script>
</head><body><h1>Yahoo!ニュース</h1><h1>マークアップ見出し</h1><article><p>markup body</p></article></body></html>`

func TestExtractDetailPrefersPayload(t *testing.T) {
	t.Parallel()

	item := crawler.RawItem{Title: "一覧の見出し", URL: "https://news.yahoo.co.jp/articles/aaa", NewsSource: "一覧"}
	article, ok, err := newTestExtractor().ExtractDetail(crawler.Page{URL: item.URL, HTML: payloadHTML}, item, npbDef)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, item.URL, article.URL)
	require.Equal(t, "ペイロード見出し", article.Title)
	require.Equal(t, "第一段落です。\n第二段落です。", article.Content)
	require.Equal(t, article.Content, article.Description)
	require.True(t, time.Date(2025, 11, 4, 11, 56, 0, 0, jst).Equal(article.PublishedAt))
	require.Equal(t, "https://amd-img.example/thumb.jpg", article.ImageURL)
	require.Equal(t, "デイリースポーツ", article.NewsSource)
	require.Equal(t, "NPB", article.Category)
	require.Equal(t, "npb", article.Source)
	require.Nil(t, article.Reporter)
}

func TestExtractDetailPayloadImagesAndDateFallback(t *testing.T) {
	t.Parallel()

	html := `<script>__PRELOADED_STATE__={"articleDetail":{"images":["https://amd-img.example/first.jpg"],
"createDate":{"date":"bad","time":"bad"},"paragraphs":["本文"]}}</script>`
	listed := time.Date(2025, 11, 1, 8, 0, 0, 0, jst)
	item := crawler.RawItem{Title: "一覧の見出し", URL: "https://news.yahoo.co.jp/articles/bbb", PublishedAt: &listed}

	article, ok, err := newTestExtractor().ExtractDetail(crawler.Page{URL: item.URL, HTML: html}, item, npbDef)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "一覧の見出し", article.Title, "missing headline keeps the list title")
	require.Equal(t, "https://amd-img.example/first.jpg", article.ImageURL)
	require.True(t, listed.Equal(article.PublishedAt))
}

func TestExtractDetailPayloadGeneralDateLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		createDate string
		want       time.Time
	}{
		{name: "iso with time", createDate: `{"date":"2025-11-04","time":"11:56"}`, want: time.Date(2025, 11, 4, 11, 56, 0, 0, jst)},
		{name: "iso date only", createDate: `{"date":"2025-11-04"}`, want: time.Date(2025, 11, 4, 0, 0, 0, 0, jst)},
		{name: "english month", createDate: `{"date":"Nov 4, 2025"}`, want: time.Date(2025, 11, 4, 0, 0, 0, 0, jst)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			html := `<script>__PRELOADED_STATE__={"articleDetail":{"createDate":` + tt.createDate + `,"paragraphs":["本文"]}}</script>`
			item := crawler.RawItem{Title: "見出し", URL: "https://news.yahoo.co.jp/articles/ccc"}
			article, ok, err := newTestExtractor().ExtractDetail(crawler.Page{URL: item.URL, HTML: html}, item, npbDef)
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, tt.want.Equal(article.PublishedAt), "got %v", article.PublishedAt)
		})
	}
}

func TestExtractDetailFallsBackToMarkup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
	}{
		{
			name: "malformed payload",
			html: `<script>__PRELOADED_STATE__ = {"articleDetail": {broken</script>`,
		},
		{
			name: "payload without content",
			html: `<script>__PRELOADED_STATE__ = {"articleDetail":{"headline":"x","paragraphs":[]}}</script>`,
		},
		{name: "no payload", html: ""},
	}
	body := `<h1>Yahoo!ニュース</h1><h1>マークアップ見出し</h1>
<article><img src="https://newsatcl-pctr.example/a.jpg"><p>一段落目</p><p> </p><p>二段落目</p><p>點我下載APP</p></article>`
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			item := crawler.RawItem{Title: "一覧の見出し", URL: "https://news.yahoo.co.jp/articles/ccc", NewsSource: "共同通信"}
			fallbackNow := time.Date(2025, 11, 10, 9, 0, 0, 0, jst)
			article, ok, err := newTestExtractor().ExtractDetail(
				crawler.Page{URL: item.URL, HTML: "<html><head>" + tt.html + "</head><body>" + body + "</body></html>"},
				item, npbDef)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "マークアップ見出し", article.Title)
			require.Equal(t, "一段落目\n二段落目", article.Content)
			require.Equal(t, "https://newsatcl-pctr.example/a.jpg", article.ImageURL)
			require.Equal(t, "共同通信", article.NewsSource)
			require.True(t, fallbackNow.Equal(article.PublishedAt), "unknown dates fall back to the fetch time")
		})
	}
}

func TestExtractDetailTitleCascade(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>本当の見出し（共同通信） - Yahoo!ニュース</title></head>
<body><h1>Yahoo!ニュース</h1><div class="article-body"><p>本文</p></div></body></html>`
	item := crawler.RawItem{Title: "", URL: "https://news.yahoo.co.jp/articles/ddd"}
	article, ok, err := newTestExtractor().ExtractDetail(crawler.Page{URL: item.URL, HTML: html}, item, npbDef)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "本当の見出し", article.Title)
	require.Equal(t, "本文", article.Content)
}

func TestExtractDetailNoContent(t *testing.T) {
	t.Parallel()

	item := crawler.RawItem{Title: "t", URL: "https://news.yahoo.co.jp/articles/eee"}
	_, ok, err := newTestExtractor().ExtractDetail(
		crawler.Page{URL: item.URL, HTML: `<html><body><h1>x</h1><div>no paragraphs</div></body></html>`}, item, npbDef)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExtractDetailLongDescription(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("長", 250)
	html := `<script>__PRELOADED_STATE__={"articleDetail":{"paragraphs":["` + long + `"]}}</script>`
	item := crawler.RawItem{Title: "t", URL: "https://news.yahoo.co.jp/articles/fff"}
	article, ok, err := newTestExtractor().ExtractDetail(crawler.Page{URL: item.URL, HTML: html}, item, npbDef)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, strings.Repeat("長", 200)+"...", article.Description)
}
