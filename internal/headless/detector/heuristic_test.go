package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristicShouldPromote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		threshold int
		html      string
		want      bool
	}{
		{name: "empty body", threshold: 100, html: "  ", want: true},
		{name: "next shell", threshold: 100, html: `<div id="__next"></div>`, want: true},
		{name: "script heavy", threshold: 1000, html: `<html><script>var a=1;</script><p>t</p></html>`, want: true},
		{name: "unclosed script", threshold: 1000, html: `<p>x</p><script src="app.js"`, want: true},
		{name: "plain article", threshold: 100, html: "<html><body><p>" + strings.Repeat("本文", 100) + "</p></body></html>", want: false},
		{name: "embedded state wins", threshold: 1000, html: `<div id="root"></div><script>window.__PRELOADED_STATE__ = {}</script>`, want: false},
		{name: "timeline markup wins", threshold: 100, html: `<div id="app"><section class="sn-modTimeLine"></section></div>`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, NewHeuristic(tt.threshold).ShouldPromote(tt.html))
		})
	}
}

func TestNewHeuristicDefaults(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	require.Equal(t, 2048, h.BodyLengthThreshold)
	require.Equal(t, DefaultContentMarkers, h.ContentMarkers)

	custom := NewHeuristic(10, "data-article")
	require.False(t, custom.ShouldPromote(`<div id="root" data-article></div>`))
}
