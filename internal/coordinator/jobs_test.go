package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

func testRegistry(t *testing.T) *source.Registry {
	t.Helper()
	reg, err := source.NewRegistry([]source.Definition{
		{ID: "npb", BaseURL: "https://baseball.example.jp/npb/", CategoryLabel: "NPB"},
		{ID: "mlb", BaseURL: "https://baseball.example.jp/mlb/", CategoryLabel: "MLB"},
		{ID: "golf", BaseURL: "https://golf.example.jp/news/", CategoryLabel: "ゴルフ"},
	})
	require.NoError(t, err)
	return reg
}

func TestBuildJobs(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	pages := 2

	tests := []struct {
		name    string
		req     JobRequest
		wantIDs []string
		wantErr error
		errText string
	}{
		{name: "all sources", req: JobRequest{}, wantIDs: []string{"golf", "mlb", "npb"}},
		{name: "named sources keep order", req: JobRequest{SourceIDs: []string{"npb", " golf"}}, wantIDs: []string{"npb", "golf"}},
		{name: "bounds carried", req: JobRequest{SourceIDs: []string{"mlb"}, StartDate: &start, EndDate: &end, MaxPages: &pages}, wantIDs: []string{"mlb"}},
		{name: "unknown source", req: JobRequest{SourceIDs: []string{"npb", "cricket"}}, wantErr: crawler.ErrUnknownSource, errText: "cricket"},
		{name: "duplicate source", req: JobRequest{SourceIDs: []string{"npb", "npb"}}, errText: "requested twice"},
		{name: "inverted window", req: JobRequest{StartDate: &end, EndDate: &start}, errText: "before start date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jobs, err := BuildJobs(testRegistry(t), tt.req)
			if tt.errText != "" {
				require.ErrorContains(t, err, tt.errText)
				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			ids := make([]string, len(jobs))
			for i, j := range jobs {
				ids[i] = j.SourceID
				require.Equal(t, tt.req.StartDate, j.StartDate)
				require.Equal(t, tt.req.EndDate, j.EndDate)
				require.Equal(t, tt.req.MaxPages, j.MaxPages)
			}
			require.Equal(t, tt.wantIDs, ids)
		})
	}
}
