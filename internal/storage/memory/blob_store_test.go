package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "snapshots/npb/list/abc.html", "text/html", strings.NewReader("<html></html>"))
	require.NoError(t, err)
	require.Equal(t, "memory://snapshots/npb/list/abc.html", uri)
	require.Equal(t, []string{"snapshots/npb/list/abc.html"}, store.Paths())

	got, ok := store.Object("snapshots/npb/list/abc.html")
	require.True(t, ok)
	got[0] = 'X'
	again, _ := store.Object("snapshots/npb/list/abc.html")
	require.Equal(t, "<html></html>", string(again), "Object returns a copy")

	_, ok = store.Object("missing")
	require.False(t, ok)
}
