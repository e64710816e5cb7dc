package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc.psd":
			w.Write([]byte("8BPS-data"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		default:
			http.Error(w, "nothing here", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewFetcher(50 * time.Millisecond)
	buf, err := f.Fetch(context.Background(), srv.URL+"/doc.psd")
	require.NoError(t, err)
	assert.Equal(t, "8BPS-data", string(buf))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.psd")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.Status)
	assert.ErrorIs(t, err, ErrFetch)

	_, err = f.Fetch(context.Background(), srv.URL+"/slow")
	assert.ErrorIs(t, err, ErrFetch)

	f.MaxSize = 4
	_, err = f.Fetch(context.Background(), srv.URL+"/doc.psd")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.psd")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	for _, locator := range []string{path, "file://" + path} {
		buf, err := Open(context.Background(), locator)
		require.NoError(t, err, locator)
		assert.Equal(t, "local", string(buf), locator)
	}

	_, err := Open(context.Background(), filepath.Join(dir, "absent.psd"))
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Open(context.Background(), " ")
	assert.ErrorIs(t, err, ErrFetch)
}
