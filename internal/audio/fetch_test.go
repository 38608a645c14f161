package audio

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

func newClipServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/static/audio/session-1.wav":
			w.Header().Set("Content-Type", "audio/wav")
			w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "clip.wav")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0644))

	f := NewFetcher("http://backend:8000/", time.Second)

	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/a.mp3", "https://cdn.example.com/a.mp3"},
		{"/static/audio/s-1.wav", "http://backend:8000/static/audio/s-1.wav"},
		{"file://" + local, local},
		{local, local},
	}
	for _, tt := range tests {
		got, err := f.Resolve(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := f.Resolve("  ")
	assert.ErrorIs(t, err, ErrNoURL)
	_, err = f.Resolve("ftp://host/clip.wav")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFetchFromBackend(t *testing.T) {
	wav := toneWAV(16000, 100*time.Millisecond, 0.5)
	srv := newClipServer(t, wav)
	f := NewFetcher(srv.URL, time.Second)

	got, err := f.Fetch(context.Background(), "/static/audio/session-1.wav")
	require.NoError(t, err)
	assert.Equal(t, wav, got)

	_, err = f.Fetch(context.Background(), "/static/audio/missing.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchLimitsSize(t *testing.T) {
	srv := newClipServer(t, make([]byte, 2048))
	f := NewFetcher(srv.URL, time.Second)
	f.MaxBytes = 1024

	_, err := f.Fetch(context.Background(), srv.URL+"/static/audio/session-1.wav")
	assert.ErrorIs(t, err, ErrClipTooLarge)
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))

	got, err := NewFetcher("", 0).Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), got)

	_, err = NewFetcher("", 0).Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}
