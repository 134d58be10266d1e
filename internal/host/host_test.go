package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamsave/streamsave-go/internal/models"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "clean", input: "My Video", want: "My Video"},
		{name: "all reserved", input: `a\b/c:d*e?f"g<h>i|j`, want: "a_b_c_d_e_f_g_h_i_j"},
		{name: "control characters", input: "tab\there\n", want: "tabhere"},
		{name: "empty", input: "   ", want: "video"},
		{name: "only reserved", input: "???", want: "___"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("é", 150)
	got := SanitizeFilename(long)
	assert.LessOrEqual(t, len(got), maxFilenameLen)
	assert.True(t, strings.HasPrefix(long, got))
}

func TestDownloadFilename(t *testing.T) {
	assert.Equal(t, "AC_DC - Live.mp4", DownloadFilename("AC/DC - Live", "mp4"))
	assert.Equal(t, "song.mp3", DownloadFilename("song", ".mp3"))
	assert.Equal(t, "clip", DownloadFilename("clip", ""))
}

func TestMemoryBadge(t *testing.T) {
	b := NewMemoryBadge()
	b.SetBadge(1, "✓")
	assert.Equal(t, "✓", b.Badge(1))
	b.SetBadge(1, "")
	assert.Equal(t, "", b.Badge(1))
}

func TestFileDownloader_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	d := NewFileDownloader(fs, "/downloads", srv.Client())
	ctx := context.Background()

	id, err := d.Download(ctx, DownloadRequest{URL: srv.URL + "/v.mp4", Filename: "clip.mp4"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	data, err := afero.ReadFile(fs, filepath.Join("/downloads", "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	id2, err := d.Download(ctx, DownloadRequest{URL: srv.URL + "/v.mp4", Filename: "clip.mp4"})
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
	exists, err := afero.Exists(fs, filepath.Join("/downloads", "clip (1).mp4"))
	require.NoError(t, err)
	assert.True(t, exists, "existing files are not overwritten")

	partials, err := afero.Glob(fs, "/downloads/*.part")
	require.NoError(t, err)
	assert.Empty(t, partials)
	assert.Equal(t, "/downloads", d.Folder())
}

func TestFileDownloader_Rejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	d := NewFileDownloader(fs, "/downloads", srv.Client())

	tests := []struct {
		name string
		url  string
	}{
		{name: "blob url", url: "blob:https://example.com/1"},
		{name: "garbage", url: "::::"},
		{name: "forbidden", url: srv.URL + "/v.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Download(context.Background(), DownloadRequest{URL: tt.url, Filename: "x.mp4"})
			require.Error(t, err)
			assert.Equal(t, models.ErrDownloadRejected, models.KindOf(err))
		})
	}

	files, err := afero.Glob(fs, "/downloads/*")
	require.NoError(t, err)
	assert.Empty(t, files)
}
