package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamsave/streamsave-go/internal/models"
)

var fixedNow = time.UnixMilli(1700000000000)

func newTestPage(t *testing.T, rawURL, html string, media MediaState) *Page {
	t.Helper()
	p, err := NewPage(rawURL, strings.NewReader(html), media)
	require.NoError(t, err)
	p.Now = func() time.Time { return fixedNow }
	return p
}

func TestScan_YouTubeWatchPage(t *testing.T) {
	html := `<html><head><title>Never Gonna Give You Up - YouTube</title></head><body>
		<h1 class="ytd-watch-metadata"><yt-formatted-string>Never Gonna Give You Up (Official Video)</yt-formatted-string></h1>
		<video src="https://rr1.googlevideo.com/videoplayback?id=1"></video>
	</body></html>`
	p := newTestPage(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", html,
		StaticMedia{Durations: map[int]float64{0: 213.4}})

	got := New().Scan(p)

	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, models.PlatformYouTube, c.Platform)
	assert.Equal(t, "youtube_dQw4w9WgXcQ", c.ID)
	assert.Equal(t, "Never Gonna Give You Up (Official Video)", c.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", c.SourceURL)
	assert.Equal(t, "03:33", c.DurationLabel)
	assert.Equal(t, "Auto", c.QualityLabel)
	assert.Equal(t, []string{"Auto", "1080p", "720p", "480p", "360p"}, c.QualityOptions)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", c.ThumbnailRef)
}

func TestScan_YouTubeAlternateURLShapes(t *testing.T) {
	html := `<html><head><title>Never Gonna Give You Up - YouTube</title></head><body>
		<video src="https://rr1.googlevideo.com/videoplayback?id=1"></video>
	</body></html>`

	for _, rawURL := range []string{
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
	} {
		t.Run(rawURL, func(t *testing.T) {
			p := newTestPage(t, rawURL, html, StaticMedia{Durations: map[int]float64{0: 213.4}})

			got := New().Scan(p)

			require.Len(t, got, 1)
			assert.Equal(t, models.PlatformYouTube, got[0].Platform)
			assert.Equal(t, "youtube_dQw4w9WgXcQ", got[0].ID)
		})
	}
}

func TestScan_YouTubeTitleFallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "heading equal to document title is rejected",
			html: `<title>Same</title><div id="container"><h1>Same</h1></div><meta property="og:title" content="From OG">`,
			want: "From OG",
		},
		{
			name: "meta title",
			html: `<title>Doc - YouTube</title><meta name="title" content="From Meta">`,
			want: "From Meta",
		},
		{
			name: "document title without suffix",
			html: `<title>Just The Doc - YouTube</title>`,
			want: "Just The Doc",
		},
		{
			name: "placeholder",
			html: `<p>nothing</p>`,
			want: "YouTube Video",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPage(t, "https://www.youtube.com/shorts/abc-_DEF123", tt.html, nil)
			got := New().Scan(p)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Title)
			assert.Equal(t, "youtube_abc-_DEF123", got[0].ID)
		})
	}
}

func TestScan_YouTubeDurationFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		media MediaState
		want  string
	}{
		{name: "long media", html: `<video></video>`, media: StaticMedia{Durations: map[int]float64{0: 3725}}, want: "62:05"},
		{name: "player label", html: `<span class="ytp-time-duration">1:02:05</span>`, want: "1:02:05"},
		{name: "itemprop", html: `<meta itemprop="duration" content="PT4M13S">`, want: "04:13"},
		{name: "unknown", html: `<video></video>`, media: StaticMedia{Durations: map[int]float64{0: 0}}, want: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPage(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", tt.html, tt.media)
			got := New().Scan(p)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].DurationLabel)
		})
	}
}

func TestScan_YouTubeWithoutVideoID(t *testing.T) {
	html := `<title>Home</title><video src="https://cdn.example.com/a.mp4"></video>`

	// Watch path without an id yields nothing at all.
	p := newTestPage(t, "https://www.youtube.com/watch", html, nil)
	assert.Empty(t, New().Scan(p))

	// Non-video-bearing YouTube paths fall through to generic detection.
	p = newTestPage(t, "https://www.youtube.com/", html, nil)
	got := New().Scan(p)
	require.Len(t, got, 1)
	assert.Equal(t, models.PlatformGeneric, got[0].Platform)
}

func TestScan_GenericMedia(t *testing.T) {
	html := `<html><head><title>Clips</title></head><body>
		<video src="/media/one.mp4" aria-label="First clip" poster="/img/one.jpg"></video>
		<video src="blob:https://example.com/0f1e"></video>
		<video title="Nested"><source src="https://cdn.example.com/two.webm" type="video/webm"></video>
		<video></video>
		<audio src="data:audio/mp3;base64,AAAA"></audio>
		<audio src="podcast.mp3"></audio>
	</body></html>`
	media := StaticMedia{
		Durations: map[int]float64{0: 75.9, 2: 5},
		Heights:   map[int]int{2: 480},
		Frames:    map[int]string{2: "data:image/jpeg;base64,frame"},
		Sources:   map[int]string{3: "https://cdn.example.com/current.mp4"},
	}
	p := newTestPage(t, "https://example.com/page/index.html", html, media)

	got := New().Scan(p)

	require.Len(t, got, 4)

	assert.Equal(t, "video_0_1700000000000", got[0].ID)
	assert.Equal(t, "https://example.com/media/one.mp4", got[0].SourceURL)
	assert.Equal(t, "First clip", got[0].Title)
	assert.Equal(t, "1:15", got[0].DurationLabel)
	assert.Equal(t, "Auto", got[0].QualityLabel)
	assert.Equal(t, "https://example.com/img/one.jpg", got[0].ThumbnailRef)

	assert.Equal(t, "video_2_1700000000000", got[1].ID)
	assert.Equal(t, "Nested", got[1].Title)
	assert.Equal(t, "https://cdn.example.com/two.webm", got[1].SourceURL)
	assert.Equal(t, "480p", got[1].QualityLabel)
	assert.Equal(t, []string{"480p"}, got[1].QualityOptions)
	assert.Equal(t, "0:05", got[1].DurationLabel)
	assert.Equal(t, "data:image/jpeg;base64,frame", got[1].ThumbnailRef)

	assert.Equal(t, "https://cdn.example.com/current.mp4", got[2].SourceURL)
	assert.Equal(t, "Clips", got[2].Title)
	assert.Equal(t, models.DurationUnknown, got[2].DurationLabel)
	assert.Equal(t, models.PlaceholderThumbnail, got[2].ThumbnailRef)

	assert.Equal(t, "https://example.com/page/podcast.mp3", got[3].SourceURL)
	assert.Equal(t, "Audio", got[3].QualityLabel)

	for _, c := range got {
		assert.Equal(t, models.PlatformGeneric, c.Platform)
		assert.NotEmpty(t, c.QualityOptions)
	}
}

func TestScan_GenericPositionalTitle(t *testing.T) {
	p := newTestPage(t, "https://example.com/", `<video src="a.mp4"></video><video src="b.mp4"></video>`, nil)
	got := New().Scan(p)
	require.Len(t, got, 2)
	assert.Equal(t, "Video 1", got[0].Title)
	assert.Equal(t, "Video 2", got[1].Title)
}

func TestScan_BlobSourceYieldsNothing(t *testing.T) {
	p := newTestPage(t, "https://example.com/", `<video src="blob:https://example.com/123"></video>`, nil)
	got := New().Scan(p)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScan_NonVideoPage(t *testing.T) {
	p := newTestPage(t, "https://example.com/about", `<title>About</title><p>hello</p>`, nil)
	got := New().Scan(p)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScan_PlatformDetectors(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		platform models.Platform
		id       string
		source   string
		duration string
	}{
		{name: "vimeo", url: "https://vimeo.com/76979871", platform: models.PlatformVimeo,
			id: "vimeo_76979871", source: "https://vimeo.com/76979871", duration: "Unknown"},
		{name: "vimeo player", url: "https://player.vimeo.com/video/76979871?h=abc", platform: models.PlatformVimeo,
			id: "vimeo_76979871", source: "https://vimeo.com/76979871", duration: "Unknown"},
		{name: "dailymotion", url: "https://www.dailymotion.com/video/x8abc12", platform: models.PlatformDailymotion,
			id: "dailymotion_x8abc12", source: "https://www.dailymotion.com/video/x8abc12", duration: "Unknown"},
		{name: "twitch", url: "https://www.twitch.tv/SomeStreamer", platform: models.PlatformTwitch,
			id: "twitch_somestreamer", source: "https://www.twitch.tv/SomeStreamer", duration: "Live"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPage(t, tt.url, `<title>Watch</title>`, nil)
			got := New().Scan(p)
			require.Len(t, got, 1)
			assert.Equal(t, tt.platform, got[0].Platform)
			assert.Equal(t, tt.id, got[0].ID)
			assert.Equal(t, tt.source, got[0].SourceURL)
			assert.Equal(t, tt.duration, got[0].DurationLabel)
			assert.Equal(t, "Watch", got[0].Title)
		})
	}
}

func TestScan_PlatformDetectorsIgnoreNonMatchingPaths(t *testing.T) {
	for _, u := range []string{
		"https://vimeo.com/channels/staffpicks",
		"https://www.dailymotion.com/us",
		"https://www.twitch.tv/directory",
		"https://www.twitch.tv/",
	} {
		p := newTestPage(t, u, `<title>x</title>`, nil)
		assert.Empty(t, New().Scan(p), u)
	}
}

func TestScan_PlatformCandidatesAreAdditive(t *testing.T) {
	p := newTestPage(t, "https://vimeo.com/76979871", `<video src="https://cdn.vimeo.com/x.mp4"></video>`, nil)
	got := New().Scan(p)
	require.Len(t, got, 2)
	assert.Equal(t, models.PlatformGeneric, got[0].Platform)
	assert.Equal(t, models.PlatformVimeo, got[1].Platform)
}

func TestScan_FailingDetectorIsIsolated(t *testing.T) {
	s := New(
		Detector{Name: "boom", Detect: func(*Page) ([]models.VideoCandidate, error) { panic("boom") }},
		Detector{Name: "error", Detect: func(*Page) ([]models.VideoCandidate, error) { return nil, errors.New("fail") }},
		Detector{Name: "ok", Detect: func(*Page) ([]models.VideoCandidate, error) {
			return []models.VideoCandidate{{ID: "x"}}, nil
		}},
	)
	p := newTestPage(t, "https://example.com/", `<p></p>`, nil)

	got := s.Scan(p)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID)
}

func TestFirstSuccess(t *testing.T) {
	p := newTestPage(t, "https://example.com/", `<p></p>`, nil)
	strategies := []Strategy[string]{
		{Name: "panics", Extract: func(*Page) (string, error) { panic("nope") }},
		{Name: "misses", Extract: func(*Page) (string, error) { return "", errNoMatch }},
		{Name: "hits", Extract: func(*Page) (string, error) { return "value", nil }},
		{Name: "never", Extract: func(*Page) (string, error) { return "later", nil }},
	}

	v, name, ok := FirstSuccess(p, strategies)
	assert.True(t, ok)
	assert.Equal(t, "value", v)
	assert.Equal(t, "hits", name)

	_, _, ok = FirstSuccess(p, strategies[:2])
	assert.False(t, ok)
}

func TestLoader_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<title>Served</title><video src="/v.mp4"></video>`))
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client())

	p, err := loader.Load(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "Served", p.Title())

	got := New().Scan(p)
	require.Len(t, got, 1)
	assert.Equal(t, srv.URL+"/v.mp4", got[0].SourceURL)

	_, err = loader.Load(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
