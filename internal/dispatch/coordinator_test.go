package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamsave/streamsave-go/internal/helper"
	"github.com/streamsave/streamsave-go/internal/host"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/registry"
	"github.com/streamsave/streamsave-go/internal/scanner"
	"github.com/streamsave/streamsave-go/internal/stats"
)

const (
	watchURL   = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	articleURL = "https://example.com/article"
	mediaURL   = "https://example.com/media"
)

type fakeLoader struct {
	pages map[string]string
}

func (f *fakeLoader) Load(_ context.Context, rawURL string) (*scanner.Page, error) {
	html, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return scanner.NewPage(rawURL, strings.NewReader(html), nil)
}

type fakeHelper struct {
	mu      sync.Mutex
	posted  []helper.Message
	events  chan helper.Message
	respond func(helper.Message) *helper.Message
}

func newFakeHelper(respond func(helper.Message) *helper.Message) *fakeHelper {
	return &fakeHelper{events: make(chan helper.Message, 16), respond: respond}
}

func (f *fakeHelper) Post(msg helper.Message) error {
	f.mu.Lock()
	f.posted = append(f.posted, msg)
	f.mu.Unlock()

	if f.respond != nil {
		if out := f.respond(msg); out != nil {
			f.events <- *out
		}
	}
	return nil
}

func (f *fakeHelper) Events() <-chan helper.Message {
	return f.events
}

func (f *fakeHelper) Posted() []helper.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]helper.Message(nil), f.posted...)
}

type fakeDownloader struct {
	mu   sync.Mutex
	reqs []host.DownloadRequest
	err  error
}

func (f *fakeDownloader) Download(_ context.Context, req host.DownloadRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return "dl-1", nil
}

func (f *fakeDownloader) Folder() string { return "/downloads" }

func (f *fakeDownloader) Requests() []host.DownloadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.DownloadRequest(nil), f.reqs...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.DownloadEvent
}

func (f *fakePublisher) PublishDownload(_ context.Context, event *models.DownloadEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Events() []*models.DownloadEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.DownloadEvent(nil), f.events...)
}

func sampleInfo() *models.VideoInfo {
	return &models.VideoInfo{
		VideoID: "dQw4w9WgXcQ",
		Title:   "Never/Gonna: Give?",
		Formats: []models.ResolvedFormat{
			{FormatKey: "22", QualityLabel: "720p", Container: "mp4", DirectURL: "https://cdn.example.com/22", HasAudio: true, HasVideo: true},
			{FormatKey: "18", QualityLabel: "360p", Container: "mp4", DirectURL: "https://cdn.example.com/18", HasAudio: true, HasVideo: true},
		},
	}
}

func answerWith(info *models.VideoInfo) func(helper.Message) *helper.Message {
	return func(msg helper.Message) *helper.Message {
		out := &helper.Message{
			Verb:      helper.VerbYouTubeProcessed,
			RequestID: msg.RequestID,
			Info:      info.Clone(),
		}
		if f, ok := info.FindFormat(msg.Quality); ok {
			out.Format = &f
		}
		return out
	}
}

func testPages() *fakeLoader {
	return &fakeLoader{pages: map[string]string{
		articleURL: `<html><head><title>Article</title></head><body><p>text</p></body></html>`,
		mediaURL:   `<html><head><title>Media</title></head><body><video src="https://cdn.example.com/clip.webm"></video></body></html>`,
		watchURL:   `<html><head><title>Song - YouTube</title></head><body></body></html>`,
	}}
}

func startCoordinator(t *testing.T, opts Options, deps Dependencies) *Coordinator {
	t.Helper()

	c := New(opts, deps)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func send(t *testing.T, c *Coordinator, req Request) Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Send(ctx, req)
}

func pendingCount(c *Coordinator) int {
	ch := make(chan int, 1)
	c.enqueue(func() { ch <- c.pendingResolutions() })
	return <-ch
}

func openTab(t *testing.T, c *Coordinator, tabID int, url string, active bool) {
	t.Helper()
	resp := send(t, c, TabUpdated{TabID: tabID, URL: url, Status: TabStatusComplete, Active: active})
	require.True(t, resp.Success)
}

func TestCoordinator_RejectsInvalidRequests(t *testing.T) {
	c := startCoordinator(t, Options{}, Dependencies{})

	tests := []struct {
		name string
		req  Request
	}{
		{name: "negative tab", req: Ping{TabID: -1}},
		{name: "download without url", req: DownloadVideo{TabID: 1}},
		{name: "complete without url", req: TabUpdated{TabID: 1, Status: TabStatusComplete}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, c, tt.req)
			assert.False(t, resp.Success)
			assert.Equal(t, models.ErrInvalidInput, resp.Kind)
		})
	}
}

func TestCoordinator_NoPageContext(t *testing.T) {
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages()})

	for _, req := range []Request{Ping{TabID: 9}, ScanForVideos{TabID: 9}, ReloadTab{TabID: 9}} {
		resp := send(t, c, req)
		assert.False(t, resp.Success, req.Verb())
		assert.Equal(t, models.ErrDispatchFailed, resp.Kind, req.Verb())
	}
}

func TestCoordinator_PingAndScan(t *testing.T) {
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages()})
	openTab(t, c, 1, articleURL, false)

	resp := send(t, c, Ping{TabID: 1})
	require.True(t, resp.Success)
	assert.True(t, resp.Active)

	resp = send(t, c, ScanForVideos{TabID: 1})
	require.True(t, resp.Success)
	assert.Empty(t, resp.Videos)
	assert.Equal(t, registry.StatePopulated, c.Registry().State(1))
}

func TestCoordinator_LoadFailureReportsDispatchFailed(t *testing.T) {
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages()})
	openTab(t, c, 1, "https://example.com/missing", false)

	resp := send(t, c, ScanForVideos{TabID: 1})
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrDispatchFailed, resp.Kind)
}

func TestCoordinator_DetectsOnLoad(t *testing.T) {
	badge := host.NewMemoryBadge()
	reg := registry.New(nil, badge)
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages(), Registry: reg})

	events, unsubscribe := c.Subscribe(8)
	defer unsubscribe()

	openTab(t, c, 1, mediaURL, false)

	select {
	case ev := <-events:
		assert.Equal(t, registry.EventVideosUpdated, ev.Kind)
		assert.Equal(t, 1, ev.TabID)
	case <-time.After(2 * time.Second):
		t.Fatal("no videosUpdated event")
	}

	resp := send(t, c, GetDetectedVideos{TabID: 1})
	require.True(t, resp.Success)
	require.Len(t, resp.Videos, 1)
	assert.Equal(t, "https://cdn.example.com/clip.webm", resp.Videos[0].SourceURL)
	assert.Equal(t, registry.BadgeReady, badge.Badge(1))
}

func TestCoordinator_TabActivationResolvesOnce(t *testing.T) {
	h := newFakeHelper(answerWith(sampleInfo()))
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages(), Helper: h})

	openTab(t, c, 3, watchURL, true)

	require.Eventually(t, func() bool {
		return send(t, c, GetVideoData{TabID: 3}).VideoData != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp := send(t, c, TabActivated{TabID: 3})
	require.True(t, resp.Success)

	data := send(t, c, GetVideoData{TabID: 3}).VideoData
	assert.Equal(t, "dQw4w9WgXcQ", data.VideoID)
	assert.Len(t, h.Posted(), 1)
	assert.Equal(t, helper.VerbProcessYouTube, h.Posted()[0].Verb)
	assert.Equal(t, watchURL, h.Posted()[0].URL)
}

func TestCoordinator_ReloadForgetsResolution(t *testing.T) {
	h := newFakeHelper(answerWith(sampleInfo()))
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages(), Helper: h})

	openTab(t, c, 3, watchURL, true)
	require.Eventually(t, func() bool {
		return send(t, c, GetVideoData{TabID: 3}).VideoData != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp := send(t, c, ReloadTab{TabID: 3})
	require.True(t, resp.Success)

	require.Eventually(t, func() bool {
		return len(h.Posted()) == 2 && send(t, c, GetVideoData{TabID: 3}).VideoData != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCoordinator_NavigationDropsPreviousVideoData(t *testing.T) {
	const nextURL = "https://www.youtube.com/watch?v=9bZkp7q19f0"

	h := newFakeHelper(func(msg helper.Message) *helper.Message {
		if msg.URL == watchURL {
			return answerWith(sampleInfo())(msg)
		}
		return &helper.Message{
			Verb:      helper.VerbYouTubeError,
			RequestID: msg.RequestID,
			Error:     "Video unavailable",
			Kind:      models.ErrResolutionFailed,
		}
	})
	badge := host.NewMemoryBadge()
	reg := registry.New(nil, badge)
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages(), Helper: h, Registry: reg})

	openTab(t, c, 7, watchURL, true)
	require.Eventually(t, func() bool {
		return send(t, c, GetVideoData{TabID: 7}).VideoData != nil &&
			len(send(t, c, GetDetectedVideos{TabID: 7}).Videos) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, registry.BadgeReady, badge.Badge(7))

	openTab(t, c, 7, nextURL, true)
	require.Eventually(t, func() bool {
		return len(h.Posted()) == 2 && pendingCount(c) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Nil(t, send(t, c, GetVideoData{TabID: 7}).VideoData)
	assert.Empty(t, send(t, c, GetDetectedVideos{TabID: 7}).Videos)
	assert.Equal(t, registry.BadgeClear, badge.Badge(7))
}

func TestCoordinator_DownloadResolvesThroughHelper(t *testing.T) {
	h := newFakeHelper(answerWith(sampleInfo()))
	dl := &fakeDownloader{}
	counters := stats.NewMemoryCounters()
	pub := &fakePublisher{}
	c := startCoordinator(t, Options{}, Dependencies{
		Pages:      testPages(),
		Helper:     h,
		Downloader: dl,
		Counters:   counters,
		Publisher:  pub,
	})

	resp := send(t, c, DownloadVideo{TabID: 4, VideoURL: watchURL, Quality: "360p"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "dl-1", resp.DownloadID)

	reqs := dl.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://cdn.example.com/18", reqs[0].URL)
	assert.Equal(t, "Never_Gonna_ Give_.mp4", reqs[0].Filename)

	total, err := counters.Get(context.Background(), stats.TotalDownloads)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.PlatformYouTube, events[0].Platform)
	assert.Equal(t, "dl-1", events[0].DownloadID)
	assert.Equal(t, 4, events[0].TabID)
}

func TestCoordinator_DownloadUsesStoredResolution(t *testing.T) {
	h := newFakeHelper(answerWith(sampleInfo()))
	dl := &fakeDownloader{}
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages(), Helper: h, Downloader: dl})

	openTab(t, c, 3, watchURL, true)
	require.Eventually(t, func() bool {
		return send(t, c, GetVideoData{TabID: 3}).VideoData != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp := send(t, c, DownloadVideo{TabID: 3, VideoURL: watchURL, Filename: "Custom", Quality: "720p"})
	require.True(t, resp.Success, resp.Error)

	assert.Len(t, h.Posted(), 1)
	reqs := dl.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Custom.mp4", reqs[0].Filename)
	assert.Equal(t, "https://cdn.example.com/22", reqs[0].URL)
}

func TestCoordinator_DownloadUnavailableQuality(t *testing.T) {
	h := newFakeHelper(answerWith(sampleInfo()))
	dl := &fakeDownloader{}
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages(), Helper: h, Downloader: dl})

	resp := send(t, c, DownloadVideo{TabID: 4, VideoURL: watchURL, Quality: "1080p"})
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrResolutionFailed, resp.Kind)
	assert.Equal(t, "quality 1080p is not available", resp.Error)

	// The stored resolution is consulted the same way.
	require.NotNil(t, send(t, c, GetVideoData{TabID: 4}).VideoData)
	resp = send(t, c, DownloadVideo{TabID: 4, VideoURL: watchURL, Quality: "1080p"})
	assert.Equal(t, models.ErrResolutionFailed, resp.Kind)
	assert.Len(t, h.Posted(), 1)

	resp = send(t, c, DownloadVideo{TabID: 4, VideoURL: watchURL, Quality: "Auto"})
	require.True(t, resp.Success, resp.Error)
	require.Len(t, dl.Requests(), 1)
	assert.Equal(t, "https://cdn.example.com/22", dl.Requests()[0].URL)
}

func TestCoordinator_DirectDownload(t *testing.T) {
	dl := &fakeDownloader{}
	c := startCoordinator(t, Options{}, Dependencies{Downloader: dl})

	resp := send(t, c, DownloadVideo{TabID: 1, VideoURL: "https://cdn.example.com/path/clip.webm"})
	require.True(t, resp.Success, resp.Error)

	reqs := dl.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "clip.webm", reqs[0].Filename)
}

func TestCoordinator_DownloadRejected(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("disk full")}
	counters := stats.NewMemoryCounters()
	c := startCoordinator(t, Options{}, Dependencies{Downloader: dl, Counters: counters})

	resp := send(t, c, DownloadVideo{TabID: 1, VideoURL: "https://cdn.example.com/clip.mp4"})
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrDownloadRejected, resp.Kind)

	total, err := counters.Get(context.Background(), stats.TotalDownloads)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCoordinator_HelperErrorPropagates(t *testing.T) {
	h := newFakeHelper(func(msg helper.Message) *helper.Message {
		return &helper.Message{
			Verb:      helper.VerbYouTubeError,
			RequestID: msg.RequestID,
			Error:     "Video unavailable",
			Kind:      models.ErrResolutionFailed,
		}
	})
	dl := &fakeDownloader{}
	c := startCoordinator(t, Options{}, Dependencies{Helper: h, Downloader: dl})

	resp := send(t, c, DownloadVideo{TabID: 1, VideoURL: watchURL})
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrResolutionFailed, resp.Kind)
	assert.Equal(t, "Video unavailable", resp.Error)
	assert.Empty(t, dl.Requests())
}

func TestCoordinator_ResolutionTimeout(t *testing.T) {
	h := newFakeHelper(nil)
	dl := &fakeDownloader{}
	c := startCoordinator(t, Options{ResolveTimeout: 50 * time.Millisecond}, Dependencies{Helper: h, Downloader: dl})

	resp := send(t, c, DownloadVideo{TabID: 1, VideoURL: watchURL})
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrTimedOut, resp.Kind)
	assert.Zero(t, pendingCount(c))

	// A result arriving after the timeout is dropped.
	posted := h.Posted()
	require.Len(t, posted, 1)
	h.events <- *answerWith(sampleInfo())(posted[0])

	assert.Never(t, func() bool {
		return len(dl.Requests()) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Nil(t, send(t, c, GetVideoData{TabID: 1}).VideoData)
}

func TestCoordinator_TabRemoved(t *testing.T) {
	h := newFakeHelper(nil)
	c := startCoordinator(t, Options{}, Dependencies{Pages: testPages(), Helper: h})

	openTab(t, c, 5, mediaURL, false)
	require.Eventually(t, func() bool {
		return len(send(t, c, GetDetectedVideos{TabID: 5}).Videos) == 1
	}, 2*time.Second, 10*time.Millisecond)

	openTab(t, c, 6, watchURL, true)
	require.Eventually(t, func() bool { return pendingCount(c) == 1 }, time.Second, 10*time.Millisecond)

	require.True(t, send(t, c, TabRemoved{TabID: 5}).Success)
	require.True(t, send(t, c, TabRemoved{TabID: 6}).Success)

	assert.Empty(t, send(t, c, GetDetectedVideos{TabID: 5}).Videos)
	assert.Zero(t, c.Registry().Tabs())
	assert.Zero(t, pendingCount(c))
	assert.False(t, send(t, c, Ping{TabID: 5}).Success)
}

func TestCoordinator_OpenDownloadFolder(t *testing.T) {
	c := startCoordinator(t, Options{}, Dependencies{Downloader: &fakeDownloader{}})

	resp := send(t, c, OpenDownloadFolder{})
	require.True(t, resp.Success)
	assert.Equal(t, "/downloads", resp.Path)
}

func TestCoordinator_SendAfterStop(t *testing.T) {
	c := New(Options{}, Dependencies{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	resp := c.Send(context.Background(), GetDetectedVideos{TabID: 1})
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrDispatchFailed, resp.Kind)
}

func TestDirectFilename(t *testing.T) {
	tests := []struct {
		title, url, want string
	}{
		{url: "https://cdn.example.com/a/clip.webm", want: "clip.webm"},
		{url: "https://cdn.example.com/stream", want: "stream.mp4"},
		{title: "My: Talk", url: "https://cdn.example.com/x.mp3", want: "My_ Talk.mp3"},
		{title: "Already.webm", url: "https://cdn.example.com/x.webm", want: "Already.webm"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, directFilename(tt.title, tt.url))
		})
	}
}
