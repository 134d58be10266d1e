package dispatch

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/helper"
	"github.com/streamsave/streamsave-go/internal/host"
	"github.com/streamsave/streamsave-go/internal/metrics"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/registry"
	"github.com/streamsave/streamsave-go/internal/scanner"
	"github.com/streamsave/streamsave-go/internal/stats"
	"github.com/streamsave/streamsave-go/internal/validation"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// Default timeouts.
const (
	DefaultResolveTimeout = 8 * time.Second
	DefaultScanTimeout    = 5 * time.Second
)

var (
	errNotInjected = models.NewError(models.ErrDispatchFailed, "page context not available", nil)
	errNoPage      = models.NewError(models.ErrDispatchFailed, "no page context for tab", nil)
	errStopped     = models.NewError(models.ErrDispatchFailed, "coordinator not running", nil)
)

// HelperContext is the privileged resolution context.
type HelperContext interface {
	Post(msg helper.Message) error
	Events() <-chan helper.Message
}

// EventPublisher announces accepted downloads.
type EventPublisher interface {
	PublishDownload(ctx context.Context, event *models.DownloadEvent) error
}

// Options tune the coordinator.
type Options struct {
	ResolveTimeout time.Duration
	ScanTimeout    time.Duration
	InboxSize      int
}

// Dependencies are the collaborators the coordinator routes between. Publisher is
// optional.
type Dependencies struct {
	Registry   *registry.Registry
	Scanner    *scanner.Scanner
	Pages      PageLoader
	Helper     HelperContext
	Downloader host.Downloader
	Counters   stats.Counters
	Publisher  EventPublisher
}

type envelope struct {
	req   Request
	reply *reply
}

type pendingResolve struct {
	tabID   int
	videoID string
	timer   *time.Timer
	done    func(helper.Message, error)
}

// Coordinator is the background context. Its Run loop is the only writer of the
// registry; long operations run on goroutines that hand their results back to the loop.
type Coordinator struct {
	opts Options
	deps Dependencies
	log  *zap.Logger

	inbox   chan envelope
	tasks   chan func()
	stopped chan struct{}

	// Owned by the Run goroutine.
	ctx     context.Context
	pages   map[int]*pageContext
	pending map[string]*pendingResolve
}

// New creates a coordinator. Zero options take the defaults.
func New(opts Options, deps Dependencies) *Coordinator {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	if deps.Registry == nil {
		deps.Registry = registry.New(nil, nil)
	}
	if deps.Scanner == nil {
		deps.Scanner = scanner.New()
	}
	if deps.Counters == nil {
		deps.Counters = stats.NewMemoryCounters()
	}

	return &Coordinator{
		opts:    opts,
		deps:    deps,
		log:     logger.Named("coordinator"),
		inbox:   make(chan envelope, opts.InboxSize),
		tasks:   make(chan func(), opts.InboxSize),
		stopped: make(chan struct{}),
		pages:   make(map[int]*pageContext),
		pending: make(map[string]*pendingResolve),
	}
}

// Registry exposes the coordinator's registry for read-only use.
func (c *Coordinator) Registry() *registry.Registry {
	return c.deps.Registry
}

// Subscribe delivers videosUpdated and tabCleared notifications.
func (c *Coordinator) Subscribe(buffer int) (<-chan registry.Event, func()) {
	return c.deps.Registry.Subscribe(buffer)
}

// Run processes messages until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.shutdown()

	var helperEvents <-chan helper.Message
	if c.deps.Helper != nil {
		helperEvents = c.deps.Helper.Events()
	}

	c.log.Info("Coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Coordinator stopping")
			return ctx.Err()
		case env := <-c.inbox:
			c.handle(env)
		case task := <-c.tasks:
			task()
		case msg := <-helperEvents:
			c.onHelperEvent(msg)
		}
	}
}

// Send delivers req and waits for its response or ctx expiry. Failures are reported in
// the response, never as a missing one.
func (c *Coordinator) Send(ctx context.Context, req Request) Response {
	if err := req.validate(); err != nil {
		metrics.RecordDispatch(string(req.Verb()), string(models.KindOf(err)))
		return failure(err)
	}

	r := newReply()
	select {
	case c.inbox <- envelope{req: req, reply: r}:
	case <-c.stopped:
		return failure(errStopped)
	case <-ctx.Done():
		return failure(models.NewError(models.ErrDispatchFailed, "request not delivered", ctx.Err()))
	}

	select {
	case resp := <-r.ch:
		return resp
	case <-c.stopped:
		return failure(errStopped)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failure(models.NewError(models.ErrTimedOut, "no response before deadline", ctx.Err()))
		}
		return failure(models.NewError(models.ErrDispatchFailed, "request cancelled", ctx.Err()))
	}
}

// Notify delivers a fire-and-forget request.
func (c *Coordinator) Notify(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return err
	}
	select {
	case c.inbox <- envelope{req: req}:
		return nil
	case <-c.stopped:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) handle(env envelope) {
	reg := c.deps.Registry

	switch r := env.req.(type) {
	case Ping:
		p, ok := c.pages[r.TabID]
		if !ok {
			c.respond(env, failure(errNoPage))
			return
		}
		c.forward(p, env, nil)

	case ScanForVideos:
		p, ok := c.pages[r.TabID]
		if !ok {
			c.respond(env, failure(errNoPage))
			return
		}
		reg.BeginScan(r.TabID)
		c.forward(p, env, func(resp Response) {
			if resp.Success {
				reg.RecordScan(r.TabID, resp.Videos)
				return
			}
			reg.AbortScan(r.TabID)
		})

	case GetDetectedVideos:
		c.respond(env, Response{Success: true, Videos: reg.GetCandidates(r.TabID)})

	case VideosDetected:
		reg.RecordScan(r.TabID, r.Videos)

	case GetVideoData:
		c.respond(env, Response{Success: true, VideoData: reg.GetResolution(r.TabID)})

	case DownloadVideo:
		c.download(env, r)

	case ReloadTab:
		reg.ForgetResolution(r.TabID)
		p, ok := c.pages[r.TabID]
		if !ok {
			c.respond(env, failure(errNoPage))
			return
		}
		c.forward(p, env, func(resp Response) {
			if resp.Success {
				c.maybeResolve(r.TabID, p.url)
			}
		})

	case OpenDownloadFolder:
		if c.deps.Downloader == nil {
			c.respond(env, failure(models.NewError(models.ErrDispatchFailed, "no downloader configured", nil)))
			return
		}
		c.respond(env, Response{Success: true, Path: c.deps.Downloader.Folder()})

	case TabUpdated:
		if r.Status == TabStatusComplete {
			c.attach(r.TabID, r.URL)
			if r.Active {
				c.maybeResolve(r.TabID, r.URL)
			}
		}
		c.respond(env, Response{Success: true})

	case TabActivated:
		if p, ok := c.pages[r.TabID]; ok {
			c.maybeResolve(r.TabID, p.url)
		}
		c.respond(env, Response{Success: true})

	case TabRemoved:
		c.closeTab(r.TabID)
		c.respond(env, Response{Success: true})

	default:
		c.respond(env, failure(models.NewError(models.ErrInvalidInput, "unknown request", nil)))
	}
}

// respond records the outcome and delivers it at most once.
func (c *Coordinator) respond(env envelope, resp Response) {
	outcome := "success"
	if !resp.Success {
		outcome = string(resp.Kind)
	}
	metrics.RecordDispatch(string(env.req.Verb()), outcome)
	env.reply.deliver(resp)
}

// forward hands env to a page context and relays its reply. A page that does not answer
// within the scan timeout is treated as unavailable. after runs on the loop before the
// response is delivered.
func (c *Coordinator) forward(p *pageContext, env envelope, after func(Response)) {
	relay := newReply()
	if !p.post(pageMsg{req: env.req, reply: relay}) {
		resp := failure(models.NewError(models.ErrDispatchFailed, "page context busy", nil))
		if after != nil {
			after(resp)
		}
		c.respond(env, resp)
		return
	}

	timeout := c.opts.ScanTimeout
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		var resp Response
		select {
		case resp = <-relay.ch:
		case <-timer.C:
			resp = failure(models.NewError(models.ErrDispatchFailed, "page did not respond", nil))
		case <-c.stopped:
			return
		}

		c.enqueue(func() {
			if after != nil {
				after(resp)
			}
			c.respond(env, resp)
		})
	}()
}

// enqueue runs fn on the loop. It is dropped once the coordinator has stopped.
func (c *Coordinator) enqueue(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.stopped:
	}
}

// attach starts a page context for the tab, replacing one showing a different URL.
func (c *Coordinator) attach(tabID int, rawURL string) {
	if p, ok := c.pages[tabID]; ok {
		if p.url == rawURL {
			return
		}
		p.stop()
		// Candidates found on the previous document no longer describe the tab.
		c.deps.Registry.RecordScan(tabID, nil)
	}
	if c.deps.Pages == nil {
		c.log.Warn("No page loader configured", zap.Int("tabId", tabID))
		return
	}

	// Pushes from a page context that has since been replaced or closed are dropped.
	var p *pageContext
	notify := func(req Request) {
		c.enqueue(func() {
			if c.pages[tabID] == p {
				c.handle(envelope{req: req})
			}
		})
	}
	p = startPage(c.ctx, tabID, rawURL, c.deps.Pages, c.deps.Scanner, notify)
	c.pages[tabID] = p
}

func (c *Coordinator) closeTab(tabID int) {
	if p, ok := c.pages[tabID]; ok {
		p.stop()
		delete(c.pages, tabID)
	}
	for id, pr := range c.pending {
		if pr.tabID == tabID {
			c.finishResolve(id, helper.Message{}, models.NewError(models.ErrDispatchFailed, "tab closed", nil))
		}
	}
	c.deps.Registry.Remove(tabID)
}

// maybeResolve starts a background resolution when rawURL carries a video id the tab
// has not resolved yet.
func (c *Coordinator) maybeResolve(tabID int, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	videoID := validation.VideoIDFromURL(u)
	if videoID == "" || !c.deps.Registry.BeginResolution(tabID, videoID) {
		return
	}

	c.requestResolution(tabID, videoID, "", func(msg helper.Message, err error) {
		if err != nil {
			c.log.Warn("Background resolution failed",
				zap.Int("tabId", tabID),
				zap.String("videoId", videoID),
				zap.Error(err),
			)
			c.deps.Registry.FailResolution(tabID, videoID)
			return
		}
		c.deps.Registry.RecordResolution(tabID, videoID, msg.Info)
	})
}

// requestResolution sends process-youtube to the helper and registers a pending
// listener. done runs on the loop exactly once: with the helper's answer, or with
// ErrTimedOut when the timeout elapses first, after which the listener is gone.
func (c *Coordinator) requestResolution(tabID int, videoID, quality string, done func(helper.Message, error)) {
	if c.deps.Helper == nil {
		done(helper.Message{}, models.NewError(models.ErrDispatchFailed, "helper context unavailable", nil))
		return
	}

	id := uuid.NewString()
	err := c.deps.Helper.Post(helper.Message{
		Verb:      helper.VerbProcessYouTube,
		RequestID: id,
		URL:       validation.WatchURL(videoID),
		Quality:   quality,
	})
	if err != nil {
		done(helper.Message{}, models.NewError(models.ErrDispatchFailed, "helper context unavailable", err))
		return
	}

	pr := &pendingResolve{tabID: tabID, videoID: videoID, done: done}
	pr.timer = time.AfterFunc(c.opts.ResolveTimeout, func() {
		c.enqueue(func() {
			c.finishResolve(id, helper.Message{}, models.NewError(models.ErrTimedOut, "resolution timed out", nil))
		})
	})
	c.pending[id] = pr
}

func (c *Coordinator) finishResolve(id string, msg helper.Message, err error) {
	pr, ok := c.pending[id]
	if !ok {
		c.log.Debug("Dropping late resolution result", zap.String("requestId", id))
		return
	}
	delete(c.pending, id)
	pr.timer.Stop()
	pr.done(msg, err)
}

func (c *Coordinator) onHelperEvent(msg helper.Message) {
	switch msg.Verb {
	case helper.VerbYouTubeProcessed:
		if msg.Info == nil {
			c.finishResolve(msg.RequestID, msg, models.NewError(models.ErrResolutionFailed, "empty resolution result", nil))
			return
		}
		c.finishResolve(msg.RequestID, msg, nil)
	case helper.VerbYouTubeError:
		kind := msg.Kind
		if kind == "" {
			kind = models.ErrResolutionFailed
		}
		c.finishResolve(msg.RequestID, msg, models.NewError(kind, msg.Error, nil))
	default:
		c.log.Warn("Unknown helper event", zap.String("verb", msg.Verb))
	}
}

// pendingResolutions must be called from the loop.
func (c *Coordinator) pendingResolutions() int {
	return len(c.pending)
}

func (c *Coordinator) shutdown() {
	close(c.stopped)
	for _, p := range c.pages {
		p.stop()
	}
	for _, pr := range c.pending {
		pr.timer.Stop()
	}
}
