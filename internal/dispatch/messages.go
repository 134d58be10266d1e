// Package dispatch routes requests between the UI, the per-tab page contexts, the
// background registry and the helper context. Every context is a goroutine with its
// own inbox; they share no mutable state.
package dispatch

import (
	"strings"

	"github.com/streamsave/streamsave-go/internal/models"
)

// Verb names a message type.
type Verb string

// Message verbs.
const (
	VerbPing               Verb = "ping"
	VerbScanForVideos      Verb = "scanForVideos"
	VerbGetDetectedVideos  Verb = "getDetectedVideos"
	VerbVideosDetected     Verb = "videosDetected"
	VerbDownloadVideo      Verb = "downloadVideo"
	VerbGetVideoData       Verb = "getVideoData"
	VerbReloadTab          Verb = "reloadTab"
	VerbOpenDownloadFolder Verb = "openDownloadFolder"
	VerbTabUpdated         Verb = "tabUpdated"
	VerbTabActivated       Verb = "tabActivated"
	VerbTabRemoved         Verb = "tabRemoved"
)

// Tab load statuses reported by TabUpdated.
const (
	TabStatusLoading  = "loading"
	TabStatusComplete = "complete"
)

// Request is a message addressed to the coordinator. The set of implementations is
// closed; each verb has exactly one request type.
type Request interface {
	Verb() Verb
	Tab() int
	validate() error
}

// Ping checks that the tab's page context is alive.
type Ping struct{ TabID int }

// ScanForVideos asks the tab's page context for a fresh scan.
type ScanForVideos struct{ TabID int }

// GetDetectedVideos reads the registry's candidates for a tab.
type GetDetectedVideos struct{ TabID int }

// VideosDetected carries candidates pushed by a page context.
type VideosDetected struct {
	TabID  int
	Videos []models.VideoCandidate
}

// DownloadVideo asks the host to download a candidate. Filename is the display title.
// An empty or Auto Quality takes the best format; any other label must be offered by
// the resolved video or the download fails with ResolutionFailed.
type DownloadVideo struct {
	TabID    int
	VideoURL string
	Filename string
	Quality  string
}

// GetVideoData reads the registry's resolution result for a tab.
type GetVideoData struct{ TabID int }

// ReloadTab reloads the tab's page and forgets its resolved identity.
type ReloadTab struct{ TabID int }

// OpenDownloadFolder reports the host download folder.
type OpenDownloadFolder struct{}

// TabUpdated reports a navigation or load-state change.
type TabUpdated struct {
	TabID  int
	URL    string
	Status string
	Active bool
}

// TabActivated reports that the user switched to a tab.
type TabActivated struct{ TabID int }

// TabRemoved reports that a tab was closed.
type TabRemoved struct{ TabID int }

func (Ping) Verb() Verb               { return VerbPing }
func (ScanForVideos) Verb() Verb      { return VerbScanForVideos }
func (GetDetectedVideos) Verb() Verb  { return VerbGetDetectedVideos }
func (VideosDetected) Verb() Verb     { return VerbVideosDetected }
func (DownloadVideo) Verb() Verb      { return VerbDownloadVideo }
func (GetVideoData) Verb() Verb       { return VerbGetVideoData }
func (ReloadTab) Verb() Verb          { return VerbReloadTab }
func (OpenDownloadFolder) Verb() Verb { return VerbOpenDownloadFolder }
func (TabUpdated) Verb() Verb         { return VerbTabUpdated }
func (TabActivated) Verb() Verb       { return VerbTabActivated }
func (TabRemoved) Verb() Verb         { return VerbTabRemoved }

func (r Ping) Tab() int              { return r.TabID }
func (r ScanForVideos) Tab() int     { return r.TabID }
func (r GetDetectedVideos) Tab() int { return r.TabID }
func (r VideosDetected) Tab() int    { return r.TabID }
func (r DownloadVideo) Tab() int     { return r.TabID }
func (r GetVideoData) Tab() int      { return r.TabID }
func (r ReloadTab) Tab() int         { return r.TabID }
func (OpenDownloadFolder) Tab() int  { return -1 }
func (r TabUpdated) Tab() int        { return r.TabID }
func (r TabActivated) Tab() int      { return r.TabID }
func (r TabRemoved) Tab() int        { return r.TabID }

func (r Ping) validate() error              { return validTab(r.TabID) }
func (r ScanForVideos) validate() error     { return validTab(r.TabID) }
func (r GetDetectedVideos) validate() error { return validTab(r.TabID) }
func (r VideosDetected) validate() error    { return validTab(r.TabID) }
func (r GetVideoData) validate() error      { return validTab(r.TabID) }
func (r ReloadTab) validate() error         { return validTab(r.TabID) }
func (OpenDownloadFolder) validate() error  { return nil }
func (r TabActivated) validate() error      { return validTab(r.TabID) }
func (r TabRemoved) validate() error        { return validTab(r.TabID) }

func (r DownloadVideo) validate() error {
	if err := validTab(r.TabID); err != nil {
		return err
	}
	if strings.TrimSpace(r.VideoURL) == "" {
		return models.NewError(models.ErrInvalidInput, "missing video URL", nil)
	}
	return nil
}

func (r TabUpdated) validate() error {
	if err := validTab(r.TabID); err != nil {
		return err
	}
	if r.Status == TabStatusComplete && strings.TrimSpace(r.URL) == "" {
		return models.NewError(models.ErrInvalidInput, "missing tab URL", nil)
	}
	return nil
}

func validTab(id int) error {
	if id < 0 {
		return models.NewError(models.ErrInvalidInput, "invalid tab id", nil)
	}
	return nil
}

// Response is the reply to a request.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Response struct {
	Success    bool                    `json:"success"`
	Active     bool                    `json:"active,omitempty"`
	Videos     []models.VideoCandidate `json:"videos,omitempty"`
	DownloadID string                  `json:"downloadId,omitempty"`
	VideoData  *models.VideoInfo       `json:"videoData,omitempty"`
	Path       string                  `json:"path,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Kind       models.ErrorKind        `json:"kind,omitempty"`
}

// Err converts a failed response back into a classified error.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return models.NewError(r.Kind, r.Error, nil)
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error(), Kind: models.KindOf(err)}
}
