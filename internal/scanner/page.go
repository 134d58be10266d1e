// Package scanner inspects one page snapshot and produces the video candidates found on it.
package scanner

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MediaSelector matches every generic playable media element.
const MediaSelector = "video, audio"

var errFrameUnavailable = errors.New("frame capture unavailable")

// MediaState exposes runtime properties of the media elements matched by MediaSelector,
// addressed by their position in document order. A static HTML snapshot cannot know
// these; a live page can.
type MediaState interface {
	Duration(index int) (float64, bool)
	VideoHeight(index int) (int, bool)
	CaptureFrame(index int) (string, error)
	CurrentSrc(index int) string
}

// StaticMedia is a MediaState backed by fixed values. Missing entries report unknown.
type StaticMedia struct {
	Durations map[int]float64
	Heights   map[int]int
	Frames    map[int]string
	Sources   map[int]string
}

func (s StaticMedia) Duration(index int) (float64, bool) {
	d, ok := s.Durations[index]
	return d, ok
}

func (s StaticMedia) VideoHeight(index int) (int, bool) {
	h, ok := s.Heights[index]
	return h, ok && h > 0
}

func (s StaticMedia) CaptureFrame(index int) (string, error) {
	if f, ok := s.Frames[index]; ok && f != "" {
		return f, nil
	}
	return "", errFrameUnavailable
}

func (s StaticMedia) CurrentSrc(index int) string {
	return s.Sources[index]
}

// Page is a snapshot of a loaded document.
type Page struct {
	URL   *url.URL
	Doc   *goquery.Document
	Media MediaState
	Now   func() time.Time
}

// NewPage parses an HTML document served from rawURL.
func NewPage(rawURL string, body io.Reader, media MediaState) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	if media == nil {
		media = StaticMedia{}
	}

	return &Page{URL: u, Doc: doc, Media: media, Now: time.Now}, nil
}

// Title returns the trimmed document title.
func (p *Page) Title() string {
	return strings.TrimSpace(p.Doc.Find("title").First().Text())
}

// Resolve turns a possibly relative reference into an absolute URL.
func (p *Page) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if p.URL == nil {
		return u.String()
	}
	return p.URL.ResolveReference(u).String()
}

func (p *Page) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}
