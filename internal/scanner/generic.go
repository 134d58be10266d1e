package scanner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/validation"
)

const (
	defaultVideoQuality = "Auto"
	defaultAudioQuality = "Audio"
)

// transientSchemes are object/inline URLs that cannot be fetched outside the page.
var transientSchemes = []string{"blob:", "data:"}

// detectGenericMedia builds one candidate per media element with a persistable source.
// YouTube video-bearing pages are skipped so the player is not reported twice.
func detectGenericMedia(p *Page) ([]models.VideoCandidate, error) {
	if validation.IsVideoPath(p.URL) {
		return nil, nil
	}

	stamp := p.now().UnixMilli()
	docTitle := p.Title()
	var out []models.VideoCandidate

	p.Doc.Find(MediaSelector).Each(func(i int, el *goquery.Selection) {
		c, err := run(p, fmt.Sprintf("media-element-%d", i), func(p *Page) (models.VideoCandidate, error) {
			return mediaCandidate(p, i, el, docTitle, stamp)
		})
		if err != nil {
			return
		}
		out = append(out, c)
	})

	return out, nil
}

func mediaCandidate(p *Page, i int, el *goquery.Selection, docTitle string, stamp int64) (models.VideoCandidate, error) {
	src := mediaSource(p, i, el)
	if src == "" {
		return models.VideoCandidate{}, errNoMatch
	}

	isAudio := goquery.NodeName(el) == "audio"

	title := firstNonEmpty(attr(el, "aria-label"), attr(el, "title"), docTitle)
	if title == "" {
		title = fmt.Sprintf("Video %d", i+1)
	}

	duration := models.DurationUnknown
	if secs, ok := p.Media.Duration(i); usableDuration(secs, ok) {
		duration = formatShortClock(secs)
	}

	quality := defaultVideoQuality
	if isAudio {
		quality = defaultAudioQuality
	} else if h, ok := p.Media.VideoHeight(i); ok {
		quality = fmt.Sprintf("%dp", h)
	}

	return models.VideoCandidate{
		ID:             fmt.Sprintf("video_%d_%d", i, stamp),
		Title:          title,
		SourceURL:      src,
		DurationLabel:  duration,
		QualityLabel:   quality,
		QualityOptions: []string{quality},
		ThumbnailRef:   mediaThumbnail(p, i, el),
		Platform:       models.PlatformGeneric,
	}, nil
}

// mediaSource resolves src, then the runtime current source, then the first nested
// <source>. Transient schemes disqualify the element.
func mediaSource(p *Page, i int, el *goquery.Selection) string {
	candidates := []string{attr(el, "src"), p.Media.CurrentSrc(i)}
	if nested, ok := el.Find("source[src]").First().Attr("src"); ok {
		candidates = append(candidates, nested)
	}

	src := firstNonEmpty(candidates...)
	if src == "" || isTransient(src) {
		return ""
	}
	return p.Resolve(src)
}

func mediaThumbnail(p *Page, i int, el *goquery.Selection) string {
	if frame, err := p.Media.CaptureFrame(i); err == nil && frame != "" {
		return frame
	}
	if poster := attr(el, "poster"); poster != "" && !isTransient(poster) {
		return p.Resolve(poster)
	}
	return models.PlaceholderThumbnail
}

func isTransient(src string) bool {
	lower := strings.ToLower(strings.TrimSpace(src))
	for _, scheme := range transientSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func attr(el *goquery.Selection, name string) string {
	v, _ := el.Attr(name)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
