package scanner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/internal/validation"
	"github.com/streamsave/streamsave-go/internal/youtube"
)

// YouTubeQualityOptions are offered for every watch page before resolution.
var YouTubeQualityOptions = []string{models.QualityAuto, "1080p", "720p", "480p", "360p"}

const (
	youtubeTitleSuffix   = " - YouTube"
	youtubeFallbackTitle = "YouTube Video"
)

var youtubeTitleStrategies = []Strategy[string]{
	selectorText("watch-metadata-heading", "h1.ytd-watch-metadata yt-formatted-string"),
	selectorText("legacy-heading", "h1.title yt-formatted-string"),
	selectorText("container-heading", "#container h1"),
	metaContent("og-title", `meta[property="og:title"]`),
	metaContent("meta-title", `meta[name="title"]`),
}

var youtubeDurationStrategies = []Strategy[string]{
	{Name: "media-element", Extract: playerMediaDuration},
	{Name: "player-label", Extract: func(p *Page) (string, error) {
		text := strings.TrimSpace(p.Doc.Find(".ytp-time-duration").First().Text())
		if text == "" {
			return "", errNoMatch
		}
		return text, nil
	}},
	{Name: "itemprop-duration", Extract: func(p *Page) (string, error) {
		content, ok := p.Doc.Find(`meta[itemprop="duration"]`).First().Attr("content")
		if !ok || strings.TrimSpace(content) == "" {
			return "", errNoMatch
		}
		secs, err := youtube.ParseISODuration(content)
		if err != nil {
			return "", err
		}
		if secs <= 0 {
			return "", errNoMatch
		}
		return formatMinutesSeconds(float64(secs)), nil
	}},
}

// detectYouTube produces the single platform record for a YouTube watch or shorts page.
func detectYouTube(p *Page) ([]models.VideoCandidate, error) {
	if p.URL == nil || !validation.IsYouTubeHost(p.URL.Host) {
		return nil, nil
	}

	videoID := validation.VideoIDFromURL(p.URL)
	if videoID == "" {
		return nil, nil
	}

	title, _, ok := FirstSuccess(p, youtubeTitleStrategies)
	if !ok {
		title = youtubeDocumentTitle(p)
	}

	duration, _, ok := FirstSuccess(p, youtubeDurationStrategies)
	if !ok {
		duration = models.DurationUnknown
	}

	options := append([]string(nil), YouTubeQualityOptions...)

	return []models.VideoCandidate{{
		ID:             "youtube_" + videoID,
		Title:          title,
		SourceURL:      validation.WatchURL(videoID),
		DurationLabel:  duration,
		QualityLabel:   options[0],
		QualityOptions: options,
		ThumbnailRef:   validation.ThumbnailURL(videoID),
		Platform:       models.PlatformYouTube,
	}}, nil
}

func youtubeDocumentTitle(p *Page) string {
	title := strings.TrimSpace(strings.TrimSuffix(p.Title(), youtubeTitleSuffix))
	if title == "" {
		return youtubeFallbackTitle
	}
	return title
}

func playerMediaDuration(p *Page) (string, error) {
	idx := -1
	p.Doc.Find(MediaSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "video" {
			idx = i
			return false
		}
		return true
	})
	if idx < 0 {
		return "", errNoMatch
	}

	secs, ok := p.Media.Duration(idx)
	if !usableDuration(secs, ok) {
		return "", errNoMatch
	}
	return formatMinutesSeconds(secs), nil
}

// selectorText accepts the first element's text when it is non-empty and differs from
// the raw document title.
func selectorText(name, selector string) Strategy[string] {
	return Strategy[string]{Name: name, Extract: func(p *Page) (string, error) {
		return distinctFromTitle(p, p.Doc.Find(selector).First().Text())
	}}
}

func metaContent(name, selector string) Strategy[string] {
	return Strategy[string]{Name: name, Extract: func(p *Page) (string, error) {
		content, _ := p.Doc.Find(selector).First().Attr("content")
		return distinctFromTitle(p, content)
	}}
}

func distinctFromTitle(p *Page, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == p.Title() {
		return "", errNoMatch
	}
	return text, nil
}
