package scanner

import (
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// Detector is a named detection pass contributing zero or more candidates.
type Detector struct {
	Name   string
	Detect func(p *Page) ([]models.VideoCandidate, error)
}

// DefaultDetectors returns the detection passes in output order: the YouTube platform
// record, generic media elements, then URL-pattern platform detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		{Name: "youtube", Detect: detectYouTube},
		{Name: "media-elements", Detect: detectGenericMedia},
		{Name: "vimeo", Detect: detectVimeo},
		{Name: "dailymotion", Detect: detectDailymotion},
		{Name: "twitch", Detect: detectTwitch},
	}
}

// Scanner runs detectors against a page.
type Scanner struct {
	detectors []Detector
}

// New creates a scanner. With no detectors, DefaultDetectors is used.
func New(detectors ...Detector) *Scanner {
	if len(detectors) == 0 {
		detectors = DefaultDetectors()
	}
	return &Scanner{detectors: detectors}
}

// Scan concatenates the output of every detector in order. A failing or panicking
// detector contributes nothing; Scan itself never fails and returns an empty, non-nil
// slice when nothing is found.
func (s *Scanner) Scan(p *Page) []models.VideoCandidate {
	out := make([]models.VideoCandidate, 0)
	if p == nil || p.Doc == nil {
		return out
	}
	if p.Media == nil {
		p.Media = StaticMedia{}
	}

	for _, d := range s.detectors {
		found, err := run(p, d.Name, d.Detect)
		if err != nil {
			continue
		}
		out = append(out, found...)
	}

	pageURL := ""
	if p.URL != nil {
		pageURL = p.URL.String()
	}
	logger.Log.Debug("Page scanned",
		zap.String("url", pageURL),
		zap.Int("candidates", len(out)),
	)

	return out
}
