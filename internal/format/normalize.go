// Package format collapses raw stream variants into one canonical entry per quality tier.
package format

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/streamsave/streamsave-go/internal/models"
)

// Container defaults.
const (
	AudioOnlyContainer = "mp3"
	VideoContainer     = "mp4"
)

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// Normalize deduplicates raw variants by derived quality label and sorts the result by
// descending height. A variant carrying both audio and video replaces an earlier entry
// for the same label only when that entry lacks audio; otherwise the first one seen wins.
// Variants without any quality information are dropped. Normalize is pure.
func Normalize(raw []models.RawFormat) []models.ResolvedFormat {
	index := make(map[string]int, len(raw))
	out := make([]models.ResolvedFormat, 0, len(raw))

	for _, r := range raw {
		label := QualityLabel(r)
		if label == "" {
			continue
		}

		candidate := resolve(r, label)
		pos, seen := index[label]
		if !seen {
			index[label] = len(out)
			out = append(out, candidate)
			continue
		}

		if candidate.HasAudio && candidate.HasVideo && !out[pos].HasAudio {
			out[pos] = candidate
		}
	}

	// Stable: ties keep the order in which labels were first seen.
	slices.SortStableFunc(out, func(a, b models.ResolvedFormat) int {
		return cmp.Compare(Height(b), Height(a))
	})

	return out
}

// QualityLabel derives the label for a raw variant: the explicit label, then
// "{height}p", then "{audioBitrate}kbps". It returns "" when none is available.
func QualityLabel(r models.RawFormat) string {
	if label := strings.TrimSpace(r.QualityLabel); label != "" {
		return label
	}
	if r.Height > 0 {
		return fmt.Sprintf("%dp", r.Height)
	}
	if r.AudioBitrate > 0 {
		return fmt.Sprintf("%dkbps", r.AudioBitrate)
	}
	return ""
}

// Container returns the variant's container, defaulting to mp3 for audio-only variants.
func Container(r models.RawFormat) string {
	if c := strings.TrimSpace(r.Container); c != "" {
		return c
	}
	if !r.HasVideo {
		return AudioOnlyContainer
	}
	return VideoContainer
}

// Height returns the numeric height of a resolved format, parsing it from a "720p"-style
// label when the explicit height is missing. Non-numeric labels yield 0.
func Height(f models.ResolvedFormat) int {
	if f.Height > 0 {
		return f.Height
	}
	if !strings.Contains(f.QualityLabel, "p") || strings.HasSuffix(f.QualityLabel, "kbps") {
		return 0
	}
	m := leadingDigits.FindStringSubmatch(f.QualityLabel)
	if m == nil {
		return 0
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return h
}

func resolve(r models.RawFormat, label string) models.ResolvedFormat {
	return models.ResolvedFormat{
		FormatKey:    r.FormatKey,
		QualityLabel: label,
		Container:    Container(r),
		SizeBytes:    r.SizeBytes,
		DirectURL:    r.DirectURL,
		HasAudio:     r.HasAudio,
		HasVideo:     r.HasVideo,
		Height:       r.Height,
		AudioBitrate: r.AudioBitrate,
	}
}
