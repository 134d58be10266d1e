package scanner

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/streamsave/streamsave-go/internal/models"
)

var (
	vimeoPathRegex       = regexp.MustCompile(`^/(?:video/)?(\d+)(?:/|$)`)
	dailymotionPathRegex = regexp.MustCompile(`^/video/([a-zA-Z0-9]+)`)
	twitchChannelRegex   = regexp.MustCompile(`^[a-zA-Z0-9_]{2,25}$`)
)

// twitchReservedPaths are first path segments that never name a channel.
var twitchReservedPaths = []string{
	"directory", "videos", "settings", "search", "downloads", "subscriptions",
	"inventory", "wallet", "friends", "messages", "turbo", "prime", "jobs",
	"login", "signup", "p", "store", "drops",
}

// detectVimeo reports vimeo.com/<id> and player.vimeo.com/video/<id> pages.
func detectVimeo(p *Page) ([]models.VideoCandidate, error) {
	if !hostMatches(p, "vimeo.com") {
		return nil, nil
	}
	m := vimeoPathRegex.FindStringSubmatch(p.URL.Path)
	if m == nil {
		return nil, nil
	}
	id := m[1]
	return []models.VideoCandidate{platformCandidate(p, models.PlatformVimeo, "vimeo_"+id,
		"https://vimeo.com/"+id, "Vimeo Video", models.DurationUnknown)}, nil
}

func detectDailymotion(p *Page) ([]models.VideoCandidate, error) {
	if !hostMatches(p, "dailymotion.com") {
		return nil, nil
	}
	m := dailymotionPathRegex.FindStringSubmatch(p.URL.Path)
	if m == nil {
		return nil, nil
	}
	id := m[1]
	return []models.VideoCandidate{platformCandidate(p, models.PlatformDailymotion, "dailymotion_"+id,
		"https://www.dailymotion.com/video/"+id, "Dailymotion Video", models.DurationUnknown)}, nil
}

// detectTwitch treats the first non-reserved path segment as a live channel.
func detectTwitch(p *Page) ([]models.VideoCandidate, error) {
	if !hostMatches(p, "twitch.tv") {
		return nil, nil
	}
	segments := lo.Compact(strings.Split(p.URL.Path, "/"))
	if len(segments) == 0 {
		return nil, nil
	}
	channel := segments[0]
	if lo.Contains(twitchReservedPaths, strings.ToLower(channel)) || !twitchChannelRegex.MatchString(channel) {
		return nil, nil
	}
	return []models.VideoCandidate{platformCandidate(p, models.PlatformTwitch, "twitch_"+strings.ToLower(channel),
		"https://www.twitch.tv/"+channel, channel+" (Live)", models.DurationLive)}, nil
}

func platformCandidate(p *Page, platform models.Platform, id, sourceURL, fallbackTitle, duration string) models.VideoCandidate {
	title := p.Title()
	if title == "" {
		title = fallbackTitle
	}
	return models.VideoCandidate{
		ID:             id,
		Title:          title,
		SourceURL:      sourceURL,
		DurationLabel:  duration,
		QualityLabel:   defaultVideoQuality,
		QualityOptions: []string{defaultVideoQuality},
		ThumbnailRef:   models.PlaceholderThumbnail,
		Platform:       platform,
	}
}

// hostMatches reports whether the page host is domain or one of its subdomains.
func hostMatches(p *Page, domain string) bool {
	if p.URL == nil {
		return false
	}
	host := strings.ToLower(p.URL.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}
