package modules

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/extraneous/internal/core"
)

// HideSlop hides feed cards whose title matches the exclusion pattern or
// whose duration falls below the threshold. A malformed threshold disables
// the duration rule defensively; the title rule stays active on its own.
// Cards with no duration (livestreams) are never hidden by the duration
// rule.
func HideSlop(videos []core.VideoInfo, minDuration, badTitlePattern string, pageType core.PageType) {
	minSeconds, err := ParseDurationSeconds(minDuration)
	durationRule := err == nil
	if err != nil {
		slog.Warn("hideslop: invalid minimum duration, duration rule disabled", "value", minDuration, "err", err)
	}

	var badTitle *regexp.Regexp
	if badTitlePattern != "" {
		badTitle, err = regexp.Compile(badTitlePattern)
		if err != nil {
			slog.Warn("hideslop: invalid title pattern, title rule disabled", "pattern", badTitlePattern, "err", err)
		}
	}

	removed := 0
	for _, video := range videos {
		target := hideTarget(video, pageType)
		if target == nil || target.Length() == 0 {
			continue
		}

		if badTitle != nil && badTitle.MatchString(video.Title) {
			hide(target)
			removed++
			continue
		}

		if !durationRule || video.Duration == "" {
			continue
		}
		seconds, err := ParseDurationSeconds(video.Duration)
		if err != nil {
			continue
		}
		if seconds < minSeconds {
			hide(target)
			removed++
		}
	}
	slog.Info("hideslop: removed videos matching criteria", "count", removed)
}

// hideTarget picks the element to blank: on feed pages the card's parent
// owns the grid cell, on watch pages the card itself does.
func hideTarget(video core.VideoInfo, pageType core.PageType) *goquery.Selection {
	if pageType == core.PageFeed {
		return video.Selection.Parent()
	}
	return video.Selection
}

func hide(sel *goquery.Selection) {
	appendStyle(sel, "display: none")
}

// ParseDurationSeconds converts "SS", "MM:SS" or "HH:MM:SS" into total
// seconds: each colon-separated segment contributes segment * 60^place.
func ParseDurationSeconds(duration string) (int, error) {
	segments := strings.Split(duration, ":")
	seconds := 0
	for i, segment := range segments {
		n, err := strconv.Atoi(strings.TrimSpace(segment))
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", duration, err)
		}
		place := len(segments) - i - 1
		seconds += n * pow60(place)
	}
	return seconds, nil
}

func pow60(n int) int {
	out := 1
	for ; n > 0; n-- {
		out *= 60
	}
	return out
}
