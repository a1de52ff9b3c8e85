// Package extractor turns rendered Invidious pages into VideoInfo records.
// The page structure is third-party and versioned; every selector lives here
// so a markup change is a one-package fix.
package extractor

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/you/extraneous/internal/core"
)

// Selectors for the Invidious card markup. The document is expected to have
// breaking changes; keep these in one place.
const (
	selCardRow         = "div.video-card-row"
	selCardTitle       = "div.video-card-row > a > p"
	selChannelLink     = "a[href^='/channel/']"
	selVideoLink       = "div.thumbnail > a"
	selDuration        = "div.thumbnail > div > p.length"
	selWatchTitle      = "div.h-box > h1"
	selPlayerContainer = "#player-container"
)

// ParseError identifies which field could not be located in the page.
type ParseError struct {
	Field string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: could not find %s", e.Field)
}

func parseErr(field string) error { return &ParseError{Field: field} }

// extractCard reads one video card. card is the element owning the
// video-card-row, base the document location for resolving relative links.
func extractCard(card *goquery.Selection, base *url.URL) (core.VideoInfo, error) {
	title := strings.TrimSpace(card.Find(selCardTitle).First().Text())
	if title == "" {
		return core.VideoInfo{}, parseErr("video title")
	}

	channelEl := card.Find(selChannelLink).First()
	channelName := strings.TrimSpace(channelEl.Text())
	if channelName == "" {
		return core.VideoInfo{}, parseErr("channel name")
	}
	channelHref, _ := channelEl.Attr("href")
	channelLink := NormalizeURL(channelHref, base)
	if channelLink == nil {
		return core.VideoInfo{}, parseErr("channel link")
	}

	videoHref, _ := card.Find(selVideoLink).First().Attr("href")
	videoLink := NormalizeURL(videoHref, base)
	if videoLink == nil {
		return core.VideoInfo{}, parseErr("video link")
	}
	videoID := videoIDFromURL(videoLink)
	if videoID == "" {
		return core.VideoInfo{}, parseErr("video id")
	}

	duration := strings.TrimSpace(card.Find(selDuration).First().Text())

	return core.VideoInfo{
		Title:       title,
		ChannelName: channelName,
		ChannelLink: channelLink,
		VideoLink:   videoLink,
		VideoID:     videoID,
		Duration:    duration,
		Selection:   card,
	}, nil
}

// cards selects every video card element: the parent of each video-card-row.
func cards(doc *goquery.Document) *goquery.Selection {
	return doc.Find(selCardRow).Parent()
}

// ExtractFeed reads all video cards on a feed or channel page. Feeds
// routinely contain privated or deleted videos with missing fields, so a
// card that fails to parse is logged and dropped rather than aborting the
// whole extraction.
func ExtractFeed(doc *goquery.Document, base *url.URL) []core.VideoInfo {
	var videos []core.VideoInfo
	cards(doc).Each(func(_ int, card *goquery.Selection) {
		video, err := extractCard(card, base)
		if err != nil {
			slog.Debug("extractor: skipping feed card", "err", err)
			return
		}
		videos = append(videos, video)
	})
	return videos
}

// ExtractWatchNext reads the "up next" cards on a watch page. The primary
// page shell is assumed stable, so any card failure fails the whole call.
func ExtractWatchNext(doc *goquery.Document, base *url.URL) ([]core.VideoInfo, error) {
	var (
		videos  []core.VideoInfo
		firstEr error
	)
	cards(doc).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		video, err := extractCard(card, base)
		if err != nil {
			firstEr = err
			return false
		}
		videos = append(videos, video)
		return true
	})
	if firstEr != nil {
		return nil, firstEr
	}
	return videos, nil
}

// ExtractCurrentVideo reads the video being played on a watch page. The
// returned Selection is the player container, the anchor for UI insertions.
// Absence of title, channel, video id or player container is a hard failure.
func ExtractCurrentVideo(doc *goquery.Document, base *url.URL) (core.VideoInfo, error) {
	title := strings.TrimSpace(firstTextNode(doc.Find(selWatchTitle).First()))
	if title == "" {
		return core.VideoInfo{}, parseErr("current video title")
	}

	channelEl := doc.Find(selChannelLink).First()
	channelName := strings.TrimSpace(channelEl.Text())
	if channelName == "" {
		return core.VideoInfo{}, parseErr("channel name")
	}
	channelHref, _ := channelEl.Attr("href")
	channelLink := NormalizeURL(channelHref, base)
	if channelLink == nil {
		return core.VideoInfo{}, parseErr("channel link")
	}
	channelID := channelIDFromPath(channelLink.Path)
	if channelID == "" {
		return core.VideoInfo{}, parseErr("channel id")
	}

	// The watch page has no card link for itself; the video URL is synthetic,
	// rebuilt from the location's query parameter.
	videoID := base.Query().Get("v")
	if videoID == "" {
		return core.VideoInfo{}, parseErr("video id")
	}
	videoLink := NormalizeURL("/watch?v="+url.QueryEscape(videoID), base)
	if videoLink == nil {
		return core.VideoInfo{}, parseErr("video link")
	}

	player := doc.Find(selPlayerContainer).First()
	if player.Length() == 0 {
		return core.VideoInfo{}, parseErr("player container")
	}

	return core.VideoInfo{
		Title:       title,
		ChannelName: channelName,
		ChannelLink: channelLink,
		ChannelID:   channelID,
		VideoLink:   videoLink,
		VideoID:     videoID,
		Selection:   player,
	}, nil
}

// NormalizeURL resolves a possibly relative href against the document
// location. Unparsable or empty input yields nil; callers decide whether a
// nil link is fatal.
func NormalizeURL(href string, base *url.URL) *url.URL {
	if strings.TrimSpace(href) == "" {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	if base == nil {
		if !ref.IsAbs() {
			return nil
		}
		return ref
	}
	return base.ResolveReference(ref)
}

func videoIDFromURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Query().Get("v")
}

func channelIDFromPath(path string) string {
	const prefix = "/channel/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// firstTextNode returns the text of the element's leading text node,
// skipping child elements (the watch title h1 also contains buttons).
func firstTextNode(sel *goquery.Selection) string {
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				return child.Data
			}
		}
	}
	return sel.Text()
}
