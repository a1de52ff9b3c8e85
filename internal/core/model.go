package core

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageType classifies the Invidious page a document was rendered from.
type PageType int

const (
	PageUnknown PageType = iota
	PageWatch
	PageFeed
)

func (p PageType) String() string {
	switch p {
	case PageWatch:
		return "watch"
	case PageFeed:
		return "feed"
	default:
		return "unknown"
	}
}

// ClassifyPath maps a document path onto a PageType. Watch pages live at
// /watch; feeds cover /feed/* and channel pages.
func ClassifyPath(path string) PageType {
	switch {
	case path == "/watch":
		return PageWatch
	case strings.HasPrefix(path, "/feed"):
		return PageFeed
	case strings.HasPrefix(path, "/channel/"):
		return PageFeed
	default:
		return PageUnknown
	}
}

// VideoInfo is one extracted video card, rebuilt on every page load.
//
// Selection is the owning handle into the parsed document, used only for
// presentation mutation. It must never cross the page/background boundary;
// only plain identifiers travel over the protocol.
type VideoInfo struct {
	Title       string
	ChannelName string
	ChannelLink *url.URL // nil for mini-playlist items
	ChannelID   string   // resolved for the current video only
	VideoLink   *url.URL
	VideoID     string // non-empty for every record presentation acts on
	Duration    string // empty for livestreams

	Selection *goquery.Selection
}

// VideoRecord is the durable per-video state, keyed by video_<id>.
type VideoRecord struct {
	IsWatched bool `json:"isWatched"`
}

// VideoCache is the session-scoped resolution cache entry, keyed by
// video_<id>. ThumbnailTime is nil when only a title was resolved.
type VideoCache struct {
	DeArrowTitle         string   `json:"deArrowTitle"`
	DeArrowThumbnailTime *float64 `json:"deArrowThumbnailTime"`
}

// VideoKey builds the namespaced storage key shared by the durable store and
// the session cache.
func VideoKey(videoID string) string {
	return "video_" + videoID
}
