package extractor

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/extraneous/internal/core"
)

// Mini-playlist selectors. The sidebar widget renders its shell immediately
// but fills the inner list lazily, after a client-side delay.
const (
	selPlaylistList = "div#playlist ol"
	selPlaylistItem = "li"
	selItemLink     = "a[href^='/watch']"
	selItemDuration = "p.length"
)

// DocumentFeed publishes successive renderings of a page to one-shot
// subscribers. It stands in for mutation observation: whoever re-renders or
// re-reads the page calls Publish, and waiters wake on the first snapshot
// that satisfies them.
type DocumentFeed struct {
	mu   sync.Mutex
	subs map[chan *goquery.Document]struct{}
}

func NewDocumentFeed() *DocumentFeed {
	return &DocumentFeed{subs: make(map[chan *goquery.Document]struct{})}
}

// Publish delivers a snapshot to every subscriber. Slow subscribers miss
// snapshots rather than blocking the publisher.
func (f *DocumentFeed) Publish(doc *goquery.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- doc:
		default:
		}
	}
}

func (f *DocumentFeed) subscribe() chan *goquery.Document {
	ch := make(chan *goquery.Document, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *DocumentFeed) unsubscribe(ch chan *goquery.Document) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()
}

// WaitMiniPlaylist suspends until a snapshot contains the rendered inner
// playlist list, then extracts its items. The subscription is one-shot: it
// is released as soon as the list appears or the context is cancelled.
// initial, when non-nil, is checked first so an already-rendered list
// resolves without waiting; the subscription is taken before that check so
// no publication can slip between. There is no timeout of its own; bound
// the wait through ctx.
func WaitMiniPlaylist(ctx context.Context, feed *DocumentFeed, initial *goquery.Document, base *url.URL) ([]core.VideoInfo, error) {
	ch := feed.subscribe()
	defer feed.unsubscribe(ch)

	if initial != nil {
		if list := initial.Find(selPlaylistList).First(); list.Length() > 0 {
			return extractMiniPlaylist(list, base), nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case doc := <-ch:
			list := doc.Find(selPlaylistList).First()
			if list.Length() == 0 {
				continue
			}
			return extractMiniPlaylist(list, base), nil
		}
	}
}

// extractMiniPlaylist maps the rendered list items through the same tolerant
// policy as feed extraction. Items carry no channel link.
func extractMiniPlaylist(list *goquery.Selection, base *url.URL) []core.VideoInfo {
	var videos []core.VideoInfo
	list.Find(selPlaylistItem).Each(func(_ int, item *goquery.Selection) {
		video, err := extractPlaylistItem(item, base)
		if err != nil {
			slog.Debug("extractor: skipping playlist item", "err", err)
			return
		}
		videos = append(videos, video)
	})
	return videos
}

func extractPlaylistItem(item *goquery.Selection, base *url.URL) (core.VideoInfo, error) {
	link := item.Find(selItemLink).First()
	if link.Length() == 0 {
		return core.VideoInfo{}, parseErr("playlist item link")
	}
	title := strings.TrimSpace(link.Text())
	if title == "" {
		return core.VideoInfo{}, parseErr("playlist item title")
	}
	href, _ := link.Attr("href")
	videoLink := NormalizeURL(href, base)
	if videoLink == nil {
		return core.VideoInfo{}, parseErr("playlist item video link")
	}
	videoID := videoIDFromURL(videoLink)
	if videoID == "" {
		return core.VideoInfo{}, parseErr("playlist item video id")
	}

	duration := strings.TrimSpace(item.Find(selItemDuration).First().Text())

	return core.VideoInfo{
		Title:     title,
		VideoLink: videoLink,
		VideoID:   videoID,
		Duration:  duration,
		Selection: item,
	}, nil
}
