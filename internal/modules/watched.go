package modules

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/extraneous/internal/core"
	"github.com/you/extraneous/internal/protocol"
)

const (
	LabelWatched   = "Watched"
	LabelUnwatched = "Unwatched"

	selTitleHeading = "div.h-box > h1"
)

// MarkWatchedFeed applies the configured CSS filter to every feed card whose
// video is recorded as watched. Each card is handled independently as its
// response arrives; a failed lookup leaves that card untouched.
func MarkWatchedFeed(ctx context.Context, backend Backend, videos []core.VideoInfo, cssFilter string) {
	responses := fanOut(ctx, backend, videos, func(v core.VideoInfo) protocol.Request {
		return protocol.Request{Type: protocol.RequestIsWatched, VideoID: v.VideoID}
	})
	for range videos {
		r := <-responses
		if r.err != nil {
			slog.Debug("watched: lookup failed", "videoId", r.video.VideoID, "err", r.err)
			continue
		}
		if r.resp.Type == protocol.ResponseIsWatched && r.resp.Value {
			appendStyle(r.video.Selection, "filter: "+cssFilter)
		}
	}
}

// InsertWatchToggle places a toggle button next to the watch-page title,
// reflecting the current state. The button carries the video id so an
// interactive shell can route clicks back through setWatched.
func InsertWatchToggle(doc *goquery.Document, video core.VideoInfo, watched bool) {
	label := LabelUnwatched
	if watched {
		label = LabelWatched
	}
	heading := doc.Find(selTitleHeading).First()
	if heading.Length() == 0 {
		return
	}
	heading.AppendHtml(`<button style="display:inline-block" data-video-id="` + video.VideoID + `">` + label + `</button>`)
}

// IsWatched asks the background for the persisted state of one video.
func IsWatched(ctx context.Context, backend Backend, videoID string) (bool, error) {
	resp, err := backend.Send(ctx, protocol.Request{Type: protocol.RequestIsWatched, VideoID: videoID})
	if err != nil {
		return false, err
	}
	return resp.Type == protocol.ResponseIsWatched && resp.Value, nil
}

// SetWatched records the state change; the same transition a natural video
// end would trigger.
func SetWatched(ctx context.Context, backend Backend, videoID string, value bool) error {
	_, err := backend.Send(ctx, protocol.Request{Type: protocol.RequestSetWatched, VideoID: videoID, Value: value})
	return err
}
