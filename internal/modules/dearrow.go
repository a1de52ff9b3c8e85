package modules

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/you/extraneous/internal/config"
	"github.com/you/extraneous/internal/core"
	"github.com/you/extraneous/internal/protocol"
)

const (
	selCardThumbnail = "img.thumbnail"
	selCardTitleText = "div.video-card-row > a > p"

	// 1x1 transparent gif, used when the original thumbnail must not flash
	// before the replacement arrives.
	blankImage = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"
)

// DeArrowFeed swaps crowd-sourced titles and thumbnails into feed cards.
// Each card resolves independently; a nil title or thumbnail in the response
// means "keep what is on screen".
func DeArrowFeed(ctx context.Context, backend Backend, videos []core.VideoInfo, cfg config.DeArrowConfig) {
	if cfg.HideInitialThumbnail && !cfg.KeepOriginalThumbnails {
		for _, video := range videos {
			video.Selection.Find(selCardThumbnail).First().SetAttr("src", blankImage)
		}
	}

	responses := fanOut(ctx, backend, videos, func(v core.VideoInfo) protocol.Request {
		return protocol.Request{Type: protocol.RequestDeArrow, VideoID: v.VideoID}
	})
	for range videos {
		r := <-responses
		if r.err != nil {
			slog.Debug("dearrow: resolve failed", "videoId", r.video.VideoID, "err", r.err)
			continue
		}
		if r.resp.Type != protocol.ResponseDeArrow {
			continue
		}
		applyCard(r.video, r.resp, cfg)
	}
}

func applyCard(video core.VideoInfo, resp protocol.Response, cfg config.DeArrowConfig) {
	if resp.ThumbnailURI != nil && !cfg.KeepOriginalThumbnails {
		video.Selection.Find(selCardThumbnail).First().SetAttr("src", *resp.ThumbnailURI)
	}
	if resp.Title == nil || cfg.KeepOriginalTitles {
		return
	}
	titleEl := video.Selection.Find(selCardTitleText).First()
	if titleEl.Length() == 0 {
		return
	}
	titleEl.SetAttr("title", video.Title) // original title as tooltip
	titleEl.SetText(*resp.Title)
	if cfg.HighlightReplacedTitles {
		appendStyle(titleEl, "text-decoration: underline")
	}
}

// DeArrowWatch relabels the currently playing video's heading.
func DeArrowWatch(ctx context.Context, backend Backend, doc *goquery.Document, video core.VideoInfo, cfg config.DeArrowConfig) {
	if cfg.KeepOriginalTitles {
		return
	}
	resp, err := backend.Send(ctx, protocol.Request{Type: protocol.RequestDeArrow, VideoID: video.VideoID})
	if err != nil {
		slog.Debug("dearrow: resolve failed", "videoId", video.VideoID, "err", err)
		return
	}
	if resp.Type != protocol.ResponseDeArrow || resp.Title == nil {
		return
	}
	heading := doc.Find(selTitleHeading).First()
	if heading.Length() == 0 {
		return
	}
	if setFirstTextNode(heading, *resp.Title) {
		heading.SetAttr("title", video.Title)
	}
}

// setFirstTextNode replaces only the element's leading text node, leaving
// sibling elements (buttons inserted into the heading) in place.
func setFirstTextNode(sel *goquery.Selection, text string) bool {
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				child.Data = text
				return true
			}
		}
	}
	return false
}
