// Package pagescript runs the page-context pipeline: classify the rendered
// page, extract video records, consult the background over the message
// channel and mutate the document in place.
package pagescript

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/extraneous/internal/config"
	"github.com/you/extraneous/internal/core"
	"github.com/you/extraneous/internal/extractor"
	"github.com/you/extraneous/internal/modules"
)

// ErrNotInvidious marks a document whose site metadata does not identify an
// Invidious instance; the pipeline leaves such pages untouched.
var ErrNotInvidious = errors.New("pagescript: not an Invidious page")

const selSiteName = "meta[property='og:site_name']"

// Options configure one transformation run.
type Options struct {
	Location *url.URL
	Config   config.ExtensionConfig
	Backend  modules.Backend

	// MarkWatched records the current watch-page video as watched before
	// presentation runs (the video-ended trigger, made explicit).
	MarkWatched bool

	// PlaylistWait bounds the mini-playlist wait; zero skips the playlist.
	PlaylistWait time.Duration

	// Playlist, when set, supplies later renderings of the page for the
	// lazy playlist list. The initial document is always checked first.
	Playlist *extractor.DocumentFeed
}

// Transform applies every enabled presentation module to the document.
// Extraction failures on the primary page abort the whole run (callers keep
// the original page); per-card feed failures are skipped inside the
// extractor.
func Transform(ctx context.Context, doc *goquery.Document, opts Options) error {
	if !isInvidious(doc) {
		return ErrNotInvidious
	}
	pageType := core.ClassifyPath(opts.Location.Path)
	if pageType == core.PageUnknown {
		return nil
	}

	cfg := opts.Config

	var (
		videos []core.VideoInfo
		err    error
	)
	if pageType == core.PageWatch {
		if err := transformWatch(ctx, doc, opts); err != nil {
			return err
		}
		videos, err = extractor.ExtractWatchNext(doc, opts.Location)
		if err != nil {
			return err
		}
	} else {
		videos = extractor.ExtractFeed(doc, opts.Location)
	}

	if cfg.HideSlop.Enabled {
		modules.HideSlop(videos, cfg.HideSlop.MinDuration, cfg.HideSlop.BadTitleRegex, pageType)
	}
	if cfg.Watched.Enabled {
		modules.MarkWatchedFeed(ctx, opts.Backend, videos, cfg.Watched.CSSFilter)
	}
	if cfg.DeArrow.Enabled {
		modules.DeArrowFeed(ctx, opts.Backend, videos, cfg.DeArrow)
	}

	if pageType == core.PageWatch && opts.PlaylistWait > 0 {
		applyMiniPlaylist(ctx, doc, opts)
	}

	return nil
}

func transformWatch(ctx context.Context, doc *goquery.Document, opts Options) error {
	cfg := opts.Config

	current, err := extractor.ExtractCurrentVideo(doc, opts.Location)
	if err != nil {
		return err
	}

	if opts.MarkWatched {
		if err := modules.SetWatched(ctx, opts.Backend, current.VideoID, true); err != nil {
			slog.Warn("pagescript: mark watched failed", "videoId", current.VideoID, "err", err)
		}
	}

	if cfg.Watched.Enabled {
		watched, err := modules.IsWatched(ctx, opts.Backend, current.VideoID)
		if err != nil {
			slog.Debug("pagescript: watch state lookup failed", "videoId", current.VideoID, "err", err)
		} else {
			modules.InsertWatchToggle(doc, current, watched)
		}
	}

	if cfg.DeArrow.Enabled {
		modules.DeArrowWatch(ctx, opts.Backend, doc, current, cfg.DeArrow)
	}

	if cfg.AdditionalLinks.CobaltTools {
		modules.AddCobaltLink(doc, current)
	}

	return nil
}

// applyMiniPlaylist waits for the lazily rendered playlist sidebar and runs
// the feed-policy modules over its items. The wait is bounded; a timeout
// just means no playlist UI this run.
func applyMiniPlaylist(ctx context.Context, doc *goquery.Document, opts Options) {
	feed := opts.Playlist
	if feed == nil {
		feed = extractor.NewDocumentFeed()
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.PlaylistWait)
	defer cancel()

	items, err := extractor.WaitMiniPlaylist(waitCtx, feed, doc, opts.Location)
	if err != nil {
		slog.Debug("pagescript: mini playlist unavailable", "err", err)
		return
	}

	cfg := opts.Config
	if cfg.Watched.Enabled {
		modules.MarkWatchedFeed(ctx, opts.Backend, items, cfg.Watched.CSSFilter)
	}
	if cfg.DeArrow.Enabled {
		modules.DeArrowFeed(ctx, opts.Backend, items, cfg.DeArrow)
	}
}

func isInvidious(doc *goquery.Document) bool {
	content, ok := doc.Find(selSiteName).First().Attr("content")
	return ok && strings.HasSuffix(content, "Invidious")
}
