// Package dearrow resolves crowd-sourced replacement titles and thumbnails
// for videos. It runs only in the background daemon: it needs cross-origin
// network access and the session cache.
package dearrow

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/you/extraneous/internal/core"
	"github.com/you/extraneous/internal/store"
)

const (
	defaultThumbnailBase = "https://dearrow-thumb.ajay.app"
	defaultBrandingBase  = "https://sponsor.ajay.app"

	headerTimestamp = "X-Timestamp"
	headerTitle     = "X-Title"

	maxThumbnailBytes = 2 << 20
	maxBrandingBytes  = 1 << 20
)

// doNotAutoformat is DeArrow's ">x" marker: submitters prefix a character
// with ">" to opt that word out of server-side autoformatting. Display
// strips the marker down to the character itself.
var doNotAutoformat = regexp.MustCompile(`>(\S)`)

// Observer receives resolver events for metrics. All methods must accept a
// nil receiver-side implementation; the resolver checks for nil itself.
type Observer interface {
	CacheLookup(hit bool)
	UpstreamFetch(service, outcome string)
}

// Result is a best-effort resolution. Nil fields mean "keep whatever is
// already on screen"; callers never see an error for upstream failures.
type Result struct {
	Title        *string
	ThumbnailURI *string
}

// Resolver combines the session cache, the thumbnail image service and the
// branding metadata service behind one lookup.
type Resolver struct {
	ThumbnailBase string
	BrandingBase  string
	HTTP          *http.Client
	Session       *store.Session
	Observer      Observer
}

func NewResolver(session *store.Session) *Resolver {
	return &Resolver{
		ThumbnailBase: defaultThumbnailBase,
		BrandingBase:  defaultBrandingBase,
		HTTP:          &http.Client{Timeout: 15 * time.Second},
		Session:       session,
	}
}

// thumbnailFetch is the outcome of one thumbnail service call.
type thumbnailFetch struct {
	uri        *string  // data URI, nil when the body was empty
	reportedAt *float64 // X-Timestamp header, nil when absent or unparsable
	title      string   // X-Title header fallback
	status     int
	empty      bool
}

// Resolve determines the best available title and thumbnail for a video.
// knownDuration, when non-nil, lets a caller-supplied duration stand in for
// a branding response that omits videoDuration. trustedOnly applies the
// crowd-title trust policy.
//
// Within one call the steps are strictly sequential: cache check, default
// thumbnail fetch, conditional branding fetch, conditional reconciliation
// fetch. Calls for distinct videos are independent and unordered.
func (r *Resolver) Resolve(ctx context.Context, videoID string, knownDuration *float64, trustedOnly bool) Result {
	var (
		title         string
		thumbnailTime *float64
	)

	if r.Session != nil {
		entry, ok := r.Session.Get(videoID)
		r.observeCache(ok)
		if ok {
			title = entry.DeArrowTitle
			thumbnailTime = entry.DeArrowThumbnailTime
		}
	}

	// The thumbnail image itself is never cached; always fetch it fresh.
	thumb := r.fetchThumbnail(ctx, videoID, nil)
	thumbnailURI := thumb.uri

	if title == "" && thumbnailTime == nil {
		branding, ok := r.fetchBranding(ctx, videoID)
		if ok {
			if len(branding.Thumbnails) > 0 && branding.Thumbnails[0].Timestamp != nil {
				thumbnailTime = branding.Thumbnails[0].Timestamp
			} else if branding.RandomTime != nil {
				duration := branding.VideoDuration
				if duration == nil {
					duration = knownDuration
				}
				if duration != nil {
					t := *branding.RandomTime * *duration
					thumbnailTime = &t
				}
			}

			// The crowd data says the platform default is the right
			// thumbnail; the caller already has it natively.
			if thumbnailTime == nil && thumbnailURI != nil &&
				len(branding.Thumbnails) > 0 && branding.Thumbnails[0].Original {
				thumbnailURI = nil
			}

			if len(branding.Titles) > 0 && titleTrusted(branding.Titles[0], trustedOnly) {
				title = unescapeTitle(branding.Titles[0].Title)
				if r.Session != nil {
					err := r.Session.Set(videoID, core.VideoCache{
						DeArrowTitle:         title,
						DeArrowThumbnailTime: thumbnailTime,
					})
					if err != nil {
						// No eviction policy: a full cache just means a miss
						// and an extra round trip next time.
						slog.Warn("dearrow: session cache write failed", "videoId", videoID, "err", err)
					}
				}
			}
		} else if thumb.title != "" {
			// Branding service down or no entry; the thumbnail mirror's
			// X-Title header is the degraded-mode title source.
			title = thumb.title
		}
	}

	// Reconciliation re-fetch: the default thumbnail was missing (204) or is
	// stale relative to the resolved branding timestamp.
	if thumbnailTime != nil {
		missed := thumb.empty && thumb.status == http.StatusNoContent
		stale := thumbnailURI != nil && thumb.reportedAt != nil && *thumb.reportedAt != *thumbnailTime
		if missed || stale {
			retry := r.fetchThumbnail(ctx, videoID, thumbnailTime)
			if retry.uri != nil {
				thumbnailURI = retry.uri
			}
		}
	}

	result := Result{ThumbnailURI: thumbnailURI}
	if title != "" {
		result.Title = &title
	}
	return result
}

// titleTrusted applies the crowd-title trust policy: accept unless the
// caller demands trusted submissions and this one is neither locked nor
// non-negatively voted.
func titleTrusted(entry BrandingTitle, trustedOnly bool) bool {
	return !trustedOnly || entry.Locked || entry.Votes >= 0
}

func unescapeTitle(title string) string {
	return doNotAutoformat.ReplaceAllString(title, "$1")
}

func (r *Resolver) fetchThumbnail(ctx context.Context, videoID string, at *float64) thumbnailFetch {
	endpoint := r.ThumbnailBase + "/api/v1/getThumbnail?videoID=" + url.QueryEscape(videoID)
	if at != nil {
		endpoint += "&time=" + strconv.FormatFloat(*at, 'f', -1, 64)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		r.observeFetch("thumbnail", "error")
		return thumbnailFetch{empty: true}
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		slog.Warn("dearrow: thumbnail fetch failed", "videoId", videoID, "err", err)
		r.observeFetch("thumbnail", "error")
		return thumbnailFetch{empty: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		r.observeFetch("thumbnail", "error")
		return thumbnailFetch{status: resp.StatusCode, empty: true}
	}

	fetch := thumbnailFetch{
		status: resp.StatusCode,
		empty:  len(body) == 0,
		title:  resp.Header.Get(headerTitle),
	}
	if raw := resp.Header.Get(headerTimestamp); raw != "" {
		if ts, err := strconv.ParseFloat(raw, 64); err == nil {
			fetch.reportedAt = &ts
		}
	}
	if !fetch.empty {
		uri := dataURI(resp.Header.Get("Content-Type"), body)
		fetch.uri = &uri
		r.observeFetch("thumbnail", "ok")
	} else {
		r.observeFetch("thumbnail", "empty")
	}
	return fetch
}

func (r *Resolver) fetchBranding(ctx context.Context, videoID string) (BrandingVideo, bool) {
	endpoint := r.BrandingBase + "/api/branding/" + HashPrefix(videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		r.observeFetch("branding", "error")
		return BrandingVideo{}, false
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		slog.Warn("dearrow: branding fetch failed", "videoId", videoID, "err", err)
		r.observeFetch("branding", "error")
		return BrandingVideo{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.observeFetch("branding", "status")
		return BrandingVideo{}, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBrandingBytes))
	if err != nil {
		r.observeFetch("branding", "error")
		return BrandingVideo{}, false
	}

	video, ok := parseBrandingResponse(body, videoID)
	if !ok {
		r.observeFetch("branding", "miss")
		return BrandingVideo{}, false
	}
	r.observeFetch("branding", "ok")
	return video, true
}

func (r *Resolver) httpClient() *http.Client {
	if r.HTTP != nil {
		return r.HTTP
	}
	return http.DefaultClient
}

func (r *Resolver) observeCache(hit bool) {
	if r.Observer != nil {
		r.Observer.CacheLookup(hit)
	}
}

func (r *Resolver) observeFetch(service, outcome string) {
	if r.Observer != nil {
		r.Observer.UpstreamFetch(service, outcome)
	}
}

// dataURI converts fetched image bytes into an embeddable representation.
func dataURI(contentType string, body []byte) string {
	if contentType == "" {
		contentType = "image/webp"
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(body))
}
