// Package modules applies the presentation effects to extracted videos:
// watched-marking, slop filtering, DeArrow relabeling and extra links. Every
// module degrades to "do nothing" on missing data; a broken page layout must
// never become a visible error.
package modules

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/extraneous/internal/core"
	"github.com/you/extraneous/internal/protocol"
)

// Backend is the page side of the message channel.
type Backend interface {
	Send(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

// cardResponse pairs a video with its background response. Requests for
// distinct cards are issued concurrently and applied in arrival order; there
// is no ordering guarantee across cards.
type cardResponse struct {
	video core.VideoInfo
	resp  protocol.Response
	err   error
}

// fanOut issues one request per video concurrently and streams responses
// back for serialized DOM mutation.
func fanOut(ctx context.Context, backend Backend, videos []core.VideoInfo, build func(core.VideoInfo) protocol.Request) <-chan cardResponse {
	out := make(chan cardResponse, len(videos))
	for _, video := range videos {
		go func(v core.VideoInfo) {
			resp, err := backend.Send(ctx, build(v))
			out <- cardResponse{video: v, resp: resp, err: err}
		}(video)
	}
	return out
}

// appendStyle merges a declaration into the element's inline style.
func appendStyle(sel *goquery.Selection, declaration string) {
	existing, _ := sel.Attr("style")
	existing = strings.TrimSpace(existing)
	if existing != "" && !strings.HasSuffix(existing, ";") {
		existing += "; "
	} else if existing != "" {
		existing += " "
	}
	sel.SetAttr("style", existing+declaration)
}
