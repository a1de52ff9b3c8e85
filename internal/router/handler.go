// Package router is the boundary between the page script and the background
// daemon: the background half dispatches the typed request union, the page
// half exchanges one-shot request/response pairs over a WebSocket channel.
package router

import (
	"context"
	"time"

	"github.com/you/extraneous/internal/config"
	"github.com/you/extraneous/internal/dearrow"
	"github.com/you/extraneous/internal/protocol"
	"github.com/you/extraneous/internal/store"
)

var _ dearrow.Observer = (*Metrics)(nil)

// Handler executes protocol requests against the stores and the resolver.
type Handler struct {
	Store    *store.Durable
	Resolver *dearrow.Resolver
	Config   func() config.ExtensionConfig
	Metrics  *Metrics
}

// Handle maps one request to exactly one response. The switch is exhaustive
// over the request union; unknown tags become error responses, never a
// dropped exchange. Errors never cross the boundary as anything but the
// error variant.
func (h *Handler) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	start := time.Now()
	resp := h.dispatch(ctx, req)
	h.Metrics.ObserveRequest(req.Type, resp.Type, time.Since(start))
	return resp
}

func (h *Handler) dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	switch req.Type {
	case protocol.RequestEcho:
		return protocol.Response{Type: protocol.ResponseEcho, Response: "Echo!"}

	case protocol.RequestIsWatched:
		watched, err := h.Store.IsWatched(ctx, req.VideoID)
		if err != nil {
			return protocol.Errorf("isWatched: %v", err)
		}
		return protocol.Response{Type: protocol.ResponseIsWatched, Value: watched}

	case protocol.RequestSetWatched:
		if err := h.Store.SetWatched(ctx, req.VideoID, req.Value); err != nil {
			return protocol.Errorf("setWatched: %v", err)
		}
		return protocol.Response{Type: protocol.ResponseCompleted}

	case protocol.RequestDeArrow:
		trustedOnly := true
		if h.Config != nil {
			trustedOnly = h.Config().DeArrow.TrustedOnly
		}
		result := h.Resolver.Resolve(ctx, req.VideoID, nil, trustedOnly)
		if h.Resolver.Session != nil {
			h.Metrics.SetSessionEntries(h.Resolver.Session.Len())
		}
		return protocol.Response{
			Type:         protocol.ResponseDeArrow,
			Title:        result.Title,
			ThumbnailURI: result.ThumbnailURI,
		}

	default:
		return protocol.Errorf("unknown message type %q", req.Type)
	}
}
