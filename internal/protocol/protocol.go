// Package protocol defines the request/response wire format exchanged
// between the page script and the background daemon. Both unions are closed:
// new operations are added by extending the tag sets and the router's switch,
// never by sniffing extra fields.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Request tags.
const (
	RequestEcho       = "echo"
	RequestIsWatched  = "isWatched"
	RequestSetWatched = "setWatched"
	RequestDeArrow    = "deArrow"
)

// Response tags.
const (
	ResponseEcho      = "echo"
	ResponseIsWatched = "isWatched"
	ResponseCompleted = "completed"
	ResponseError     = "error"
	ResponseDeArrow   = "deArrow"
)

// Request is a tagged message sent from the page script to the background
// daemon. VideoID accompanies every tag except echo; Value only setWatched.
type Request struct {
	Type    string `json:"type"`
	VideoID string `json:"videoId,omitempty"`
	Value   bool   `json:"value,omitempty"`
}

// Response is the tagged reply. Exactly one response (or an error response)
// is produced per request.
type Response struct {
	Type         string  `json:"type"`
	Response     string  `json:"response,omitempty"`
	Value        bool    `json:"value,omitempty"`
	Description  string  `json:"description,omitempty"`
	Title        *string `json:"title,omitempty"`
	ThumbnailURI *string `json:"thumbnailUri,omitempty"`
}

// Validate checks a decoded request against the closed union. A request with
// an unknown tag is not an error at this layer; the router answers it with an
// error response. Known tags missing their payload are rejected here.
func (r Request) Validate() error {
	switch r.Type {
	case RequestEcho:
		return nil
	case RequestIsWatched, RequestSetWatched, RequestDeArrow:
		if r.VideoID == "" {
			return fmt.Errorf("protocol: %s request missing videoId", r.Type)
		}
		return nil
	default:
		return nil
	}
}

// Known reports whether the tag belongs to the request union.
func (r Request) Known() bool {
	switch r.Type {
	case RequestEcho, RequestIsWatched, RequestSetWatched, RequestDeArrow:
		return true
	}
	return false
}

// Errorf builds an error response with a human-readable description.
func Errorf(format string, args ...any) Response {
	return Response{Type: ResponseError, Description: fmt.Sprintf(format, args...)}
}

// DecodeRequest parses a request and validates its payload.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("protocol: decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}
