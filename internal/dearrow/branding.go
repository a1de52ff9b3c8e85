package dearrow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// BrandingTitle is one crowd-submitted title. Entries arrive pre-sorted by
// preference; only the first is ever consulted.
type BrandingTitle struct {
	Title    string `json:"title"`
	Original bool   `json:"original"`
	Votes    int    `json:"votes"`
	Locked   bool   `json:"locked"`
	UUID     string `json:"UUID"`
	UserID   string `json:"userID,omitempty"`
}

// BrandingThumbnail is one crowd-submitted thumbnail reference. A nil
// Timestamp with Original set means "use the platform's default thumbnail".
type BrandingThumbnail struct {
	Timestamp *float64 `json:"timestamp"`
	Original  bool     `json:"original"`
	Votes     int      `json:"votes"`
	Locked    bool     `json:"locked"`
	UUID      string   `json:"UUID"`
	UserID    string   `json:"userID,omitempty"`
}

// BrandingVideo is the per-video payload inside a branding response.
type BrandingVideo struct {
	Titles        []BrandingTitle
	Thumbnails    []BrandingThumbnail
	RandomTime    *float64
	VideoDuration *float64
}

// parseBrandingEntry decodes one video's branding data field by field, so a
// partially malformed entry still yields whatever fields did parse.
func parseBrandingEntry(raw json.RawMessage) BrandingVideo {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return BrandingVideo{}
	}

	var video BrandingVideo
	if data, ok := fields["titles"]; ok {
		var titles []BrandingTitle
		if err := json.Unmarshal(data, &titles); err == nil {
			video.Titles = titles
		}
	}
	if data, ok := fields["thumbnails"]; ok {
		var thumbs []BrandingThumbnail
		if err := json.Unmarshal(data, &thumbs); err == nil {
			video.Thumbnails = thumbs
		}
	}
	if data, ok := fields["randomTime"]; ok {
		var t float64
		if err := json.Unmarshal(data, &t); err == nil {
			video.RandomTime = &t
		}
	}
	if data, ok := fields["videoDuration"]; ok {
		var d float64
		if err := json.Unmarshal(data, &d); err == nil && d > 0 {
			video.VideoDuration = &d
		}
	}
	return video
}

// parseBrandingResponse finds the entry for the exact video ID inside a
// response keyed by all IDs sharing the hashed prefix.
func parseBrandingResponse(body []byte, videoID string) (BrandingVideo, bool) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return BrandingVideo{}, false
	}
	raw, ok := entries[videoID]
	if !ok {
		return BrandingVideo{}, false
	}
	return parseBrandingEntry(raw), true
}

// HashPrefix returns the first 4 hex characters of the SHA-256 digest of the
// video ID: the k-anonymity key the branding service is queried by.
func HashPrefix(videoID string) string {
	sum := sha256.Sum256([]byte(videoID))
	return hex.EncodeToString(sum[:])[:4]
}
