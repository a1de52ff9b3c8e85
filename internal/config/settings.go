package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// Settings are the daemon's runtime knobs, read from EXTRANEOUS_* environment
// variables with flag overrides applied in main.
type Settings struct {
	HTTPAddr         string
	SQLitePath       string
	SessionCap       int
	ThumbnailBaseURL string
	BrandingBaseURL  string
	ConfigFile       string
	RateRPS          int
	RateBurst        int
	Metrics          bool
}

const (
	defaultSQLitePath   = "extraneous.db"
	defaultHTTPAddr     = "127.0.0.1:8427"
	defaultThumbnailURL = "https://dearrow-thumb.ajay.app"
	defaultBrandingURL  = "https://sponsor.ajay.app"
	defaultRateRPS      = 20
	defaultRateBurst    = 40
)

func LoadSettings() Settings {
	s := Settings{}

	s.HTTPAddr = readString("EXTRANEOUS_HTTP_ADDR", defaultHTTPAddr)
	s.SQLitePath = readString("EXTRANEOUS_SQLITE_PATH", defaultSQLitePath)
	s.SessionCap = readInt("EXTRANEOUS_SESSION_CAP", 0)
	s.ThumbnailBaseURL = readString("EXTRANEOUS_THUMBNAIL_URL", defaultThumbnailURL)
	s.BrandingBaseURL = readString("EXTRANEOUS_BRANDING_URL", defaultBrandingURL)
	s.ConfigFile = readString("EXTRANEOUS_CONFIG_FILE", "")
	s.RateRPS = readInt("EXTRANEOUS_HTTP_RATE_RPS", defaultRateRPS)
	s.RateBurst = readInt("EXTRANEOUS_HTTP_RATE_BURST", defaultRateBurst)
	s.Metrics = readBool("EXTRANEOUS_HTTP_METRICS", true)

	return s
}

// Summary is the log-safe view of the settings.
func (s Settings) Summary() map[string]any {
	return map[string]any{
		"http_addr":     s.HTTPAddr,
		"sqlite_path":   s.SQLitePath,
		"session_cap":   s.SessionCap,
		"thumbnail_url": s.ThumbnailBaseURL,
		"branding_url":  s.BrandingBaseURL,
		"config_file":   s.ConfigFile,
		"rate_rps":      s.RateRPS,
		"rate_burst":    s.RateBurst,
		"metrics":       s.Metrics,
	}
}

func (s Settings) SummaryJSON() []byte {
	data, _ := json.Marshal(s.Summary())
	return data
}

func readString(name, def string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	return raw
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
