// Package config holds the two configuration surfaces: the persisted
// extension config blob shared with the page script, and the daemon's own
// runtime settings loaded from the environment.
package config

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// ExtensionConfig is the settings object read by every presentation module
// and by the resolver. Reading it always yields a fully populated object:
// persisted partial state is merged over the compiled-in defaults, so blobs
// written by older schema versions stay forward-compatible.
type ExtensionConfig struct {
	Watched         WatchedConfig         `json:"watched"`
	HideSlop        HideSlopConfig        `json:"hideSlop"`
	DeArrow         DeArrowConfig         `json:"deArrow"`
	AdditionalLinks AdditionalLinksConfig `json:"additionalLinks"`
}

type WatchedConfig struct {
	Enabled   bool   `json:"enabled"`
	CSSFilter string `json:"cssFilter"`
}

type HideSlopConfig struct {
	Enabled       bool   `json:"enabled"`
	BadTitleRegex string `json:"badTitleRegex"`
	MinDuration   string `json:"minDuration"`
}

type DeArrowConfig struct {
	Enabled                 bool `json:"enabled"`
	TrustedOnly             bool `json:"trustedOnly"`
	HideInitialThumbnail    bool `json:"hideInitialThumbnail"`
	HighlightReplacedTitles bool `json:"highlightReplacedTitles"`
	KeepOriginalThumbnails  bool `json:"keepOriginalThumbnails"`
	KeepOriginalTitles      bool `json:"keepOriginalTitles"`
}

type AdditionalLinksConfig struct {
	CobaltTools bool `json:"cobaltTools"`
}

// Defaults returns the compiled-in configuration.
func Defaults() ExtensionConfig {
	return ExtensionConfig{
		Watched: WatchedConfig{
			Enabled:   true,
			CSSFilter: "blur(1px) sepia(1)",
		},
		HideSlop: HideSlopConfig{
			Enabled:       true,
			BadTitleRegex: "^.*#short.*$",
			MinDuration:   "00:10:00",
		},
		DeArrow: DeArrowConfig{
			Enabled:                 true,
			TrustedOnly:             true,
			HideInitialThumbnail:    false,
			HighlightReplacedTitles: true,
			KeepOriginalThumbnails:  false,
			KeepOriginalTitles:      false,
		},
		AdditionalLinks: AdditionalLinksConfig{
			CobaltTools: true,
		},
	}
}

// Merge overlays a persisted partial blob onto the defaults. Unmarshalling
// over a pre-populated struct touches only the fields present in the blob,
// which is exactly the deep-merge this schema needs.
func Merge(raw []byte) (ExtensionConfig, error) {
	merged := Defaults()
	if len(raw) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return Defaults(), errors.Wrap(err, "merge config")
	}
	return merged, nil
}

// Store is the slice of the durable store the config layer needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

const storeKey = "config"

// Load reads the persisted config, merges it over the defaults and writes
// the merged blob back, so the stored shape converges on the current schema.
func Load(ctx context.Context, s Store) (ExtensionConfig, error) {
	raw, err := s.Get(ctx, storeKey)
	if err != nil {
		return Defaults(), err
	}
	merged, err := Merge(raw)
	if err != nil {
		return Defaults(), err
	}
	if err := Save(ctx, s, merged); err != nil {
		return merged, err
	}
	return merged, nil
}

// Save persists the full config blob.
func Save(ctx context.Context, s Store, cfg ExtensionConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return s.Set(ctx, storeKey, raw)
}
