package modules

import (
	"strings"
	"testing"

	"github.com/you/extraneous/internal/core"
)

func TestParseDurationSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"45", 45},
		{"0:45", 45},
		{"10:00", 600},
		{"00:10:00", 600},
		{"10:00:00", 36000},
		{"1:02:03", 3723},
	}
	for _, tc := range tests {
		got, err := ParseDurationSeconds(tc.in)
		if err != nil {
			t.Fatalf("ParseDurationSeconds(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDurationSeconds(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"ten minutes", "10:xx", "", "1:2:3:4:5x"} {
		if _, err := ParseDurationSeconds(bad); err == nil {
			t.Fatalf("ParseDurationSeconds(%q): want error", bad)
		}
	}
}

func TestHideSlop_DurationAndTitleRules(t *testing.T) {
	_, videos := feedDoc(t, []cardFixture{
		{videoID: "short", title: "Quick clip", duration: "00:05"},
		{videoID: "long", title: "Full video", duration: "15:00"},
		{videoID: "tagged", title: "Watch this #short now", duration: "20:00"},
	})

	HideSlop(videos, "00:10:00", "^.*#short.*$", core.PageFeed)

	if !strings.Contains(cellStyle(videos[0]), "display: none") {
		t.Fatalf("short video not hidden")
	}
	if strings.Contains(cellStyle(videos[1]), "display: none") {
		t.Fatalf("long video hidden")
	}
	if !strings.Contains(cellStyle(videos[2]), "display: none") {
		t.Fatalf("title-matched video not hidden")
	}
}

func TestHideSlop_MalformedThresholdDisablesOnlyDurationRule(t *testing.T) {
	_, videos := feedDoc(t, []cardFixture{
		{videoID: "short", title: "Quick clip", duration: "00:05"},
		{videoID: "tagged", title: "A #short one", duration: "20:00"},
	})

	HideSlop(videos, "ten minutes", "^.*#short.*$", core.PageFeed)

	if strings.Contains(cellStyle(videos[0]), "display: none") {
		t.Fatalf("duration rule fired despite malformed threshold")
	}
	if !strings.Contains(cellStyle(videos[1]), "display: none") {
		t.Fatalf("title rule should survive a malformed threshold")
	}
}

func TestHideSlop_LivestreamNeverHiddenByDuration(t *testing.T) {
	_, videos := feedDoc(t, []cardFixture{
		{videoID: "live", title: "Live now", duration: ""},
	})

	HideSlop(videos, "00:10:00", "", core.PageFeed)

	if strings.Contains(cellStyle(videos[0]), "display: none") {
		t.Fatalf("durationless card hidden")
	}
}

func TestHideSlop_WatchPageHidesCardItself(t *testing.T) {
	_, videos := feedDoc(t, []cardFixture{
		{videoID: "short", title: "Up next clip", duration: "00:05"},
	})

	HideSlop(videos, "00:10:00", "", core.PageWatch)

	style, _ := videos[0].Selection.Attr("style")
	if !strings.Contains(style, "display: none") {
		t.Fatalf("watch-page card not hidden directly, style = %q", style)
	}
	if strings.Contains(cellStyle(videos[0]), "display: none") {
		t.Fatalf("watch-page hiding touched the parent cell")
	}
}
