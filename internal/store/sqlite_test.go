package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/you/extraneous/internal/core"
)

func openTestDurable(t *testing.T) *Durable {
	t.Helper()
	d, err := OpenDurable(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDurable: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDurable_WatchRoundTrip(t *testing.T) {
	d := openTestDurable(t)
	ctx := context.Background()

	watched, err := d.IsWatched(ctx, "vid1")
	if err != nil {
		t.Fatalf("IsWatched before write: %v", err)
	}
	if watched {
		t.Fatalf("unreferenced video should default to unwatched")
	}

	if err := d.SetWatched(ctx, "vid1", true); err != nil {
		t.Fatalf("SetWatched(true): %v", err)
	}
	watched, err = d.IsWatched(ctx, "vid1")
	if err != nil {
		t.Fatalf("IsWatched after write: %v", err)
	}
	if !watched {
		t.Fatalf("IsWatched = false, want true")
	}

	// Toggling back down persists too.
	if err := d.SetWatched(ctx, "vid1", false); err != nil {
		t.Fatalf("SetWatched(false): %v", err)
	}
	watched, err = d.IsWatched(ctx, "vid1")
	if err != nil {
		t.Fatalf("IsWatched after toggle: %v", err)
	}
	if watched {
		t.Fatalf("IsWatched = true, want false")
	}
}

func TestDurable_KeysAreNamespaced(t *testing.T) {
	d := openTestDurable(t)
	ctx := context.Background()

	if err := d.SetWatched(ctx, "vid2", true); err != nil {
		t.Fatalf("SetWatched: %v", err)
	}

	raw, err := d.Get(ctx, core.VideoKey("vid2"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if raw == nil {
		t.Fatalf("expected record under %q", core.VideoKey("vid2"))
	}

	// The bare video ID is not a key.
	raw, err = d.Get(ctx, "vid2")
	if err != nil {
		t.Fatalf("Get bare id: %v", err)
	}
	if raw != nil {
		t.Fatalf("bare id lookup returned %q, want miss", raw)
	}
}

func TestDurable_GetMissingKey(t *testing.T) {
	d := openTestDurable(t)

	raw, err := d.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if raw != nil {
		t.Fatalf("Get missing = %q, want nil", raw)
	}

	rec, err := d.GetRecord(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec != nil {
		t.Fatalf("GetRecord missing = %+v, want nil", rec)
	}
}

func TestDurable_SetOverwrites(t *testing.T) {
	d := openTestDurable(t)
	ctx := context.Background()

	if err := d.Set(ctx, ConfigKey, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Set(ctx, ConfigKey, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	raw, err := d.Get(ctx, ConfigKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(raw) != `{"a":2}` {
		t.Fatalf("Get = %s, want second write", raw)
	}
}

func TestSession_CapRejectsNewKeys(t *testing.T) {
	s := NewSession(2)

	if err := s.Set("a", core.VideoCache{DeArrowTitle: "A"}); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := s.Set("b", core.VideoCache{DeArrowTitle: "B"}); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	if err := s.Set("c", core.VideoCache{DeArrowTitle: "C"}); err == nil {
		t.Fatalf("Set past cap succeeded, want error")
	}

	// Overwrites of existing keys still go through.
	if err := s.Set("a", core.VideoCache{DeArrowTitle: "A2"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	entry, ok := s.Get("a")
	if !ok || entry.DeArrowTitle != "A2" {
		t.Fatalf("Get a = %+v %v, want overwritten entry", entry, ok)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestSession_MissIsNotAnError(t *testing.T) {
	s := NewSession(0)
	if _, ok := s.Get("missing"); ok {
		t.Fatalf("Get on empty cache reported a hit")
	}
}
