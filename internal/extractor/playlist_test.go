package extractor

import (
	"context"
	"errors"
	"testing"
	"time"
)

const playlistShell = `<div id="playlist"><h3>Mix</h3></div>`

const playlistRendered = `<div id="playlist"><h3>Mix</h3><ol>
<li><a href="/watch?v=p1&list=PL1">First Item</a><p class="length">3:00</p></li>
<li><a href="/watch?v=p2&list=PL1">Second Item</a><p class="length">4:05</p></li>
<li><a href="/watch?v=p3&list=PL1"></a><p class="length">1:00</p></li>
</ol></div>`

func TestWaitMiniPlaylist_InitialSnapshotAlreadyRendered(t *testing.T) {
	base := mustURL(t, "https://inv.example/watch?v=p1&list=PL1")
	feed := NewDocumentFeed()

	videos, err := WaitMiniPlaylist(context.Background(), feed, parseDoc(t, playlistRendered), base)
	if err != nil {
		t.Fatalf("WaitMiniPlaylist: %v", err)
	}
	// The titleless third item is dropped, not fatal.
	if len(videos) != 2 {
		t.Fatalf("items = %d, want 2", len(videos))
	}
	if videos[0].VideoID != "p1" || videos[1].VideoID != "p2" {
		t.Fatalf("ids = %q, %q", videos[0].VideoID, videos[1].VideoID)
	}
	if videos[0].Title != "First Item" || videos[0].Duration != "3:00" {
		t.Fatalf("first item = %+v", videos[0])
	}
	if videos[0].ChannelName != "" {
		t.Fatalf("playlist items carry no channel, got %q", videos[0].ChannelName)
	}
}

func TestWaitMiniPlaylist_WakesOnLaterSnapshot(t *testing.T) {
	base := mustURL(t, "https://inv.example/watch?v=p1&list=PL1")
	feed := NewDocumentFeed()
	shell := parseDoc(t, playlistShell)

	type outcome struct {
		ids []string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		videos, err := WaitMiniPlaylist(context.Background(), feed, shell, base)
		var ids []string
		for _, v := range videos {
			ids = append(ids, v.VideoID)
		}
		done <- outcome{ids: ids, err: err}
	}()

	// Give the waiter time to subscribe, then publish an still-unrendered
	// snapshot followed by the rendered one.
	time.Sleep(20 * time.Millisecond)
	feed.Publish(parseDoc(t, playlistShell))
	time.Sleep(20 * time.Millisecond)
	feed.Publish(parseDoc(t, playlistRendered))

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("WaitMiniPlaylist: %v", got.err)
		}
		if len(got.ids) != 2 || got.ids[0] != "p1" {
			t.Fatalf("ids = %v", got.ids)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter never woke")
	}
}

func TestWaitMiniPlaylist_ContextCancel(t *testing.T) {
	base := mustURL(t, "https://inv.example/watch?v=p1&list=PL1")
	feed := NewDocumentFeed()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := WaitMiniPlaylist(ctx, feed, parseDoc(t, playlistShell), base)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
