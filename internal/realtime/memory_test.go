package realtime

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFeedPublishSubscribe(t *testing.T) {
	feed := NewMemoryFeed(8)
	defer feed.Close()

	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, "a", "b")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := feed.Publish(ctx, "a", Event{Table: "friendships", Op: OpInsert, RowID: "1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := feed.Publish(ctx, "b", Event{Table: "friendships", Op: OpDelete, RowID: "2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := feed.Publish(ctx, "c", Event{Table: "friendships", Op: OpUpdate, RowID: "3"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := make([]Event, 0, 2)
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d", len(got))
		}
	}

	if got[0].RowID != "1" || got[1].RowID != "2" {
		t.Fatalf("unexpected events: %+v", got)
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestMemoryFeedCancelStopsDelivery(t *testing.T) {
	feed := NewMemoryFeed(8)
	defer feed.Close()

	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, "a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancel()
	cancel() // idempotent

	if _, ok := <-events; ok {
		t.Fatal("expected channel to be closed after cancel")
	}

	if err := feed.Publish(ctx, "a", Event{Table: "friendships", Op: OpInsert, RowID: "1"}); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
}

func TestMemoryFeedClose(t *testing.T) {
	feed := NewMemoryFeed(8)

	events, cancel, err := feed.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := feed.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if _, ok := <-events; ok {
		t.Fatal("expected channel to be closed after feed close")
	}

	// Cancel after close must not panic.
	cancel()
}
