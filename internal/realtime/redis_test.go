package realtime

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func feedPayload(t *testing.T, event Event) string {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(payload)
}

func TestPumpEventsNeverBlocksOnSlowSubscriber(t *testing.T) {
	src := make(chan *goredis.Message, 3)
	src <- &goredis.Message{Channel: "c", Payload: feedPayload(t, Event{Table: "t", Op: OpInsert, RowID: "r1"})}
	src <- &goredis.Message{Channel: "c", Payload: "not json"}
	src <- &goredis.Message{Channel: "c", Payload: feedPayload(t, Event{Table: "t", Op: OpInsert, RowID: "r2"})}
	close(src)

	// A one-slot destination that nobody drains while the pump runs.
	dst := make(chan Event, 1)
	done := make(chan struct{})
	go func() {
		pumpEvents(dst, src, slog.Default())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump blocked on a full subscriber buffer")
	}

	event, ok := <-dst
	if !ok || event.RowID != "r1" {
		t.Fatalf("unexpected first event %+v", event)
	}
	if _, ok := <-dst; ok {
		t.Fatal("expected the overflow event to be dropped and the channel closed")
	}
}
