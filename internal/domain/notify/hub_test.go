package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func waitEvent(t *testing.T, ch <-chan []byte) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func waitConnections(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, h.ConnectionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHubWithInstanceID(nil, "local")
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h
}

func TestPublishReachesRecipientsOnly(t *testing.T) {
	h := startHub(t)

	student, teacher, other := uuid.New(), uuid.New(), uuid.New()
	conns := map[uuid.UUID]*Connection{}
	for _, id := range []uuid.UUID{student, teacher, other} {
		c := &Connection{UserID: id, Send: make(chan []byte, 4)}
		h.Register(c)
		conns[id] = c
	}
	waitConnections(t, h, 3)

	classID := uuid.New()
	h.Publish(context.Background(), Event{
		Type:       EventSlotAccepted,
		Recipients: []uuid.UUID{student, teacher},
		ClassID:    classID,
		Status:     "confirmed",
		OccurredAt: time.Now().UTC(),
	})

	for _, id := range []uuid.UUID{student, teacher} {
		ev := waitEvent(t, conns[id].Send)
		if ev.Type != EventSlotAccepted || ev.ClassID != classID {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	select {
	case <-conns[other].Send:
		t.Fatal("non-recipient received an event")
	default:
	}
}

func TestRemoteEventsFromOtherInstances(t *testing.T) {
	h := startHub(t)
	user := uuid.New()
	c := &Connection{UserID: user, Send: make(chan []byte, 4)}
	h.Register(c)
	waitConnections(t, h, 1)

	payload, _ := json.Marshal(Event{Type: EventClassCancelled, ClassID: uuid.New()})

	own, _ := json.Marshal(userEventMessage{UserID: user.String(), Payload: payload, SenderInstanceID: "local"})
	h.handleRemote(string(own))
	select {
	case <-c.Send:
		t.Fatal("event from this instance must not be delivered twice")
	default:
	}

	remote, _ := json.Marshal(userEventMessage{UserID: user.String(), Payload: payload, SenderInstanceID: "other"})
	h.handleRemote(string(remote))
	if ev := waitEvent(t, c.Send); ev.Type != EventClassCancelled {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPublishFansOutThroughRedisChannel(t *testing.T) {
	h := NewHubWithInstanceID(nil, "a")
	var published []string
	h.publishFn = func(_ context.Context, channel string, payload []byte) error {
		if channel != userEventsChannel {
			t.Fatalf("unexpected channel %q", channel)
		}
		published = append(published, string(payload))
		return nil
	}

	h.Publish(context.Background(), Event{Type: EventSlotRequested, Recipients: []uuid.UUID{uuid.New(), uuid.Nil, uuid.New()}})

	if len(published) != 2 {
		t.Fatalf("expected 2 remote publishes, got %d", len(published))
	}
	if !strings.Contains(published[0], `"sender_instance_id":"a"`) {
		t.Fatalf("payload missing instance id: %s", published[0])
	}
}

func TestEventCarriesNoEarnings(t *testing.T) {
	b, _ := json.Marshal(Event{Type: EventSlotAccepted, ClassID: uuid.New(), Status: "confirmed"})
	for _, key := range []string{"amount", "rate", "earnings"} {
		if strings.Contains(string(b), key) {
			t.Fatalf("event JSON contains %q: %s", key, b)
		}
	}
}
