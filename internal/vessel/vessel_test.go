// internal/vessel/vessel_test.go
package vessel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStore_ApplyNestsPaths(t *testing.T) {
	s := NewStore()
	s.Apply(Delta{
		Context: "vessels.self",
		Updates: []Update{{
			Timestamp: "2026-10-14T10:00:00Z",
			Values: []Value{
				{Path: "navigation.speedOverGround", Value: 3.2},
				{Path: "navigation.position", Value: map[string]any{"latitude": 49.1, "longitude": -123.2}},
				{Path: "", Value: map[string]any{"name": "Reflections"}},
			},
		}},
	})

	snap := s.Snapshot()
	if snap["name"] != "Reflections" {
		t.Fatalf("top-level name not merged: %v", snap)
	}
	nav, ok := snap["navigation"].(map[string]any)
	if !ok {
		t.Fatalf("navigation missing: %v", snap)
	}
	sog := nav["speedOverGround"].(map[string]any)
	if sog["value"] != 3.2 || sog["timestamp"] != "2026-10-14T10:00:00Z" {
		t.Fatalf("speedOverGround leaf: %v", sog)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Apply(Delta{Updates: []Update{{Values: []Value{{Path: "environment.depth.belowKeel", Value: 4.0}}}}})

	snap := s.Snapshot()
	snap["environment"].(map[string]any)["depth"] = "mutated"

	again := s.Snapshot()
	if _, ok := again["environment"].(map[string]any)["depth"].(map[string]any); !ok {
		t.Fatalf("snapshot mutation leaked into store: %v", again)
	}
}

func TestStore_LaterValueWins(t *testing.T) {
	s := NewStore()
	s.Apply(Delta{Updates: []Update{{Values: []Value{{Path: "a.b", Value: 1.0}}}}})
	s.Apply(Delta{Updates: []Update{{Values: []Value{{Path: "a.b", Value: 2.0}}}}})

	leaf := s.Snapshot()["a"].(map[string]any)["b"].(map[string]any)
	if leaf["value"] != 2.0 {
		t.Fatalf("expected latest value, got %v", leaf["value"])
	}
}

func TestStream_SubscribesAndApplies(t *testing.T) {
	subscribed := make(chan subscribeMsg, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"name":"signalk-server","version":"2.0.0","self":"vessels.urn:mrn:imo:mmsi:000000000"}`))

		var msg subscribeMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subscribed <- msg

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"context":"vessels.self","updates":[{"timestamp":"2026-10-14T10:00:00Z","values":[{"path":"navigation.headingTrue","value":1.57}]}]}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	store := NewStore()
	st := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()

	select {
	case msg := <-subscribed:
		if msg.Context != "vessels.self" || len(msg.Subscribe) != 1 || msg.Subscribe[0].Path != "*" || msg.Subscribe[0].Period != 10000 {
			b, _ := json.Marshal(msg)
			t.Fatalf("unexpected subscribe message: %s", b)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no subscribe message received")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if nav, ok := store.Snapshot()["navigation"].(map[string]any); ok {
			if _, ok := nav["headingTrue"]; ok {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("delta never applied: %v", store.Snapshot())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
