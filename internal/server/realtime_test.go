package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRealtimeDispatcherPublishesToSubscribers(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, cleanupFirst := dispatcher.Subscribe(ctx)
	defer cleanupFirst()
	second, cleanupSecond := dispatcher.Subscribe(ctx)
	defer cleanupSecond()

	dispatcher.CatalogChanged("approve")

	for _, stream := range []<-chan RealtimeMessage{first, second} {
		select {
		case received := <-stream:
			if received.EventType != RealtimeEventCatalogChanged || received.Reason != "approve" {
				t.Fatalf("unexpected message: %#v", received)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("expected realtime message within deadline")
		}
	}
}

func TestRealtimeDispatcherUnsubscribesOnCancel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()
	if dispatcher.SubscriberCount() != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for dispatcher.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber removal after cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRealtimeDispatcherDropsWhenFull(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()

	for index := 0; index < dispatcher.bufferSize*2; index++ {
		dispatcher.CatalogChanged("save_codes")
	}
	if len(stream) != dispatcher.bufferSize {
		t.Fatalf("expected buffered messages to cap at %d, got %d", dispatcher.bufferSize, len(stream))
	}
	dispatcher.Publish(RealtimeMessage{})
}

func TestEventStreamEmitsCatalogChanges(t *testing.T) {
	testServer := newTestServer(t, routerDocument)
	server := httptest.NewServer(testServer.handler)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	streamRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	if contentType := streamResp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type %q", contentType)
	}

	streamReader := bufio.NewReader(streamResp.Body)
	if line, err := streamReader.ReadString('\n'); err != nil || !strings.HasPrefix(line, "retry:") {
		t.Fatalf("expected retry preamble, got %q (%v)", line, err)
	}

	addResp, err := http.Post(server.URL+"/games", "application/json", strings.NewReader(`{"game_name":"Honkai"}`))
	if err != nil {
		t.Fatalf("add game request failed: %v", err)
	}
	_ = addResp.Body.Close()
	if addResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected add status: %d", addResp.StatusCode)
	}

	type readResult struct {
		line string
		err  error
	}
	currentEventType := ""
	deadline := time.After(5 * time.Second)
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for realtime event")
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") || currentEventType != RealtimeEventCatalogChanged {
				continue
			}
			var payload realtimeEventPayload
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &payload); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			if payload.Reason != "add_game" || payload.Source != realtimeSourceBackend {
				t.Fatalf("unexpected payload: %#v", payload)
			}
			return
		}
	}
}
