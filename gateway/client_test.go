package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	log15 "github.com/inconshreveable/log15/v3"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return NewClient(srv.URL, "test-token", logger)
}

func TestPostMessageReturnsID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/channels/chan-1/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization header = %q", got)
		}
		if r.Header.Get("X-Idempotency-Key") == "" {
			t.Error("missing idempotency key on mutation")
		}
		var body postMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Body != "hello" {
			t.Errorf("body = %q", body.Body)
		}
		json.NewEncoder(w).Encode(postMessageResponse{ID: "m-1"})
	})

	id, err := c.PostMessage(context.Background(), "chan-1", Message{Body: "hello"})
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if id != "m-1" {
		t.Fatalf("id = %q, want m-1", id)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	err := c.GetMessage(context.Background(), "chan-1", "gone")
	if !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	if err := c.PostEphemeral(context.Background(), "chan-1", "alice", "hi"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestListChannels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Channel{
			{ID: "v1", Name: "hall", Kind: ChannelKindVoice},
		})
	})

	channels, err := c.ListChannels(context.Background())
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != "v1" {
		t.Fatalf("channels = %+v", channels)
	}
}
