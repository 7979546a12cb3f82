package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shelajev/slowly-unhinged/pkg/background"
	"github.com/shelajev/slowly-unhinged/pkg/gesture"
)

type secretSpy struct {
	got string
}

func (s *secretSpy) SetRuntimeSecret(secret string) { s.got = secret }

func newTestServer() (*Server, *background.Store, *secretSpy, *FrameFeed) {
	store := background.NewStore()
	secrets := &secretSpy{}
	frames := NewFrameFeed()
	srv := NewServer(store, secrets, frames, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv, store, secrets, frames
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "slowly unhinged tunnel working" {
		t.Fatalf("body = %q", body)
	}
}

func TestBackgroundLatestEmpty(t *testing.T) {
	srv, _, _, _ := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/background/latest")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("x-background-version") != "0" {
		t.Fatalf("version header = %q", resp.Header.Get("x-background-version"))
	}
}

func TestBackgroundLatestServesImage(t *testing.T) {
	srv, store, _, _ := newTestServer()
	store.Set(background.Image{Data: []byte{0xAB, 0xCD}, MIME: "image/jpeg"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/background/latest")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("x-background-version") != "1" {
		t.Fatalf("version header = %q", resp.Header.Get("x-background-version"))
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 2 || body[0] != 0xAB {
		t.Fatalf("body = %x", body)
	}
}

func TestBackgroundLatestUpToDateClient(t *testing.T) {
	srv, store, _, _ := newTestServer()
	store.Set(background.Image{Data: []byte{1}, MIME: "image/png"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/background/latest?since=1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d for a client that already has version 1", resp.StatusCode)
	}
}

func TestBackgroundLatestLongPollWakes(t *testing.T) {
	srv, store, _, _ := newTestServer()
	store.Set(background.Image{Data: []byte{1}, MIME: "image/png"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		store.Set(background.Image{Data: []byte{2}, MIME: "image/png"})
	}()

	resp, err := http.Get(ts.URL + "/background/latest?since=1&wait=true")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("x-background-version") != "2" {
		t.Fatalf("version header = %q", resp.Header.Get("x-background-version"))
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 1 || body[0] != 2 {
		t.Fatalf("body = %x", body)
	}
}

func TestSecretPush(t *testing.T) {
	srv, _, secrets, _ := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/internal/secrets/nanobanana", "application/json",
		strings.NewReader(`{"secret":"  key-123  "}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if secrets.got != "key-123" {
		t.Fatalf("stored secret = %q", secrets.got)
	}
}

func TestSecretPushRejectsEmpty(t *testing.T) {
	srv, _, secrets, _ := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/internal/secrets/nanobanana", "application/json",
		strings.NewReader(`{"secret":"   "}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if secrets.got != "" {
		t.Fatal("empty secret must not be stored")
	}
}

func TestFrameSocketFeedsRecognizer(t *testing.T) {
	srv, _, _, frames := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/frames"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// One malformed message, then a real frame; only the frame comes out.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"hands":[{"label":"Left","landmarks":[{"x":0.5,"y":0.5}]}]}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	ch, err := frames.Frames(context.Background())
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	select {
	case frame := <-ch:
		if len(frame.Hands) != 1 || frame.Hands[0].Label != "Left" {
			t.Fatalf("frame = %+v", frame)
		}
		if frame.Timestamp.IsZero() {
			t.Fatal("frame timestamp not stamped on receipt")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame arrived from the socket")
	}
}

func TestFrameFeedDropsOldestWhenFull(t *testing.T) {
	feed := NewFrameFeed()
	for i := 0; i < 40; i++ {
		feed.push(frameAt(float64(i)))
	}

	ch, _ := feed.Frames(context.Background())
	first := <-ch
	if first.Hands[0].Landmarks[0].X < 20 {
		t.Fatalf("oldest frames should have been evicted, got x=%v", first.Hands[0].Landmarks[0].X)
	}
}

func frameAt(x float64) gesture.Frame {
	return gesture.Frame{
		Timestamp: time.Now(),
		Hands: []gesture.Hand{
			{Label: gesture.Left, Landmarks: []gesture.Point{{X: x, Y: 0}}},
		},
	}
}
