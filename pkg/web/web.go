// Package web serves the companion HTTP API: the health check callers hit
// through the tunnel, the long-polled background image, the hub's secret
// push, and the websocket feed of hand-landmark frames.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/shelajev/slowly-unhinged/pkg/background"
	"github.com/shelajev/slowly-unhinged/pkg/gesture"
)

// DefaultPort is the companion API port the tunnel forwards to.
const DefaultPort = 41786

// longPollTimeout bounds how long /background/latest holds a waiting
// request open.
const longPollTimeout = 25 * time.Second

// SecretSink receives the hub-pushed API key for this run.
type SecretSink interface {
	SetRuntimeSecret(secret string)
}

// Server is the companion HTTP API.
type Server struct {
	store   *background.Store
	secrets SecretSink
	frames  *FrameFeed
	log     *slog.Logger

	upgrader websocket.Upgrader
}

// NewServer creates the API server. The frame feed may be passed to a
// gesture loop as its source.
func NewServer(store *background.Store, secrets SecretSink, frames *FrameFeed, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:   store,
		secrets: secrets,
		frames:  frames,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the chi router for the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Get("/background/latest", s.handleBackgroundLatest)
	r.Post("/internal/secrets/nanobanana", s.handleSecret)
	r.Get("/ws/frames", s.handleFrames)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("slowly unhinged tunnel working"))
}

// handleBackgroundLatest serves the current background. With wait=true the
// request parks until the version moves past since or the long-poll window
// closes. 204 means the client already has the latest (or nothing exists
// yet); the x-background-version header is always present.
func (s *Server) handleBackgroundLatest(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	wait := r.URL.Query().Get("wait") == "true"

	for {
		img, version := s.store.Latest()

		if version == 0 {
			if wait {
				if _, v := s.store.Wait(r.Context(), 0, longPollTimeout); v > 0 {
					continue
				}
			}
			writeBackground(w, nil, version, http.StatusNoContent)
			return
		}

		if version != since {
			if img != nil {
				writeBackground(w, img, version, http.StatusOK)
			} else {
				writeBackground(w, nil, version, http.StatusNoContent)
			}
			return
		}

		if !wait {
			writeBackground(w, nil, version, http.StatusNoContent)
			return
		}

		if _, v := s.store.Wait(r.Context(), version, longPollTimeout); v == version {
			writeBackground(w, nil, version, http.StatusNoContent)
			return
		}
	}
}

func writeBackground(w http.ResponseWriter, img *background.Image, version uint64, status int) {
	h := w.Header()
	h.Set("x-background-version", strconv.FormatUint(version, 10))
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Expose-Headers", "x-background-version,content-type")
	if img != nil {
		h.Set("Content-Type", img.MIME)
	}
	w.WriteHeader(status)
	if img != nil {
		w.Write(img.Data)
	}
}

// handleSecret accepts the API key the hub pushes after a caller supplies
// one. The key is held in memory for this run only.
func (s *Server) handleSecret(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	secret := strings.TrimSpace(payload.Secret)
	if secret == "" {
		http.Error(w, "empty secret", http.StatusBadRequest)
		return
	}
	s.secrets.SetRuntimeSecret(secret)
	w.WriteHeader(http.StatusNoContent)
}

// handleFrames upgrades to a websocket and feeds decoded landmark frames
// into the recognizer's source. Malformed frames are dropped, not fatal.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("frame socket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("frame socket closed", "err", err)
			}
			return
		}

		var frame gesture.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Debug("dropping malformed frame", "err", err)
			continue
		}
		frame.Timestamp = time.Now()
		s.frames.push(frame)
	}
}
