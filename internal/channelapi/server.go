package channelapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"Broadcast-Apps/internal/actor"
	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/core/network"
	"Broadcast-Apps/internal/identity"
)

// SenderHeader carries the caller identity for POST /api/channel/action.
const SenderHeader = "X-Channel-Sender"

const maxActionBody = 64 << 10

// Source answers the read-only queries. Both *actor.Actor and *mirror.Mirror serve.
type Source interface {
	Metadata() channel.Metadata
	Feed() []channel.Post
}

type Server struct {
	source Source
	actor  *actor.Actor
	topics actor.Topics
	pubsub network.PubSub
	codec  codec.Codec
	log    logrus.FieldLogger

	upgrader websocket.Upgrader
}

// NewServer exposes a over HTTP. ps and c must be the transport and codec the actor
// publishes inbox traffic with.
func NewServer(a *actor.Actor, ps network.PubSub, c codec.Codec, logger logrus.FieldLogger) *Server {
	s := newServer(a, a.Topics(), ps, c, logger)
	s.actor = a
	return s
}

// NewReadOnlyServer serves queries and inbox streams from src without accepting
// actions. topics names the channel whose inboxes are streamed.
func NewReadOnlyServer(src Source, topics actor.Topics, ps network.PubSub, c codec.Codec, logger logrus.FieldLogger) *Server {
	return newServer(src, topics, ps, c, logger)
}

func newServer(src Source, topics actor.Topics, ps network.PubSub, c codec.Codec, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if c == nil {
		c = codec.JSON{}
	}
	return &Server{
		source:   src,
		topics:   topics,
		pubsub:   ps,
		codec:    c,
		log:      logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/channel/meta", s.handleMeta)
	mux.HandleFunc("/api/channel/feed", s.handleFeed)
	mux.HandleFunc("/api/channel/action", s.handleAction)
	mux.HandleFunc("/api/channel/inbox/", s.handleInbox)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": s.source.Metadata()})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feed": s.source.Feed()})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeNoContent(w)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if s.actor == nil {
		writeError(w, http.StatusServiceUnavailable, "read-only mirror", "")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body", actor.CodeDecodeFailure)
		return
	}
	sender, err := senderOf(r, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	requestID := uuid.NewString()
	reply, err := s.actor.InvokeWith(r.Context(), codec.JSON{}, sender, body)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"sender":     sender.String(),
		}).Debug("http action rejected")
		writeError(w, statusFor(err), err.Error(), actor.ErrorCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": requestID, "reply": reply})
}

func senderOf(r *http.Request, body []byte) (identity.ID, error) {
	raw := r.Header.Get(SenderHeader)
	if raw == "" {
		var req struct {
			Sender string `json:"sender"`
		}
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err == nil {
			raw = req.Sender
		}
	}
	if raw == "" {
		return identity.Zero, errors.New("sender required")
	}
	return identity.Parse(raw)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, channel.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, channel.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, channel.ErrNotInitialized), errors.Is(err, channel.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, actor.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// handleInbox serves /api/channel/inbox/<id>/stream (SSE) and /api/channel/inbox/<id>/ws.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	if s.pubsub == nil {
		writeError(w, http.StatusServiceUnavailable, "inbox streaming unavailable", "")
		return
	}
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/channel/inbox/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "route not found", "")
		return
	}
	id, err := identity.Parse(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	switch parts[1] {
	case "stream":
		s.handleInboxStream(w, r, id)
	case "ws":
		s.handleInboxSocket(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "route not found", "")
	}
}

func (s *Server) handleInboxStream(w http.ResponseWriter, r *http.Request, id identity.ID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}
	ch, cancel, err := s.pubsub.Subscribe(s.topics.Inbox(id))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			kind, data, err := s.transcode(msg.Payload)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: " + kind + "\ndata: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleInboxSocket(w http.ResponseWriter, r *http.Request, id identity.ID) {
	ch, cancel, err := s.pubsub.Subscribe(s.topics.Inbox(id))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
				return
			}
			_, data, err := s.transcode(msg.Payload)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// transcode turns an inbox payload in the actor codec into JSON for browsers.
func (s *Server) transcode(payload []byte) (string, []byte, error) {
	var out actor.Output
	if err := s.codec.Unmarshal(payload, &out); err != nil {
		return "", nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", nil, err
	}
	return string(out.Kind), data, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SenderHeader)
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	body := map[string]any{"error": msg}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

func writeNoContent(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SenderHeader)
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}
