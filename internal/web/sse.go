package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mdtasks/internal/index"
	"mdtasks/internal/syncer"
)

// Hub fans coordinator events out to the SSE connections of each document.
// It implements syncer.Sink. Sends never block; a subscriber that falls
// behind is marked lagged and its stream ends so the client reconnects
// with a fresh full event set.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch     chan []byte
	lagged chan struct{}
	stale  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*subscriber]struct{})}
}

func (h *Hub) add(key string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &subscriber{ch: make(chan []byte, 32), lagged: make(chan struct{})}
	if _, ok := h.clients[key]; !ok {
		h.clients[key] = make(map[*subscriber]struct{})
	}
	h.clients[key][sub] = struct{}{}
	return sub
}

// remove unregisters sub. Its channels stay open; the handler that owns it
// is the only reader.
func (h *Hub) remove(key string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.clients[key]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.clients, key)
		}
	}
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(key string, sub *subscriber, data []byte) {
	if sub.stale {
		return
	}
	select {
	case sub.ch <- data:
	default:
		sub.stale = true
		close(sub.lagged)
		slog.Warn("sse client lagging, closing stream for resync", "doc", key)
	}
}

func (h *Hub) broadcast(key string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients[key] {
		h.deliver(key, sub, data)
	}
}

func (h *Hub) Publish(doc string, ev syncer.Event) {
	frame, err := encodeEvent(ev)
	if err != nil {
		slog.Warn("encode event", "doc", doc, "kind", ev.Kind().String(), "err", err)
		return
	}
	h.broadcast(doc, frame)
}

// sinkFor returns a sink that reaches only sub.
func (h *Hub) sinkFor(sub *subscriber) syncer.Sink {
	return syncer.SinkFunc(func(doc string, ev syncer.Event) {
		frame, err := encodeEvent(ev)
		if err != nil {
			slog.Warn("encode event", "doc", doc, "kind", ev.Kind().String(), "err", err)
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.deliver(doc, sub, frame)
	})
}

type treePayload struct {
	ShowHeaders bool             `json:"show_headers"`
	Items       []index.TreeItem `json:"items"`
}

func encodeEvent(ev syncer.Event) ([]byte, error) {
	var payload any = ev
	if tree, ok := ev.(syncer.TreeRebuilt); ok {
		items := []index.TreeItem{}
		if tree.Forest != nil {
			if t := tree.Forest.Tree(); t != nil {
				items = t
			}
		}
		payload = treePayload{ShowHeaders: tree.ShowHeaders, Items: items}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Kind(), data)), nil
}

// handleEvents streams the sync events of one document. The connection
// counts as a view for as long as it stays open.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	doc, err := docParam(r.URL.Query().Get("doc"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub := s.events.add(doc)
	defer s.events.remove(doc, sub)

	viewID, err := s.coord.Attach(r.Context(), doc, s.events.sinkFor(sub))
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		defer cancel()
		if err := s.coord.Detach(ctx, doc, viewID); err != nil && !errors.Is(err, syncer.ErrClosed) {
			slog.Debug("detach view", "doc", doc, "view", viewID, "err", err)
		}
	}()
	slog.Debug("view attached", "doc", doc, "view", viewID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: ready\ndata: %q\n\n", viewID)
	flusher.Flush()

	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.coord.Done():
			return
		case <-sub.lagged:
			return
		case msg := <-sub.ch:
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
