// Package realtime keeps the live websocket connections of each user and
// pushes file-change events to them.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
)

// Subscriber is a live connection registered for one user and app.
type Subscriber struct {
	ConnID   string
	Email    string
	App      string
	ClientID string

	// send enqueues a frame without blocking and reports whether it was taken.
	send func([]byte) bool
}

func NewSubscriber(connID, email, app, clientID string, send func([]byte) bool) *Subscriber {
	return &Subscriber{ConnID: connID, Email: email, App: app, ClientID: clientID, send: send}
}

// Hub maps user emails to their live subscribers. Delivery is best effort:
// a subscriber whose queue is full misses the event.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
	log   logging.Logger
}

func NewHub(log logging.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscriber]struct{}),
		log:   log.With("module", "realtime"),
	}
}

func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[s.Email]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[s.Email] = room
	}
	room[s] = struct{}{}
}

func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[s.Email]
	if !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, s.Email)
	}
}

// Count returns the number of live subscribers of email.
func (h *Hub) Count(email string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[email])
}

// Broadcast delivers ev to every subscriber of ev.Email, the originator
// included. by_self is set for subscribers with the originating client id.
// It returns the number of subscribers that accepted the frame.
func (h *Hub) Broadcast(ctx context.Context, ev models.ChangeEvent) int {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.rooms[ev.Email]))
	for s := range h.rooms[ev.Email] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	msg := ChangeMessage{
		Type:   TypeFileChange,
		App:    ev.App,
		Path:   ev.Path,
		Action: ev.Action,
	}
	if ev.Content != nil {
		msg.Content = models.RawContent(ev.Content)
	}

	msg.BySelf = false
	other, err := json.Marshal(msg)
	if err != nil {
		h.log.Error(ctx, "encode change event", "error", err)
		return 0
	}
	msg.BySelf = true
	self, err := json.Marshal(msg)
	if err != nil {
		h.log.Error(ctx, "encode change event", "error", err)
		return 0
	}

	delivered := 0
	for _, s := range targets {
		frame := other
		if ev.ClientID != "" && s.ClientID == ev.ClientID {
			frame = self
		}
		if s.send(frame) {
			delivered++
			continue
		}
		h.log.Warn(ctx, "change event dropped", "conn", s.ConnID, "path", ev.Path)
	}
	return delivered
}

// Notify lets the hub receive storage events.
func (h *Hub) Notify(ctx context.Context, ev models.ChangeEvent) {
	h.Broadcast(ctx, ev)
}
