package notify

import (
	"sync"
	"time"
)

// MilestoneEvent is pushed to subscribers when a milestone is awarded.
type MilestoneEvent struct {
	UserID      string    `json:"userId"`
	CompanionID string    `json:"companionId"`
	MilestoneID string    `json:"milestoneId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AwardedAt   time.Time `json:"awardedAt"`
}

// Hub fans milestone events out to read-only subscribers (the notification
// UI). Publishing never blocks the pipeline: a slow subscriber just misses
// the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan MilestoneEvent]struct{}
}

// NewHub 创建通知中心。
func NewHub() *Hub {
	return &Hub{subs: make(map[chan MilestoneEvent]struct{})}
}

// Subscribe registers a buffered event channel; the caller must
// Unsubscribe when done.
func (h *Hub) Subscribe() chan MilestoneEvent {
	ch := make(chan MilestoneEvent, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes the channel.
func (h *Hub) Unsubscribe(ch chan MilestoneEvent) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers the event to every subscriber with room in its buffer.
func (h *Hub) Publish(event MilestoneEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
