package service

import (
	"sync"

	"quero/internal/domain"
)

// history is a bounded conversation buffer; the oldest turns drop first.
type history struct {
	mu         sync.Mutex
	maxHistory int
	buffer     []domain.Message
}

func newHistory(maxHistory int) *history {
	return &history{maxHistory: maxHistory}
}

func (h *history) add(msgs ...domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer = append(h.buffer, msgs...)
	if h.maxHistory > 0 && len(h.buffer) > h.maxHistory {
		h.buffer = append([]domain.Message(nil), h.buffer[len(h.buffer)-h.maxHistory:]...)
	}
}

// snapshot returns a copy safe to hand to a provider.
func (h *history) snapshot() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Message(nil), h.buffer...)
}

func (h *history) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer = nil
}
