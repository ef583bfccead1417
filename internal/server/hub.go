package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dkoval/callbridge/internal/relay"
)

// Hub fans relay events out to connected websocket clients. Slow
// clients get dropped messages rather than blocking the relay.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastSessionStarted(sessionID, languageA, languageB string) {
	h.broadcastEvent(SessionStartedEvent{
		Event:     newEvent("session_started", time.Now().UTC()),
		SessionID: sessionID,
		LanguageA: languageA,
		LanguageB: languageB,
	})
}

func (h *Hub) BroadcastInterim(speaker relay.Party, text string) {
	h.broadcastEvent(InterimEvent{
		Event:   newEvent("live_transcript_interim", time.Now().UTC()),
		Speaker: string(speaker),
		Text:    text,
	})
}

func (h *Hub) BroadcastUtterance(sessionID string, u relay.Utterance) {
	h.broadcastEvent(UtteranceEvent{
		Event:     newEvent("utterance", u.Timestamp),
		SessionID: sessionID,
		Utterance: u,
	})
}

func (h *Hub) BroadcastSpeaking(sessionID string, u relay.Utterance) {
	h.broadcastEvent(SpeakingEvent{
		Event:     newEvent("speaking", time.Now().UTC()),
		SessionID: sessionID,
		Utterance: u,
	})
}

func (h *Hub) BroadcastTurnEnded(sessionID string, next relay.Party) {
	h.broadcastEvent(TurnEndedEvent{
		Event:     newEvent("turn_ended", time.Now().UTC()),
		SessionID: sessionID,
		Next:      string(next),
	})
}

func (h *Hub) BroadcastSessionEnded(sessionID string, duration time.Duration) {
	h.broadcastEvent(SessionEndedEvent{
		Event:     newEvent("session_ended", time.Now().UTC()),
		SessionID: sessionID,
		Duration:  duration.Seconds(),
	})
}

func (h *Hub) BroadcastCaptureError(code, message string) {
	h.broadcastEvent(CaptureErrorEvent{
		Event:   newEvent("capture_error", time.Now().UTC()),
		Code:    code,
		Message: message,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
