package syncbus

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// subscribe resolves the "subject" query parameter, falling back to
// fallback, and subscribes to it for the lifetime of the request.
func subscribe(w http.ResponseWriter, r *http.Request, bus Bus, fallback string) (<-chan []byte, context.CancelFunc, bool) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		subject = fallback
	}
	if subject == "" {
		http.Error(w, "missing subject", http.StatusBadRequest)
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(r.Context())
	ch, err := bus.Subscribe(ctx, subject)
	if err != nil {
		cancel()
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return nil, nil, false
	}
	return ch, cancel, true
}

// SSEHandler streams the payloads published on a subject as Server-Sent
// Events. The subject is read from the "subject" query parameter, or
// defaults to subject when the parameter is absent.
func SSEHandler(bus Bus, subject string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "stream unsupported", http.StatusInternalServerError)
			return
		}
		ch, cancel, ok := subscribe(w, r, bus, subject)
		if !ok {
			return
		}
		defer cancel()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()
		for msg := range ch {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{}

// WebSocketHandler streams the payloads published on a subject as text
// frames. Subject resolution follows SSEHandler.
func WebSocketHandler(bus Bus, subject string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, cancel, ok := subscribe(w, r, bus, subject)
		if !ok {
			return
		}
		defer cancel()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
