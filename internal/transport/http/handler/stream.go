package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-market-notify/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 50 * time.Second
	streamBuffer     = 64
)

// Subscriber is the event bus as the stream sees it.
type Subscriber interface {
	Subscribe(fn func(domain.StoreEvent)) (unsubscribe func())
}

// StreamHandler relays store events of the caller's inbox to WebSocket clients so open views can refresh.
type StreamHandler struct {
	bus      Subscriber
	upgrader websocket.Upgrader
}

func NewStreamHandler(bus Subscriber, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		slog.Warn("stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// The bus publishes synchronously; a slow client drops events instead of blocking the store.
	events := make(chan domain.StoreEvent, streamBuffer)
	unsubscribe := h.bus.Subscribe(func(ev domain.StoreEvent) {
		if ev.Owner != user {
			return
		}
		select {
		case events <- ev:
		default:
			slog.Warn("stream client lagging, event dropped", "type", ev.Type, "id", ev.ID)
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}
