// Package wsmonitor implements the additive /ws/monitor live push: a
// websocket hub that fans out observability snapshots to every
// connected monitor client, removing the client-side 2-second poll
// loop without changing /audio-monitor's existing polling contract.
// Connection/fan-out idiom ported from websocket/websocket.go's Hub.
package wsmonitor

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/n0remac/audiohub/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans snapshots out to every connected monitor client. The zero
// value is not usable; construct with New.
type Hub struct {
	register   chan *client
	unregister chan *client
	publish    chan observability.Snapshot
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New builds a Hub and starts its run loop in a new goroutine.
func New() *Hub {
	h := &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		publish:    make(chan observability.Snapshot),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	clients := make(map[*client]bool)
	for {
		select {
		case c := <-h.register:
			clients[c] = true
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
		case snap := <-h.publish:
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Printf("[ERROR] wsmonitor: marshal snapshot: %v", err)
				continue
			}
			for c := range clients {
				select {
				case c.send <- payload:
				default:
					close(c.send)
					delete(clients, c)
				}
			}
		}
	}
}

// Publish pushes a new snapshot to every connected monitor client.
// Non-blocking from the caller's perspective only up to the run loop's
// select; callers on a hot path should send from their own goroutine.
func (h *Hub) Publish(snap observability.Snapshot) {
	h.publish <- snap
}

// Handler upgrades the connection and registers it for snapshot pushes
// until the client disconnects.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] wsmonitor: upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.register <- c

	go func() {
		defer func() {
			h.unregister <- c
			conn.Close()
		}()
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[ERROR] wsmonitor: write: %v", err)
				return
			}
		}
	}()

	// Monitor clients are push-only; drain reads so the connection
	// stays alive and closes promptly when the peer goes away. Once
	// the peer disconnects this is the only path that still knows
	// about c, so it must unregister: the write goroutine's own
	// deferred unregister only fires once c.send is closed, which
	// happens as a result of this unregister, not before it.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister <- c
}
