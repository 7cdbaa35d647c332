package gateway

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"guardian-core/services/broadcast"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards connect from arbitrary origins.
		return true
	},
}

// wsSink adapts a WebSocket connection to the broadcaster's sink
// contract. Writes are serialized by the subscriber's writer
// goroutine, so no extra locking is needed here.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(frame []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *wsSink) Close() error {
	return s.conn.Close()
}

// handleSocket upgrades the connection and attaches it to a broadcast
// channel until the client goes away.
func (s *Service) handleSocket(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Failed to upgrade connection: %v", err)
			return
		}

		profile := s.profileFor(r.Context(), channel)
		sub := s.broadcaster.NewSubscriber(&wsSink{conn: conn}, profile.QueueCapacity)
		s.broadcaster.Subscribe(channel, sub)
		if profile.RefreshOnSubscribe {
			sub.Refresh()
		}
		log.Printf("Subscriber attached to %s from %s", channel, r.RemoteAddr)

		s.readLoop(conn, sub, channel)
	}
}

// readLoop drains inbound messages until the connection errors. The
// channels are one-way; anything the client sends is ignored, but the
// read is what detects the disconnect.
func (s *Service) readLoop(conn *websocket.Conn, sub *broadcast.Subscriber, channel string) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("Subscriber on %s disconnected: %v", channel, err)
			s.broadcaster.Unsubscribe(sub)
			return
		}
	}
}
