package extract

import (
	"encoding/binary"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// liveSink fans decoded PCM frames for each player out to connected
// WebSocket clients as they are produced, the "realtime sink" consumer
// spec.md names alongside WAV files and raw capture. Frames are written
// synchronously from the decode path with no write deadline, so a slow
// client slows decoding; a client is dropped only when a write fails.
type liveSink struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string][]*websocket.Conn
}

func newLiveSink() *liveSink {
	return &liveSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string][]*websocket.Conn),
	}
}

// handle upgrades the request and registers the connection against the
// player ID given in the "player" query parameter; an empty value
// subscribes to every player's audio.
func (s *liveSink) handle(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live sink upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[player] = append(s.clients[player], conn)
	s.mu.Unlock()
}

// publish sends a frame of decoded samples to every client subscribed to
// playerID (and every client subscribed to all players). Samples are sent
// as little-endian int16 binary frames, one WebSocket message per Decode
// call.
func (s *liveSink) publish(playerID string, samples []int16) {
	if len(samples) == 0 {
		return
	}
	payload := make([]byte, len(samples)*2)
	for i, sm := range samples {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(sm))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subscriber := range []string{playerID, ""} {
		conns := s.clients[subscriber]
		live := conns[:0]
		for _, c := range conns {
			if err := c.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				c.Close()
				continue
			}
			live = append(live, c)
		}
		s.clients[subscriber] = live
	}
}

func (s *liveSink) listenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", s.handle)
	return http.ListenAndServe(addr, mux)
}
