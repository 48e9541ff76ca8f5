package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var (
	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
)

// Event - pushed to every websocket client on tally transitions and
// endpoint connect/disconnect.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	Time int64  `json:"time"`
}

// Notify fans an event out to the connected websocket clients. Slow clients
// are dropped rather than allowed to stall the caller.
func Notify(typ string, data any) {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	if len(clients) == 0 {
		return
	}

	ev := Event{Type: typ, Data: data, Time: time.Now().UnixMilli()}
	for conn := range clients {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			_ = conn.Close()
			delete(clients, conn)
		}
	}
}

func wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("[api] ws upgrade")
		return
	}

	clientsMu.Lock()
	if clients == nil {
		clients = map[*websocket.Conn]struct{}{}
	}
	clients[conn] = struct{}{}
	clientsMu.Unlock()

	// reader exists only to observe close
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		clientsMu.Lock()
		delete(clients, conn)
		clientsMu.Unlock()
		_ = conn.Close()
	}()
}
