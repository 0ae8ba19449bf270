package device

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jypelle/pishow/apimodel"
	"github.com/sirupsen/logrus"
)

const (
	hubWriteWait  = 10 * time.Second
	hubPongWait   = 60 * time.Second
	hubPingPeriod = 30 * time.Second
	hubSendBuffer = 16
)

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusHub pushes playback and projector changes to websocket observers.
// Slow observers miss messages rather than block the server.
type StatusHub struct {
	lock     sync.Mutex
	clients  map[*hubClient]bool
	upgrader websocket.Upgrader
	closed   bool

	// snapshot builds the first message sent to a new observer
	snapshot func() apimodel.StatusMessage
}

func NewStatusHub(snapshot func() apimodel.StatusMessage) *StatusHub {
	return &StatusHub{
		clients: map[*hubClient]bool{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		snapshot: snapshot,
	}
}

// ServeWs upgrades the request and registers the observer.
func (h *StatusHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("Unable to upgrade status websocket: %v", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, hubSendBuffer)}
	h.lock.Lock()
	if h.closed {
		h.lock.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.lock.Unlock()
	logrus.Debugf("Status observer connected from %s", r.RemoteAddr)

	if h.snapshot != nil {
		h.sendTo(client, h.snapshot())
	}

	go h.writePump(client)
	go h.readPump(client)
}

// Broadcast sends message to every observer.
func (h *StatusHub) Broadcast(message apimodel.StatusMessage) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for client := range h.clients {
		h.sendToLocked(client, message)
	}
}

func (h *StatusHub) ClientCount() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Stop disconnects every observer.
func (h *StatusHub) Stop() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.closed = true
	for client := range h.clients {
		h.removeLocked(client)
	}
}

func (h *StatusHub) sendTo(client *hubClient, message apimodel.StatusMessage) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.sendToLocked(client, message)
}

func (h *StatusHub) sendToLocked(client *hubClient, message apimodel.StatusMessage) {
	if !h.clients[client] {
		return
	}
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("Unable to encode status message: %v", err)
		return
	}
	select {
	case client.send <- data:
	default:
		logrus.Debugf("Status observer too slow, message dropped")
	}
}

func (h *StatusHub) remove(client *hubClient) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.removeLocked(client)
}

func (h *StatusHub) removeLocked(client *hubClient) {
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// readPump only serves pongs and close frames, observers have nothing to say.
func (h *StatusHub) readPump(client *hubClient) {
	defer func() {
		h.remove(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(hubPongWait))
		return nil
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Debugf("Status websocket read error: %v", err)
			}
			return
		}
	}
}

func (h *StatusHub) writePump(client *hubClient) {
	ticker := time.NewTicker(hubPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
