package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is a websocket viewer attached to one collection topic.
type Connection struct {
	Topic  string
	Writer Writer
}

// Hub fans feed snapshots out to every connection on a topic; connections
// that fail a write are closed and evicted.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.Topic] == nil {
		h.connections[conn.Topic] = make(map[*Connection]struct{})
	}
	h.connections[conn.Topic][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.Topic]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.Topic)
	}
}

func (h *Hub) Broadcast(topic string, message []byte) {
	h.mu.RLock()
	set := h.connections[topic]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}
