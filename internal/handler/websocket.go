package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fieldreport/internal/auth"
	"fieldreport/internal/hub"
	"fieldreport/internal/model"
	"fieldreport/internal/view"
)

// Feed topics a websocket viewer can follow.
const (
	TopicLocations = "locations"
	TopicPictures  = "pictures"
)

type feedMessage struct {
	Type       string  `json:"type"`
	Collection string  `json:"collection"`
	Records    []gin.H `json:"records"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

// StartFeedBroadcasts ties the long-lived feed subscriptions to ctx and fans
// every emission out to the hub. The returned stop func tears both
// subscriptions down.
func StartFeedBroadcasts(ctx context.Context, h *hub.Hub, locations *view.Feed[model.LocationRecord], pictures *view.Feed[model.MediaRecord]) func() {
	ctx, cancel := context.WithCancel(ctx)
	locSub := locations.Subscribe(ctx)
	picSub := pictures.Subscribe(ctx)

	go pumpFeed(h, TopicLocations, locSub, encodeLocations)
	go pumpFeed(h, TopicPictures, picSub, encodeMedia)

	return func() {
		cancel()
		locSub.Close()
		picSub.Close()
	}
}

func pumpFeed[T any](h *hub.Hub, topic string, sub *view.Subscription[T], encode func([]T) []gin.H) {
	for records := range sub.C {
		out, err := json.Marshal(feedMessage{Type: "snapshot", Collection: topic, Records: encode(records)})
		if err != nil {
			continue
		}
		h.Broadcast(topic, out)
	}
}

type FeedHandler struct {
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
	Locations   *view.Feed[model.LocationRecord]
	Pictures    *view.Feed[model.MediaRecord]
}

// Serve upgrades the connection and attaches it to one collection topic. The
// current full list is pushed immediately; afterwards the broadcaster pushes
// a fresh list on every change.
func (h *FeedHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if _, err := auth.VerifyToken(tokenString, h.TokenConfig); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	topic := c.Query("collection")
	if topic != TopicLocations && topic != TopicPictures {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown collection"})
		return
	}

	initial, err := h.snapshot(c.Request.Context(), topic)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Record store unavailable"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}

	// The initial snapshot goes out before the hub sees the connection: once
	// registered, the broadcaster may write concurrently, and the websocket
	// allows only one writer at a time. A change landing in this window is
	// still delivered as the next full-list broadcast.
	if out, err := json.Marshal(feedMessage{Type: "snapshot", Collection: topic, Records: initial}); err == nil {
		_ = writer.Write(out)
	}

	conn := &hub.Connection{Topic: topic, Writer: writer}
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadLimit(4 * 1024)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	// The viewer only listens; the read loop exists to notice disconnects.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *FeedHandler) snapshot(ctx context.Context, topic string) ([]gin.H, error) {
	if topic == TopicLocations {
		records, err := h.Locations.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return encodeLocations(records), nil
	}
	records, err := h.Pictures.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return encodeMedia(records), nil
}
