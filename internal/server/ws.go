package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/overlay"
	"github.com/ayusman/tryon/internal/server/api"
)

// DefaultFeedInterval is how often the feed checks for a new transform.
const DefaultFeedInterval = 16 * time.Millisecond

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// OverlaySource provides the latest committed transform.
type OverlaySource interface {
	Overlay() (overlay.Committed, bool)
}

// OverlayFeed pushes the committed overlay transform to WebSocket clients
// whenever its version changes. New clients get the current transform at once.
type OverlayFeed struct {
	source  OverlaySource
	clients map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewOverlayFeed creates a feed polling source every interval.
func NewOverlayFeed(source OverlaySource, interval time.Duration) *OverlayFeed {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	f := &OverlayFeed{
		source:  source,
		clients: make(map[*websocket.Conn]*sync.Mutex),
		stopCh:  make(chan struct{}),
	}
	go f.broadcast(interval)
	return f
}

// ServeHTTP handles WebSocket upgrade requests.
func (f *OverlayFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade error")
		return
	}
	defer conn.Close()

	writeMu := &sync.Mutex{}

	f.mu.Lock()
	f.clients[conn] = writeMu
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.clients, conn)
		f.mu.Unlock()
	}()

	// Registered first so no commit falls between the snapshot and the feed.
	if c, ok := f.source.Overlay(); ok {
		if err := f.send(conn, writeMu, c); err != nil {
			return
		}
	}

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (f *OverlayFeed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close stops the broadcast loop.
func (f *OverlayFeed) Close() {
	f.once.Do(func() { close(f.stopCh) })
}

func (f *OverlayFeed) send(conn *websocket.Conn, writeMu *sync.Mutex, c overlay.Committed) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(api.NewOverlayResponse(c))
}

// broadcast sends each new committed transform to all connected clients.
func (f *OverlayFeed) broadcast(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastVersion uint64

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
		}

		c, ok := f.source.Overlay()
		if !ok || c.Version == lastVersion {
			continue
		}
		lastVersion = c.Version

		f.mu.RLock()
		for conn, writeMu := range f.clients {
			if err := f.send(conn, writeMu, c); err != nil {
				log.WithError(err).Debug("overlay feed write failed")
			}
		}
		f.mu.RUnlock()
	}
}
