package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/waypoint/pkg/router"
)

// FeedMessageType is the kind of a feed message.
type FeedMessageType string

const (
	// FeedCommit announces a committed navigation.
	FeedCommit FeedMessageType = "commit"

	// FeedClear announces that no route matched and the current state
	// was cleared.
	FeedClear FeedMessageType = "clear"

	// FeedReload announces that the route table was replaced.
	FeedReload FeedMessageType = "reload"
)

// FeedMessage is sent to feed clients as JSON.
type FeedMessage struct {
	Type  FeedMessageType `json:"type"`
	Match *MatchView      `json:"match,omitempty"`
	Time  time.Time       `json:"time"`
}

// Subscriber is the part of a router the feed listens to.
type Subscriber interface {
	Subscribe(fn router.Listener) (unsubscribe func())
}

const (
	feedBuffer       = 64
	feedWriteTimeout = 5 * time.Second
)

// Feed pushes committed navigations to WebSocket clients.
//
// Router listeners run inside the commit, so the feed only queues messages
// there; a separate goroutine does the network writes. When the queue is
// full, messages are dropped.
type Feed struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	queue    chan FeedMessage
	done     chan struct{}
	stopOnce sync.Once

	mu          sync.RWMutex
	clients     map[*feedClient]struct{}
	unsubscribe func()
	last        *FeedMessage
}

type feedClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *feedClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewFeed creates a feed. Call Attach to start listening to a router.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Feed{
		logger: logger.With("component", "feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local tooling
			},
		},
		queue:   make(chan FeedMessage, feedBuffer),
		done:    make(chan struct{}),
		clients: make(map[*feedClient]struct{}),
	}
	go f.run()
	return f
}

// Attach subscribes the feed to sub, detaching it from any previous router.
// Clients are told about the switch with a reload message.
func (f *Feed) Attach(sub Subscriber) {
	f.mu.Lock()
	previous := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	if previous != nil {
		previous()
		f.enqueue(FeedMessage{Type: FeedReload, Time: time.Now()})
	}

	unsubscribe := sub.Subscribe(f.listen)

	f.mu.Lock()
	f.unsubscribe = unsubscribe
	f.mu.Unlock()
}

func (f *Feed) listen(m *router.RouteMatch) {
	msg := FeedMessage{Type: FeedClear, Time: time.Now()}
	if m != nil {
		msg.Type = FeedCommit
		msg.Match = NewMatchView(m)
	}
	f.enqueue(msg)
}

func (f *Feed) enqueue(msg FeedMessage) {
	select {
	case f.queue <- msg:
	default:
		f.logger.Warn("feed queue full, dropping message", "type", string(msg.Type))
	}
}

func (f *Feed) run() {
	for {
		select {
		case msg := <-f.queue:
			f.broadcast(msg)
		case <-f.done:
			return
		}
	}
}

func (f *Feed) broadcast(msg FeedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("feed encode failed", "error", err)
		return
	}

	f.mu.Lock()
	if msg.Type != FeedReload {
		f.last = &msg
	}
	clients := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			f.drop(c)
		}
	}
}

func (f *Feed) drop(c *feedClient) {
	f.mu.Lock()
	_, ok := f.clients[c]
	delete(f.clients, c)
	f.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// HandleWebSocket upgrades the request and streams feed messages until the
// client disconnects. A new client first receives the latest state.
func (f *Feed) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := f.upgrader.Upgrade(w, req, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := &feedClient{conn: conn}

	// Hold the client's write lock until the snapshot is out so that no
	// broadcast overtakes it.
	c.mu.Lock()
	f.mu.Lock()
	f.clients[c] = struct{}{}
	last := f.last
	f.mu.Unlock()

	var werr error
	if last != nil {
		data, _ := json.Marshal(last)
		conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		werr = conn.WriteMessage(websocket.TextMessage, data)
	}
	c.mu.Unlock()
	if werr != nil {
		f.drop(c)
		return
	}

	// Clients never send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				f.logger.Debug("feed client read error", "error", err)
			}
			break
		}
	}
	f.drop(c)
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close detaches the feed and disconnects every client.
func (f *Feed) Close() {
	f.stopOnce.Do(func() { close(f.done) })

	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	clients := f.clients
	f.clients = make(map[*feedClient]struct{})
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for c := range clients {
		c.conn.Close()
	}
}
