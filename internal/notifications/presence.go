package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"chorus/internal/middleware"
	"chorus/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Presence events.
const (
	EventJoin               = "join"
	EventLogout             = "logout"
	EventOnlineUsersUpdated = "online-users-updated"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Event is the envelope exchanged with websocket clients.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Presence tracks which users are online and pushes the online list to
// every joined client whenever it changes. Membership is shared across
// processes through the Notifier when Redis is available.
type Presence struct {
	mu       sync.RWMutex
	conns    map[uint]map[*Client]struct{}
	joined   map[*Client]struct{}
	online   map[uint]int
	total    int
	notifier *Notifier
}

func NewPresence(notifier *Notifier) *Presence {
	return &Presence{
		conns:    make(map[uint]map[*Client]struct{}),
		joined:   make(map[*Client]struct{}),
		online:   make(map[uint]int),
		notifier: notifier,
	}
}

func (p *Presence) Name() string { return "presence" }

// Connect registers a websocket connection for userID. The user is not
// online until the client sends a join event.
func (p *Presence) Connect(userID uint, conn *websocket.Conn) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total >= maxTotalConns {
		return nil, ErrServerFull
	}
	m, ok := p.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		p.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := NewClient(p, conn, userID)
	client.IncomingHandler = func(c *Client, raw []byte) {
		p.HandleMessage(context.Background(), c, raw)
	}
	m[client] = struct{}{}
	p.total++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient is called by the read pump when the peer goes away.
func (p *Presence) UnregisterClient(c *Client) {
	p.Disconnect(context.Background(), c)
}

// Disconnect removes c. If it was the user's last joined connection the user
// goes offline and the new list is broadcast.
func (p *Presence) Disconnect(ctx context.Context, c *Client) {
	p.mu.Lock()
	m, ok := p.conns[c.UserID]
	if !ok {
		p.mu.Unlock()
		return
	}
	if _, exists := m[c]; !exists {
		p.mu.Unlock()
		return
	}
	delete(m, c)
	if len(m) == 0 {
		delete(p.conns, c.UserID)
	}
	p.total--
	observability.WebSocketConnectionsTotal.Dec()
	wentOffline := p.leaveLocked(c)
	close(c.Send)
	p.mu.Unlock()

	if wentOffline {
		p.markOffline(ctx, c.UserID)
		p.Broadcast(ctx)
	}
}

// Join marks the client's user online and broadcasts the list.
func (p *Presence) Join(ctx context.Context, c *Client) {
	p.mu.Lock()
	if _, registered := p.conns[c.UserID][c]; !registered {
		p.mu.Unlock()
		return
	}
	first := false
	if _, already := p.joined[c]; !already {
		p.joined[c] = struct{}{}
		p.online[c.UserID]++
		first = p.online[c.UserID] == 1
	}
	p.mu.Unlock()

	if first {
		if err := p.notifier.MarkOnline(ctx, c.UserID); err != nil {
			p.logRedisError(ctx, "mark online", err)
		}
	}
	p.Broadcast(ctx)
}

// Logout takes the user offline on every connection of this process and
// broadcasts the list.
func (p *Presence) Logout(ctx context.Context, userID uint) {
	p.mu.Lock()
	for c := range p.conns[userID] {
		delete(p.joined, c)
	}
	delete(p.online, userID)
	p.mu.Unlock()

	p.markOffline(ctx, userID)
	p.Broadcast(ctx)
}

// leaveLocked unjoins c and reports whether its user has no joined
// connection left. p.mu must be held.
func (p *Presence) leaveLocked(c *Client) bool {
	if _, ok := p.joined[c]; !ok {
		return false
	}
	delete(p.joined, c)
	p.online[c.UserID]--
	if p.online[c.UserID] > 0 {
		return false
	}
	delete(p.online, c.UserID)
	return true
}

func (p *Presence) markOffline(ctx context.Context, userID uint) {
	if err := p.notifier.MarkOffline(ctx, userID); err != nil {
		p.logRedisError(ctx, "mark offline", err)
	}
}

// HandleMessage dispatches one client frame. The acting user is always the
// authenticated owner of the connection.
func (p *Presence) HandleMessage(ctx context.Context, c *Client, raw []byte) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		observability.WebSocketEventsTotal.WithLabelValues("malformed").Inc()
		return
	}

	switch ev.Event {
	case EventJoin:
		observability.WebSocketEventsTotal.WithLabelValues(EventJoin).Inc()
		p.Join(ctx, c)
	case EventLogout:
		observability.WebSocketEventsTotal.WithLabelValues(EventLogout).Inc()
		p.Logout(ctx, c.UserID)
	default:
		observability.WebSocketEventsTotal.WithLabelValues("unknown").Inc()
	}
}

// OnlineUsers returns the ids of online users as strings, ascending.
func (p *Presence) OnlineUsers(ctx context.Context) []string {
	if p.notifier.Enabled() {
		ids, err := p.notifier.OnlineUsers(ctx)
		if err == nil {
			return ids
		}
		p.logRedisError(ctx, "read online set", err)
	}

	p.mu.RLock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, formatID(id))
	}
	p.mu.RUnlock()
	sortIDs(ids)
	return ids
}

// Broadcast sends the current online list to every joined client. With
// Redis the snapshot is published and delivered by each process's
// subscriber; otherwise it is delivered locally.
func (p *Presence) Broadcast(ctx context.Context) {
	ids := p.OnlineUsers(ctx)
	observability.OnlineUsers.Set(float64(len(ids)))

	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	payload, err := json.Marshal(Event{Event: EventOnlineUsersUpdated, Data: data})
	if err != nil {
		return
	}

	if p.notifier.Enabled() {
		err := p.notifier.PublishPresence(ctx, string(payload))
		if err == nil {
			return
		}
		p.logRedisError(ctx, "publish presence", err)
	}
	p.Deliver(payload)
}

// Deliver pushes payload to every joined client of this process.
func (p *Presence) Deliver(payload []byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for c := range p.joined {
		c.TrySend(payload)
	}
}

// Start wires the Redis subscriber so snapshots from any process reach the
// local clients.
func (p *Presence) Start(ctx context.Context) error {
	return p.notifier.StartPresenceSubscriber(ctx, func(payload string) {
		p.Deliver([]byte(payload))
	})
}

// Shutdown closes every connection with a going-away frame.
func (p *Presence) Shutdown(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, clients := range p.conns {
		for c := range clients {
			if c.Conn == nil {
				continue
			}
			if err := c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				middleware.Logger.Warn("failed to write close frame",
					slog.Uint64("user_id", uint64(userID)),
					slog.String("error", err.Error()),
				)
			}
			_ = c.Conn.Close()
		}
	}
	return nil
}

func (p *Presence) logRedisError(ctx context.Context, op string, err error) {
	middleware.Logger.WarnContext(ctx, "presence redis operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
