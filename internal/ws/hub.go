package ws

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Relay carries published envelopes to hubs in other processes.
type Relay interface {
	Publish(ctx context.Context, rooms []string, payload []byte) error
	Listen(ctx context.Context, deliver func(rooms []string, payload []byte))
}

type outbound struct {
	rooms   []string
	payload []byte
}

type HubConfig struct {
	PingInterval time.Duration
	SendBuffer   int
	// RelayTimeout bounds each hand-off to the relay.
	RelayTimeout time.Duration
}

// Hub fans events out to clients by room. One Hub is built at process start
// and handed to whoever publishes or serves connections.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	mutex   sync.RWMutex

	broadcast  chan outbound
	relayQueue chan outbound
	done       chan struct{}

	pingInterval time.Duration
	sendBuffer   int
	relayTimeout time.Duration
	relay        Relay
	log          zerolog.Logger
}

func NewHub(cfg HubConfig, logger zerolog.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = 2 * time.Second
	}
	return &Hub{
		clients:      make(map[*Client]bool),
		rooms:        make(map[string]map[*Client]bool),
		broadcast:    make(chan outbound, 256),
		relayQueue:   make(chan outbound, 256),
		done:         make(chan struct{}),
		pingInterval: cfg.PingInterval,
		sendBuffer:   cfg.SendBuffer,
		relayTimeout: cfg.RelayTimeout,
		log:          logger,
	}
}

// UseRelay makes Publish forward to other instances and deliver what they
// publish. Call before Run.
func (h *Hub) UseRelay(r Relay) {
	h.relay = r
}

// Run owns fan-out, relay forwarding and the liveness probe. It returns once
// ctx is cancelled, after closing every client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	if h.relay != nil {
		go h.relay.Listen(ctx, func(rooms []string, payload []byte) {
			h.enqueue(outbound{rooms: rooms, payload: payload})
		})
		go h.forward(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case now := <-ticker.C:
			h.probe(now)
		}
	}
}

func (h *Hub) shutdown() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	close(h.done)
}

// add registers c unless the hub has shut down.
func (h *Hub) add(c *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.clients[c] = true
	h.log.Debug().Str("client_id", c.ID).Msg("ws client connected")
	return true
}

func (h *Hub) remove(c *Client, reason string) {
	h.mutex.Lock()
	if !h.clients[c] {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leave(c, room)
	}
	h.mutex.Unlock()

	c.close()
	h.log.Debug().Str("client_id", c.ID).Str("reason", reason).Msg("ws client removed")
}

// leave requires h.mutex held for writing.
func (h *Hub) leave(c *Client, room string) {
	delete(c.rooms, room)
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) fanOut(msg outbound) {
	h.mutex.RLock()
	targets := make(map[*Client]bool)
	for _, room := range msg.rooms {
		for c := range h.rooms[room] {
			targets[c] = true
		}
	}
	h.mutex.RUnlock()

	for c := range targets {
		if !c.trySend(msg.payload) {
			h.log.Warn().Str("client_id", c.ID).Msg("ws send buffer full, event dropped")
		}
	}
}

// probe pings every client and drops those silent for two intervals.
func (h *Hub) probe(now time.Time) {
	h.mutex.RLock()
	var stale, live []*Client
	for c := range h.clients {
		if c.idleFor(now) > 2*h.pingInterval {
			stale = append(stale, c)
		} else {
			live = append(live, c)
		}
	}
	h.mutex.RUnlock()

	for _, c := range stale {
		h.remove(c, "liveness timeout")
	}
	ping := encode(control{Type: TypePing, Timestamp: now.UTC()})
	for _, c := range live {
		c.trySend(ping)
	}
}

// forward hands queued events to the relay, one bounded call at a time.
func (h *Hub) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.relayQueue:
			sendCtx, cancel := context.WithTimeout(ctx, h.relayTimeout)
			err := h.relay.Publish(sendCtx, msg.rooms, msg.payload)
			cancel()
			if err != nil {
				h.log.Warn().Err(err).Strs("rooms", msg.rooms).Msg("failed to relay event")
			}
		}
	}
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Publish delivers e to every client subscribed to any of rooms, and to the
// relay when one is configured. Rooms without subscribers are a no-op. It
// never waits on a subscriber or on the relay.
func (h *Hub) Publish(_ context.Context, e Event, rooms ...string) {
	if len(rooms) == 0 {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("type", e.Type).Msg("failed to encode event")
		return
	}
	msg := outbound{rooms: rooms, payload: payload}
	h.enqueue(msg)

	if h.relay != nil {
		select {
		case h.relayQueue <- msg:
		default:
			h.log.Warn().Str("type", e.Type).Msg("relay queue full, event not relayed")
		}
	}
}

// Serve runs one connection until it closes. It blocks. The client is
// registered before its first message is read.
func (h *Hub) Serve(conn Conn) {
	c := newClient(uuid.NewString(), conn, h.sendBuffer)
	if !h.add(c) {
		conn.Close()
		return
	}
	go c.writePump()
	c.trySend(encode(control{Type: TypeWelcome, ClientID: c.ID, Timestamp: time.Now().UTC()}))
	defer h.remove(c, "disconnected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		h.handle(c, data)
	}
}

func (h *Hub) handle(c *Client, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.trySend(encode(control{Type: TypeError, Message: "invalid message", Timestamp: time.Now().UTC()}))
		return
	}

	switch in.Type {
	case TypeSubscribe:
		h.subscribe(c, in.Rooms)
		c.trySend(encode(control{Type: TypeSubscribed, Rooms: h.roomsOf(c), Timestamp: time.Now().UTC()}))
	case TypeUnsubscribe:
		h.unsubscribe(c, in.Rooms)
		c.trySend(encode(control{Type: TypeSubscribed, Rooms: h.roomsOf(c), Timestamp: time.Now().UTC()}))
	case TypePing:
		c.trySend(encode(control{Type: TypePong, Timestamp: time.Now().UTC()}))
	case TypePong:
	default:
		c.trySend(encode(control{Type: TypeError, Message: "unknown message type", Timestamp: time.Now().UTC()}))
	}
}

func (h *Hub) subscribe(c *Client, rooms []string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.clients[c] {
		return
	}
	for _, room := range rooms {
		if room == "" {
			continue
		}
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]bool)
			h.rooms[room] = members
		}
		members[c] = true
		c.rooms[room] = true
	}
}

func (h *Hub) unsubscribe(c *Client, rooms []string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, room := range rooms {
		if c.rooms[room] {
			h.leave(c, room)
		}
	}
}

func (h *Hub) roomsOf(c *Client) []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
