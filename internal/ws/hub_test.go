package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	stall     bool

	mu      sync.Mutex
	written []map[string]any
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-f.inbox:
		return websocket.TextMessage, m, nil
	case <-f.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if f.stall {
		<-f.closed
	}
	select {
	case <-f.closed:
		return errors.New("connection closed")
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.mu.Lock()
	f.written = append(f.written, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) send(v any) {
	b, _ := json.Marshal(v)
	f.inbox <- b
}

func (f *fakeConn) received(typ string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, m := range f.written {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func startHub(t *testing.T, cfg HubConfig) *Hub {
	t.Helper()
	hub := NewHub(cfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, rooms ...string) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	go hub.Serve(conn)
	require.Eventually(t, func() bool { return len(conn.received(TypeWelcome)) == 1 }, time.Second, 5*time.Millisecond)

	if len(rooms) > 0 {
		conn.send(map[string]any{"type": TypeSubscribe, "rooms": rooms})
		require.Eventually(t, func() bool { return len(conn.received(TypeSubscribed)) == 1 }, time.Second, 5*time.Millisecond)
	}
	return conn
}

func TestHub_WelcomeCarriesClientID(t *testing.T) {
	hub := startHub(t, HubConfig{})
	conn := connect(t, hub)

	welcome := conn.received(TypeWelcome)[0]
	assert.NotEmpty(t, welcome["clientId"])
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_DeliversOnlyToMatchingRooms(t *testing.T) {
	hub := startHub(t, HubConfig{})
	repair42 := uuid.New()
	repair43 := uuid.New()

	subscribed := connect(t, hub, RepairRoom(repair42))
	other := connect(t, hub, RepairRoom(repair43))
	idle := connect(t, hub)

	hub.Publish(context.Background(), Event{Type: "repair_update", RepairID: &repair42, Message: "ready"}, RepairRoom(repair42))

	require.Eventually(t, func() bool { return len(subscribed.received("repair_update")) == 1 }, time.Second, 5*time.Millisecond)
	got := subscribed.received("repair_update")[0]
	assert.Equal(t, repair42.String(), got["repairId"])
	assert.NotEmpty(t, got["timestamp"])

	// A later event proves the hub processed the first one for everyone.
	hub.Publish(context.Background(), Event{Type: "marker"}, RepairRoom(repair43))
	require.Eventually(t, func() bool { return len(other.received("marker")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, other.received("repair_update"))
	assert.Empty(t, idle.received("repair_update"))
}

func TestHub_ClientInSeveralRoomsGetsOneCopy(t *testing.T) {
	hub := startHub(t, HubConfig{})
	invoiceID := uuid.New()
	conn := connect(t, hub, RoomInvoices, InvoiceRoom(invoiceID))

	hub.Publish(context.Background(), Event{Type: "invoice_paid", InvoiceID: &invoiceID}, RoomInvoices, InvoiceRoom(invoiceID))
	hub.Publish(context.Background(), Event{Type: "marker"}, RoomInvoices)

	require.Eventually(t, func() bool { return len(conn.received("marker")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, conn.received("invoice_paid"), 1)
}

func TestHub_PingPongAndUnsubscribe(t *testing.T) {
	hub := startHub(t, HubConfig{})
	conn := connect(t, hub, RoomPayments)

	conn.send(map[string]any{"type": TypePing})
	require.Eventually(t, func() bool { return len(conn.received(TypePong)) == 1 }, time.Second, 5*time.Millisecond)

	conn.send(map[string]any{"type": TypeUnsubscribe, "rooms": []string{RoomPayments}})
	require.Eventually(t, func() bool { return hub.RoomSize(RoomPayments) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_PublishToEmptyRoomIsNoop(t *testing.T) {
	hub := startHub(t, HubConfig{})
	conn := connect(t, hub, RoomRepairs)

	hub.Publish(context.Background(), Event{Type: "nobody_listens"}, "room_without_members")
	hub.Publish(context.Background(), Event{Type: "marker"}, RoomRepairs)

	require.Eventually(t, func() bool { return len(conn.received("marker")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, conn.received("nobody_listens"))
}

func TestHub_CloseRemovesClientFromRooms(t *testing.T) {
	hub := startHub(t, HubConfig{})
	conn := connect(t, hub, RoomInvoices, RoomPayments)
	require.Equal(t, 1, hub.RoomSize(RoomInvoices))

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0 && hub.RoomSize(RoomInvoices) == 0 && hub.RoomSize(RoomPayments) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHub_SilentClientIsDroppedAfterTwoIntervals(t *testing.T) {
	interval := 20 * time.Millisecond
	hub := startHub(t, HubConfig{PingInterval: interval})

	silent := connect(t, hub, RoomRepairs)
	responsive := connect(t, hub, RoomRepairs)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				responsive.send(map[string]any{"type": TypePong})
			}
		}
	}()

	require.Eventually(t, silent.isClosed, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.RoomSize(RoomRepairs) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, responsive.isClosed())
	assert.NotEmpty(t, responsive.received(TypePing))
}

func TestHub_SlowConsumerDoesNotStallOthers(t *testing.T) {
	hub := startHub(t, HubConfig{SendBuffer: 2})

	stalled := newFakeConn()
	stalled.stall = true
	go hub.Serve(stalled)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	stalled.send(map[string]any{"type": TypeSubscribe, "rooms": []string{RoomInventory}})
	require.Eventually(t, func() bool { return hub.RoomSize(RoomInventory) == 1 }, time.Second, 5*time.Millisecond)

	fast := connect(t, hub, RoomInventory)

	for i := 0; i < 20; i++ {
		hub.Publish(context.Background(), Event{Type: "stock_update", Message: fmt.Sprintf("event %d", i)}, RoomInventory)
		if i%2 == 1 {
			// let the fast client's pump drain its small buffer
			require.Eventually(t, func() bool { return len(fast.received("stock_update")) == i+1 }, time.Second, time.Millisecond)
		}
	}
	assert.Len(t, fast.received("stock_update"), 20)
	stalled.Close()
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(HubConfig{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn := connect(t, hub, RoomInvoices)
	cancel()

	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
	hub.Publish(context.Background(), Event{Type: "after_shutdown"}, RoomInvoices)
}

func TestHub_SubscribeSentOnOpenIsHonoured(t *testing.T) {
	hub := startHub(t, HubConfig{})

	const clients = 200
	conns := make([]*fakeConn, clients)
	for i := range conns {
		conn := newFakeConn()
		conn.send(map[string]any{"type": TypeSubscribe, "rooms": []string{RoomRepairs}})
		go hub.Serve(conn)
		conns[i] = conn
	}

	for i, conn := range conns {
		require.Eventually(t, func() bool { return len(conn.received(TypeSubscribed)) == 1 }, time.Second, time.Millisecond, "client %d", i)
		assert.Equal(t, []any{RoomRepairs}, conn.received(TypeSubscribed)[0]["rooms"], "client %d", i)
	}
	assert.Equal(t, clients, hub.RoomSize(RoomRepairs))

	for _, conn := range conns {
		conn.Close()
	}
}

// stuckRelay blocks every Publish until its context ends.
type stuckRelay struct {
	mu   sync.Mutex
	errs []error
}

func (r *stuckRelay) Publish(ctx context.Context, _ []string, _ []byte) error {
	<-ctx.Done()
	r.mu.Lock()
	r.errs = append(r.errs, ctx.Err())
	r.mu.Unlock()
	return ctx.Err()
}

func (r *stuckRelay) Listen(ctx context.Context, _ func([]string, []byte)) {
	<-ctx.Done()
}

func (r *stuckRelay) failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func TestHub_StuckRelayDoesNotDelayPublish(t *testing.T) {
	relay := &stuckRelay{}
	hub := NewHub(HubConfig{RelayTimeout: 20 * time.Millisecond}, zerolog.Nop())
	hub.UseRelay(relay)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	conn := connect(t, hub, RoomPayments)

	start := time.Now()
	for i := 0; i < 5; i++ {
		hub.Publish(context.Background(), Event{Type: "payment_recorded"}, RoomPayments)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	require.Eventually(t, func() bool { return len(conn.received("payment_recorded")) == 5 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(relay.failures()) >= 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, relay.failures()[0], context.DeadlineExceeded)
}
