package gateway

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quickcart/core/internal/modules/gateway/store"
	"go.uber.org/zap"
)

type fakeEmit struct {
	event   string
	payload map[string]interface{}
}

// fakeTransport records emitted events; fail simulates a dead connection.
type fakeTransport struct {
	mu     sync.Mutex
	events []fakeEmit
	fail   bool
	closed bool
}

func (f *fakeTransport) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport broken")
	}
	m, _ := payload.(map[string]interface{})
	f.events = append(f.events, fakeEmit{event: event, payload: m})
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeTransport) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last(event string) (map[string]interface{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].event == event {
			return f.events[i].payload, true
		}
	}
	return nil, false
}

// testVerify resolves tokens of the form "<userID>/<role>".
func testVerify(token string) (string, string, error) {
	parts := strings.SplitN(token, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", errors.New("invalid token")
	}
	return parts[0], parts[1], nil
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(store.NewEventStore(100), testVerify, nil, zap.NewNop(), time.Hour)
	t.Cleanup(h.Close)
	return h
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectEmitsAcknowledgement(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}

	connID := h.Connect(ft)
	if connID == "" {
		t.Fatal("expected a connection ID")
	}
	payload, ok := ft.last(eventConnected)
	if !ok {
		t.Fatal("expected a connected event")
	}
	if payload["connectionId"] != connID {
		t.Fatalf("connected event carries %v, want %s", payload["connectionId"], connID)
	}
	if _, ok := payload["timestamp"]; !ok {
		t.Fatal("expected a timestamp stamp")
	}
	if h.ConnectedCount() != 1 {
		t.Fatalf("ConnectedCount = %d, want 1", h.ConnectedCount())
	}
}

func TestAuthenticateBindsIdentityAndAutoJoins(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}
	connID := h.Connect(ft)

	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if !h.IsMember(connID, RoomForUser("userA")) {
		t.Fatal("expected membership in the identity room")
	}
	if !h.IsMember(connID, RoomForRole("customer")) {
		t.Fatal("expected membership in the role room")
	}
	payload, ok := ft.last(eventAuthenticated)
	if !ok {
		t.Fatal("expected an authenticated event")
	}
	if payload["userId"] != "userA" || payload["role"] != "customer" {
		t.Fatalf("authenticated payload = %v", payload)
	}
}

func TestAuthenticateFailureKeepsSessionOpen(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}
	connID := h.Connect(ft)

	if err := h.Authenticate(connID, "garbage"); err == nil {
		t.Fatal("expected an error for an invalid token")
	}

	if _, ok := ft.last(eventError); !ok {
		t.Fatal("expected an error event")
	}
	if h.ConnectedCount() != 1 {
		t.Fatal("failed auth must not terminate the connection")
	}
	if h.OnlineCount() != 0 {
		t.Fatal("failed auth must not mutate session identity")
	}

	// The client may retry.
	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	connID := h.Connect(&fakeTransport{})
	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := h.Join(connID, "public:lobby"); err != nil {
			t.Fatalf("Join #%d: %v", i+1, err)
		}
	}
	if got := h.RoomCount("public:lobby"); got != 1 {
		t.Fatalf("RoomCount = %d, want 1", got)
	}
}

func TestLeaveWhenNotAMemberIsNoop(t *testing.T) {
	h := newTestHub(t)
	connID := h.Connect(&fakeTransport{})
	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := h.Leave(connID, "public:lobby"); err != nil {
		t.Fatalf("Leave of a non-member room must not error: %v", err)
	}
	if got := h.RoomCount("public:lobby"); got != 0 {
		t.Fatalf("RoomCount = %d, want 0", got)
	}
}

func TestAnonymousSessionCannotJoin(t *testing.T) {
	h := newTestHub(t)
	connID := h.Connect(&fakeTransport{})

	if err := h.Join(connID, "public:lobby"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("anonymous join = %v, want ErrPermissionDenied", err)
	}
}

func TestDisconnectCleansUpFully(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}
	connID := h.Connect(ft)
	other := h.Connect(&fakeTransport{})

	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := h.Authenticate(other, "userB/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	for _, room := range []string{"public:lobby", "public:news"} {
		if err := h.Join(connID, room); err != nil {
			t.Fatalf("Join %s: %v", room, err)
		}
		if err := h.Join(other, room); err != nil {
			t.Fatalf("Join %s: %v", room, err)
		}
	}

	h.Disconnect(connID)

	if got := h.RoomCount("public:lobby"); got != 1 {
		t.Fatalf("public:lobby count = %d, want 1", got)
	}
	if got := h.RoomCount("public:news"); got != 1 {
		t.Fatalf("public:news count = %d, want 1", got)
	}
	if got := h.RoomCount(RoomForUser("userA")); got != 0 {
		t.Fatalf("identity room count = %d, want 0", got)
	}
	users := h.OnlineUsers()
	if len(users) != 1 || users[0].UserID != "userB" {
		t.Fatalf("presence after disconnect = %v", users)
	}

	// A second disconnect is a no-op.
	h.Disconnect(connID)
	if got := h.ConnectedCount(); got != 1 {
		t.Fatalf("ConnectedCount after double disconnect = %d, want 1", got)
	}
}

func TestSendRequiresMembership(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}
	connID := h.Connect(ft)
	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := h.Send(connID, "public:lobby", "hi", ""); !errors.Is(err, ErrNotRoomMember) {
		t.Fatalf("Send = %v, want ErrNotRoomMember", err)
	}
	if _, ok := ft.last(eventError); !ok {
		t.Fatal("expected an error event")
	}
	if got := len(h.EventHistory(10)); got != 0 {
		t.Fatalf("rejected send must not be stored, history has %d entries", got)
	}
}

func TestSendRequiresAuthentication(t *testing.T) {
	h := newTestHub(t)
	connID := h.Connect(&fakeTransport{})

	if err := h.Send(connID, "public:lobby", "hi", ""); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("anonymous Send = %v, want ErrAuthRequired", err)
	}
}

func TestChatRoundTrip(t *testing.T) {
	h := newTestHub(t)
	ftA := &fakeTransport{}
	ftB := &fakeTransport{}
	connA := h.Connect(ftA)
	connB := h.Connect(ftB)

	if err := h.Authenticate(connA, "userA/customer"); err != nil {
		t.Fatalf("Authenticate A: %v", err)
	}
	if err := h.Authenticate(connB, "userB/customer"); err != nil {
		t.Fatalf("Authenticate B: %v", err)
	}
	if err := h.Join(connA, "public:lobby"); err != nil {
		t.Fatalf("Join A: %v", err)
	}
	if err := h.Join(connB, "public:lobby"); err != nil {
		t.Fatalf("Join B: %v", err)
	}

	if err := h.Send(connA, "public:lobby", "hi", ""); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, func() bool { return ftB.count(eventMessage) > 0 }, "B never received the message")
	payload, _ := ftB.last(eventMessage)
	if payload["senderId"] != "userA" || payload["message"] != "hi" {
		t.Fatalf("message payload = %v", payload)
	}
	if payload["senderRole"] != "customer" {
		t.Fatalf("senderRole = %v, want customer", payload["senderRole"])
	}

	history := h.EventHistory(10)
	if len(history) != 1 || history[0].Type != eventMessage {
		t.Fatalf("history = %+v, want one message event", history)
	}
}

func TestPingRefreshesActivity(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}
	connID := h.Connect(ft)
	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	h.mu.Lock()
	h.sessions[connID].lastActivity = time.Now().Add(-time.Hour)
	h.mu.Unlock()

	if err := h.Ping(connID); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, ok := ft.last(eventPong); !ok {
		t.Fatal("expected a pong event")
	}

	users := h.OnlineUsers()
	if len(users) != 1 {
		t.Fatalf("presence = %v", users)
	}
	if time.Since(users[0].LastActivity) > time.Minute {
		t.Fatal("ping must refresh last activity")
	}
}

func TestGetOnlineUsers(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}
	connID := h.Connect(ft)
	if err := h.Authenticate(connID, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	// An anonymous observer still gets an answer.
	anon := h.Connect(&fakeTransport{})

	if err := h.SendOnlineUsers(connID); err != nil {
		t.Fatalf("SendOnlineUsers: %v", err)
	}
	payload, ok := ft.last(eventOnlineUsers)
	if !ok {
		t.Fatal("expected an online_users event")
	}
	if payload["count"] != 1 {
		t.Fatalf("count = %v, want 1", payload["count"])
	}
	if err := h.SendOnlineUsers(anon); err != nil {
		t.Fatalf("SendOnlineUsers (anonymous): %v", err)
	}
}

func TestOnlineUsersDedupesConnections(t *testing.T) {
	h := newTestHub(t)
	connA := h.Connect(&fakeTransport{})
	connB := h.Connect(&fakeTransport{})
	if err := h.Authenticate(connA, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := h.Authenticate(connB, "userA/customer"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if got := h.OnlineCount(); got != 1 {
		t.Fatalf("OnlineCount = %d, want 1 (two connections, one user)", got)
	}
}

func TestUnknownConnectionCommands(t *testing.T) {
	h := newTestHub(t)

	if err := h.Join("missing", "public:lobby"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("Join = %v, want ErrUnknownSession", err)
	}
	if err := h.Ping("missing"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("Ping = %v, want ErrUnknownSession", err)
	}
	if err := h.Send("missing", "public:lobby", "hi", ""); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("Send = %v, want ErrUnknownSession", err)
	}
}

func TestSweepIdleEvictsStaleSessions(t *testing.T) {
	h := newTestHub(t)
	ft := &fakeTransport{}
	connID := h.Connect(ft)
	h.Connect(&fakeTransport{})

	h.mu.Lock()
	h.sessions[connID].lastActivity = time.Now().Add(-time.Hour)
	h.mu.Unlock()

	if n := h.SweepIdle(30 * time.Minute); n != 1 {
		t.Fatalf("SweepIdle = %d, want 1", n)
	}
	ft.mu.Lock()
	closed := ft.closed
	ft.mu.Unlock()
	if !closed {
		t.Fatal("expected the idle transport to be disconnected")
	}
	if got := h.ConnectedCount(); got != 1 {
		t.Fatalf("ConnectedCount = %d, want 1", got)
	}

	if n := h.SweepIdle(0); n != 0 {
		t.Fatal("a non-positive threshold must disable the sweep")
	}
}

func TestHeartbeatEmitsAndDetectsDeadTransport(t *testing.T) {
	h := NewHub(store.NewEventStore(10), testVerify, nil, zap.NewNop(), 20*time.Millisecond)
	t.Cleanup(h.Close)

	ft := &fakeTransport{}
	h.Connect(ft)
	waitFor(t, func() bool { return ft.count(eventHeartbeat) >= 2 }, "heartbeats never arrived")

	// A broken transport turns the next heartbeat into an implicit disconnect.
	ft.mu.Lock()
	ft.fail = true
	ft.mu.Unlock()
	waitFor(t, func() bool { return h.ConnectedCount() == 0 }, "dead transport was never evicted")
}
