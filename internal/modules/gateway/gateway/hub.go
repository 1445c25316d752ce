package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/quickcart/core/internal/modules/gateway/store"
	pkgredis "github.com/quickcart/core/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// NewHub creates the gateway hub. The verifier is the external auth
// collaborator; rc may be nil to disable online statistics.
func NewHub(events *store.EventStore, verify AuthVerifier, rc *pkgredis.Client, logger *zap.Logger, heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	h := &Hub{
		sessions:  make(map[string]*session),
		rooms:     make(map[string]map[string]struct{}),
		events:    events,
		verify:    verify,
		rc:        rc,
		logger:    logger,
		sio:       socketio.NewServer(nil, nil),
		heartbeat: heartbeat,
	}
	h.registerNamespace()
	return h
}

// Connect registers a new anonymous session for the given transport and
// returns its connection ID. The acknowledgement event and the per-connection
// heartbeat are started here.
func (h *Hub) Connect(t Transport) string {
	s := &session{
		id:           uuid.NewString(),
		rooms:        make(map[string]struct{}),
		lastActivity: time.Now(),
		transport:    t,
		stop:         make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	connected := len(h.sessions)
	h.mu.Unlock()

	go h.heartbeatLoop(s)
	go h.recordOnlineStats(connected)

	h.logger.Info("client connected", zap.String("connId", s.id))
	h.emit(s, eventConnected, map[string]interface{}{"connectionId": s.id})
	return s.id
}

// Disconnect removes the session and all of its room memberships. It is
// idempotent: a second call for the same connection is a no-op.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, connID)
	for room := range s.rooms {
		h.leaveRoomLocked(connID, room)
	}
	h.mu.Unlock()

	close(s.stop)
	h.logger.Info("client disconnected", zap.String("connId", connID), zap.String("userId", s.userID))
}

// Authenticate resolves the token through the auth collaborator and, on
// success, binds identity and role to the session and auto-joins the identity
// and role rooms. Failure leaves the session untouched and the connection open.
func (h *Hub) Authenticate(connID, token string) error {
	userID, role, err := h.verify(token)
	if err != nil {
		h.logger.Warn("authentication failed", zap.String("connId", connID), zap.Error(err))
		h.emitError(connID, "authentication failed: "+err.Error())
		return err
	}

	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownSession
	}
	s.userID = userID
	s.role = role
	s.lastActivity = time.Now()
	h.joinRoomLocked(connID, RoomForUser(userID))
	if role != "" {
		h.joinRoomLocked(connID, RoomForRole(role))
	}
	h.mu.Unlock()

	h.logger.Info("client authenticated",
		zap.String("connId", connID),
		zap.String("userId", userID),
		zap.String("role", role),
	)
	h.emit(s, eventAuthenticated, map[string]interface{}{"userId": userID, "role": role})
	return nil
}

// Join adds the session to a room after the permission predicate allows it.
// Joining a room the session already belongs to is a no-op success.
func (h *Hub) Join(connID, room string) error {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownSession
	}
	s.lastActivity = time.Now()
	if !canJoinRoom(s.userID, s.role, room) {
		h.mu.Unlock()
		h.emitError(connID, "cannot join room "+room)
		return ErrPermissionDenied
	}
	h.joinRoomLocked(connID, room)
	h.mu.Unlock()

	h.emit(s, eventRoomJoined, map[string]interface{}{"room": room})
	return nil
}

// Leave removes the session from a room. Leaving a room the session is not in
// is a no-op success.
func (h *Hub) Leave(connID, room string) error {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownSession
	}
	s.lastActivity = time.Now()
	h.leaveRoomLocked(connID, room)
	delete(s.rooms, room)
	h.mu.Unlock()

	h.emit(s, eventRoomLeft, map[string]interface{}{"room": room})
	return nil
}

// Send persists a chat message as an event and fans it out to the room. The
// sender must be authenticated and already a member of the room.
func (h *Hub) Send(connID, room, message, msgType string) error {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownSession
	}
	s.lastActivity = time.Now()
	if !s.authenticated() {
		h.mu.Unlock()
		h.emitError(connID, "authentication required")
		return ErrAuthRequired
	}
	if _, member := s.rooms[room]; !member {
		h.mu.Unlock()
		h.emitError(connID, "not a member of room "+room)
		return ErrNotRoomMember
	}
	senderID, senderRole := s.userID, s.role
	h.mu.Unlock()

	if msgType == "" {
		msgType = "text"
	}
	ev := store.Event{
		ID:        uuid.NewString(),
		Type:      eventMessage,
		Target:    store.RoomTarget(room),
		CreatedAt: time.Now(),
		Payload: map[string]interface{}{
			"room":       room,
			"message":    message,
			"type":       msgType,
			"senderId":   senderID,
			"senderRole": senderRole,
		},
	}
	// Stored before delivery so the audit record survives a delivery failure.
	h.events.Append(ev)

	h.Deliver(ev.Target, eventMessage, map[string]interface{}{
		"id":         ev.ID,
		"room":       room,
		"message":    message,
		"type":       msgType,
		"senderId":   senderID,
		"senderRole": senderRole,
	})
	return nil
}

// Ping refreshes the session's activity timestamp and answers with a pong.
func (h *Hub) Ping(connID string) error {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownSession
	}
	s.lastActivity = time.Now()
	h.mu.Unlock()

	h.emit(s, eventPong, map[string]interface{}{})
	return nil
}

// SendOnlineUsers answers the get_online_users command on one connection.
func (h *Hub) SendOnlineUsers(connID string) error {
	h.mu.RLock()
	s, ok := h.sessions[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownSession
	}

	users := h.OnlineUsers()
	h.emit(s, eventOnlineUsers, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
	return nil
}

// EventHistory returns the most recent events, newest first.
func (h *Hub) EventHistory(limit int) []store.Event {
	return h.events.History(limit)
}

// SweepIdle disconnects sessions whose last activity is older than the given
// threshold and returns how many were evicted. A non-positive threshold
// disables the sweep.
func (h *Hub) SweepIdle(olderThan time.Duration) int {
	if olderThan <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-olderThan)

	h.mu.RLock()
	var idle []*session
	for _, s := range h.sessions {
		if s.lastActivity.Before(cutoff) {
			idle = append(idle, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range idle {
		h.logger.Info("evicting idle session", zap.String("connId", s.id), zap.String("userId", s.userID))
		s.transport.Disconnect()
		h.Disconnect(s.id)
	}
	return len(idle)
}

// Close disconnects every session and shuts down the socket.io server.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Disconnect(id)
	}
	h.sio.Close(nil)
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}

// heartbeatLoop emits a periodic heartbeat for one connection until the
// session is removed. A failed write is treated as an implicit disconnect.
func (h *Hub) heartbeatLoop(s *session) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.transport.Emit(eventHeartbeat, stampPayload(nil)); err != nil {
				h.logger.Debug("heartbeat write failed, disconnecting",
					zap.String("connId", s.id), zap.Error(err))
				h.Disconnect(s.id)
				return
			}
		}
	}
}

// emit sends one event to a single session, stamping the payload with the
// send-time timestamp. Write failures are logged, never propagated.
func (h *Hub) emit(s *session, event string, payload map[string]interface{}) {
	if err := s.transport.Emit(event, stampPayload(payload)); err != nil {
		h.logger.Debug("emit failed",
			zap.String("connId", s.id),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// emitError sends an error event to one connection, if it is still registered.
func (h *Hub) emitError(connID, message string) {
	h.mu.RLock()
	s, ok := h.sessions[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.emit(s, eventError, map[string]interface{}{"message": message})
}

func stampPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return out
}
