package gateway

// Room index bookkeeping. Both directions of the membership relation are kept
// in sync under h.mu: session → rooms on the session, room → sessions here.

func (h *Hub) joinRoomLocked(connID, room string) {
	s, ok := h.sessions[connID]
	if !ok {
		return
	}
	if _, member := s.rooms[room]; member {
		return
	}
	s.rooms[room] = struct{}{}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) leaveRoomLocked(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// recipient pairs a connection ID with its transport for fan-out outside the lock.
type recipient struct {
	id        string
	transport Transport
}

// roomSnapshot copies the current membership of a room. Broadcasts iterate the
// snapshot, never the live set, so concurrent joins and disconnects are safe.
func (h *Hub) roomSnapshot(room string) []recipient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	out := make([]recipient, 0, len(members))
	for connID := range members {
		if s, ok := h.sessions[connID]; ok {
			out = append(out, recipient{id: connID, transport: s.transport})
		}
	}
	return out
}

// allSnapshot copies every connected session, authenticated or not.
func (h *Hub) allSnapshot() []recipient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]recipient, 0, len(h.sessions))
	for connID, s := range h.sessions {
		out = append(out, recipient{id: connID, transport: s.transport})
	}
	return out
}

// ConnectedCount returns the number of live connections.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// RoomCount returns the number of sessions in one room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCounts returns the membership count of every live room.
func (h *Hub) RoomCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		out[room] = len(members)
	}
	return out
}

// IsMember reports whether the connection has joined the room.
func (h *Hub) IsMember(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[connID]
	if !ok {
		return false
	}
	_, member := s.rooms[room]
	return member
}
