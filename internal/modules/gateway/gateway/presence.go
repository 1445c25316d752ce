package gateway

import "sort"

// Presence is a projection of the session registry: it is recomputed on every
// query, never maintained as separate state.

// OnlineUsers lists authenticated users, one entry per user. When a user holds
// several connections the freshest activity timestamp wins.
func (h *Hub) OnlineUsers() []PresenceEntry {
	h.mu.RLock()
	byUser := make(map[string]PresenceEntry)
	for _, s := range h.sessions {
		if !s.authenticated() {
			continue
		}
		prev, seen := byUser[s.userID]
		if !seen || s.lastActivity.After(prev.LastActivity) {
			byUser[s.userID] = PresenceEntry{
				UserID:       s.userID,
				Role:         s.role,
				LastActivity: s.lastActivity,
			}
		}
	}
	h.mu.RUnlock()

	out := make([]PresenceEntry, 0, len(byUser))
	for _, entry := range byUser {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// OnlineCount returns the number of distinct authenticated users online.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, s := range h.sessions {
		if s.authenticated() {
			seen[s.userID] = struct{}{}
		}
	}
	return len(seen)
}
