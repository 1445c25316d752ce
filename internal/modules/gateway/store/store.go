package store

import "sync"

// DefaultHistoryLimit caps history queries when the caller passes limit <= 0.
const DefaultHistoryLimit = 50

// EventStore is a bounded history of dispatched events kept in a fixed ring.
// At capacity the newest entry overwrites the oldest; an append never shifts
// or reallocates.
type EventStore struct {
	mu   sync.RWMutex
	buf  []Event
	head int // next write position
	size int
}

// NewEventStore creates an event store holding at most capacity entries.
func NewEventStore(capacity int) *EventStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventStore{buf: make([]Event, capacity)}
}

// Append records an event, overwriting the oldest entry at capacity.
func (s *EventStore) Append(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.head] = ev
	s.head = (s.head + 1) % len(s.buf)
	if s.size < len(s.buf) {
		s.size++
	}
}

// History returns the most recent limit events, newest first. The limit is
// clamped to the store size and defaults when non-positive.
func (s *EventStore) History(limit int) []Event {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > s.size {
		limit = s.size
	}
	out := make([]Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.buf[(s.head-1-i+len(s.buf))%len(s.buf)]
	}
	return out
}

// Len returns the number of retained events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// NotificationStore keeps a bounded per-user history of directed
// notifications, one fixed ring per user.
type NotificationStore struct {
	mu      sync.RWMutex
	byUser  map[string]*notificationRing
	perUser int
}

// notificationRing entries at indices [0, size) are live; head is the next
// write position once the ring has wrapped.
type notificationRing struct {
	buf  []Notification
	head int
	size int
}

// NewNotificationStore creates a store keeping at most perUser entries per user.
func NewNotificationStore(perUser int) *NotificationStore {
	if perUser <= 0 {
		perUser = 1
	}
	return &NotificationStore{
		byUser:  make(map[string]*notificationRing),
		perUser: perUser,
	}
}

// Append records a notification for its user, overwriting that user's oldest
// entry at capacity.
func (s *NotificationStore) Append(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[n.UserID]
	if !ok {
		r = &notificationRing{buf: make([]Notification, s.perUser)}
		s.byUser[n.UserID] = r
	}
	r.buf[r.head] = n
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// History returns the user's most recent limit notifications, newest first.
func (s *NotificationStore) History(userID string, limit int) []Notification {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byUser[userID]
	if !ok {
		return []Notification{}
	}
	if limit > r.size {
		limit = r.size
	}
	out := make([]Notification, limit)
	for i := 0; i < limit; i++ {
		out[i] = r.buf[(r.head-1-i+len(r.buf))%len(r.buf)]
	}
	return out
}

// MarkRead flips the read flag of the user's notification with the given ID.
// It reports whether the notification was found.
func (s *NotificationStore) MarkRead(userID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[userID]
	if !ok {
		return false
	}
	for i := range r.buf[:r.size] {
		if r.buf[i].ID == id {
			r.buf[i].Read = true
			return true
		}
	}
	return false
}

// UnreadCount returns how many of the user's retained notifications are unread.
func (s *NotificationStore) UnreadCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byUser[userID]
	if !ok {
		return 0
	}
	count := 0
	for _, n := range r.buf[:r.size] {
		if !n.Read {
			count++
		}
	}
	return count
}
