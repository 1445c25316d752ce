package gateway

import "strings"

// canJoinRoom is the room join predicate. Anonymous sessions may observe but
// never join; the admin role may join any room. For namespaced rooms the
// session must own the matching identity or role; public rooms are open to
// any authenticated session.
func canJoinRoom(userID, role, room string) bool {
	if userID == "" {
		return false
	}

	switch {
	case strings.HasPrefix(room, roomPrefixUser):
		if room == RoomForUser(userID) {
			return true
		}
	case strings.HasPrefix(room, roomPrefixRole):
		if role != "" && room == RoomForRole(role) {
			return true
		}
	case strings.HasPrefix(room, roomPrefixPublic):
		return true
	}

	return role == RoleAdmin
}
