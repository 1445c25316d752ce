package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/quickcart/core/internal/modules/gateway/store"
	pkgredis "github.com/quickcart/core/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	namespaceRealtime = "/realtime"

	// Room namespaces. A room exists implicitly while at least one session is
	// a member; nothing is pre-allocated.
	roomPrefixUser   = "user:"
	roomPrefixRole   = "role:"
	roomPrefixPublic = "public:"

	// RoleAdmin is the elevated role allowed to join any room.
	RoleAdmin = "admin"

	redisKeyMaxOnlineCount      = "qc:max_online_count"
	redisKeyMaxOnlineCountTotal = "qc:max_online_count:total"
)

// Client → server commands.
const (
	commandAuthenticate   = "authenticate"
	commandJoin           = "join"
	commandLeave          = "leave"
	commandSend           = "send"
	commandPing           = "ping"
	commandGetOnlineUsers = "get_online_users"
)

// Server → client events.
const (
	eventConnected     = "connected"
	eventAuthenticated = "authenticated"
	eventError         = "error"
	eventRoomJoined    = "room_joined"
	eventRoomLeft      = "room_left"
	eventMessage       = "message"
	eventOnlineUsers   = "online_users"
	eventPong          = "pong"
	eventHeartbeat     = "heartbeat"
)

var (
	// ErrUnknownSession is returned for commands referencing a connection that
	// is not (or no longer) registered.
	ErrUnknownSession = errors.New("unknown connection")

	// ErrPermissionDenied is returned when the join predicate rejects a room.
	ErrPermissionDenied = errors.New("room join denied")

	// ErrNotRoomMember is returned when sending to a room the session has not joined.
	ErrNotRoomMember = errors.New("not a member of room")

	// ErrAuthRequired is returned for capability-restricted commands issued by
	// anonymous sessions.
	ErrAuthRequired = errors.New("authentication required")
)

// AuthVerifier resolves a token to a user identity. It is the external auth
// collaborator consumed by the gateway.
type AuthVerifier func(token string) (userID, role string, err error)

// Transport is the write side of one live client connection.
type Transport interface {
	Emit(event string, payload interface{}) error
	Disconnect()
}

// session is the per-connection state owned by the hub.
type session struct {
	id           string
	userID       string
	role         string
	rooms        map[string]struct{}
	lastActivity time.Time
	transport    Transport
	stop         chan struct{} // closed exactly once, when the session is removed
}

func (s *session) authenticated() bool { return s.userID != "" }

// PresenceEntry is the derived online view of one authenticated user.
type PresenceEntry struct {
	UserID       string    `json:"userId"`
	Role         string    `json:"role"`
	LastActivity time.Time `json:"lastActivity"`
}

// Hub owns the session registry, the room index and event routing for all
// live connections. All methods are safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]struct{} // room → set of connection IDs

	events *store.EventStore
	verify AuthVerifier

	rc        *pkgredis.Client
	logger    *zap.Logger
	sio       *socketio.Server
	heartbeat time.Duration
}

// RoomForUser returns the identity-scoped room of a user.
func RoomForUser(userID string) string { return roomPrefixUser + userID }

// RoomForRole returns the role-scoped room of a role.
func RoomForRole(role string) string { return roomPrefixRole + role }
