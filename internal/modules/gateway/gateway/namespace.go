package gateway

import (
	"encoding/json"
	"strings"

	socketio "github.com/zishang520/socket.io/v2/socket"
)

// socketTransport adapts a socket.io socket to the Transport interface.
type socketTransport struct {
	client *socketio.Socket
}

func (t *socketTransport) Emit(event string, payload interface{}) error {
	return t.client.Emit(event, payload)
}

func (t *socketTransport) Disconnect() {
	t.client.Disconnect(true)
}

func (h *Hub) registerNamespace() {
	ns := h.sio.Of(namespaceRealtime, nil)
	_ = ns.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}

		connID := h.Connect(&socketTransport{client: client})

		// A token in the handshake authenticates immediately, same path as
		// the explicit command.
		if token := normalizeToken(extractToken(client)); token != "" {
			_ = h.Authenticate(connID, token)
		}

		_ = client.On(commandAuthenticate, func(eventArgs ...any) {
			payload := payloadOf(eventArgs)
			token := normalizeToken(strFromAny(payload["token"]))
			if token == "" {
				h.emitError(connID, "authenticate requires a token")
				return
			}
			_ = h.Authenticate(connID, token)
		})

		_ = client.On(commandJoin, func(eventArgs ...any) {
			payload := payloadOf(eventArgs)
			room := strFromAny(payload["room"])
			if room == "" {
				h.emitError(connID, "join requires a room")
				return
			}
			_ = h.Join(connID, room)
		})

		_ = client.On(commandLeave, func(eventArgs ...any) {
			payload := payloadOf(eventArgs)
			room := strFromAny(payload["room"])
			if room == "" {
				h.emitError(connID, "leave requires a room")
				return
			}
			_ = h.Leave(connID, room)
		})

		_ = client.On(commandSend, func(eventArgs ...any) {
			payload := payloadOf(eventArgs)
			room := strFromAny(payload["room"])
			message := strFromAny(payload["message"])
			if room == "" || message == "" {
				h.emitError(connID, "send requires a room and a message")
				return
			}
			_ = h.Send(connID, room, message, strFromAny(payload["type"]))
		})

		_ = client.On(commandPing, func(_ ...any) {
			_ = h.Ping(connID)
		})

		_ = client.On(commandGetOnlineUsers, func(_ ...any) {
			_ = h.SendOnlineUsers(connID)
		})

		_ = client.On("disconnect", func(_ ...any) {
			h.Disconnect(connID)
		})
	})
}

func extractToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if token := firstValueFromMultiMap(handshake.Query, "token"); token != "" {
		return token
	}
	if token := firstValueFromMultiMap(handshake.Headers, "authorization"); token != "" {
		return token
	}
	return ""
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	if len(values) == 0 {
		return ""
	}
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		v := strings.TrimSpace(list[0])
		if v != "" {
			return v
		}
	}
	return ""
}

func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

// payloadOf coerces the first socket.io event argument into a string map.
// Clients send plain objects, JSON strings or nothing at all.
func payloadOf(args []any) map[string]interface{} {
	if len(args) == 0 || args[0] == nil {
		return map[string]interface{}{}
	}
	return mapFromAny(args[0])
}

func mapFromAny(v interface{}) map[string]interface{} {
	switch typed := v.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return typed
	case string:
		out := map[string]interface{}{}
		if err := json.Unmarshal([]byte(typed), &out); err != nil {
			return map[string]interface{}{}
		}
		return out
	case []byte:
		out := map[string]interface{}{}
		if err := json.Unmarshal(typed, &out); err != nil {
			return map[string]interface{}{}
		}
		return out
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return map[string]interface{}{}
		}
		out := map[string]interface{}{}
		if err := json.Unmarshal(data, &out); err != nil {
			return map[string]interface{}{}
		}
		return out
	}
}

func strFromAny(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	default:
		return ""
	}
}
