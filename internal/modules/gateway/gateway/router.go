package gateway

import (
	"github.com/quickcart/core/internal/modules/gateway/store"
	"go.uber.org/zap"
)

// Deliver resolves a logical target to the live connections behind it and
// fans the event out, one delivery task per recipient. A recipient whose
// transport is no longer writable is logged and skipped; failures never
// propagate to the caller or to other recipients. The payload is stamped with
// the send-time timestamp, not the event creation time.
func (h *Hub) Deliver(target store.Target, event string, payload map[string]interface{}) {
	recipients := h.resolve(target)
	if len(recipients) == 0 {
		return
	}

	stamped := stampPayload(payload)
	for _, r := range recipients {
		r := r
		go func() {
			if err := r.transport.Emit(event, stamped); err != nil {
				h.logger.Debug("delivery failed",
					zap.String("connId", r.id),
					zap.String("event", event),
					zap.Error(err),
				)
			}
		}()
	}
}

func (h *Hub) resolve(target store.Target) []recipient {
	switch target.Kind {
	case store.TargetUser:
		return h.roomSnapshot(RoomForUser(target.Value))
	case store.TargetRole:
		return h.roomSnapshot(RoomForRole(target.Value))
	case store.TargetRoom:
		return h.roomSnapshot(target.Value)
	case store.TargetAll:
		return h.allSnapshot()
	default:
		h.logger.Error("unknown target kind", zap.Uint8("kind", uint8(target.Kind)))
		return nil
	}
}
