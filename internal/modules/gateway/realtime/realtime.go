// Package realtime is the facade non-protocol producers use to emit targeted
// events without going through the client command protocol.
package realtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/quickcart/core/internal/modules/gateway/gateway"
	"github.com/quickcart/core/internal/modules/gateway/store"
	"go.uber.org/zap"
)

// Application event types carried over the gateway.
const (
	EventNotification    = "notification"
	EventOrderUpdate     = "order_update"
	EventProductUpdate   = "product_update"
	EventInventoryUpdate = "inventory_update"
	EventSystemAlert     = "system_alert"
)

// Service composes the event store, the notification store and the hub's
// broadcast router. The event is always stored before delivery is attempted,
// so a crash mid-delivery never loses the audit record.
type Service struct {
	hub           *gateway.Hub
	events        *store.EventStore
	notifications *store.NotificationStore
	logger        *zap.Logger
}

// New creates the realtime facade.
func New(hub *gateway.Hub, events *store.EventStore, notifications *store.NotificationStore, logger *zap.Logger) *Service {
	return &Service{
		hub:           hub,
		events:        events,
		notifications: notifications,
		logger:        logger,
	}
}

// SendEvent persists an event and delivers it to its target. A missing ID or
// creation time is filled in. The stored event is returned.
func (s *Service) SendEvent(ev store.Event) store.Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	s.events.Append(ev)

	payload := make(map[string]interface{})
	if m, ok := ev.Payload.(map[string]interface{}); ok {
		for k, v := range m {
			payload[k] = v
		}
	} else if ev.Payload != nil {
		payload["data"] = ev.Payload
	}
	payload["id"] = ev.ID
	s.hub.Deliver(ev.Target, ev.Type, payload)

	s.logger.Debug("event dispatched",
		zap.String("id", ev.ID),
		zap.String("type", ev.Type),
	)
	return ev
}

// SendNotification stores a user notification and delivers a notification
// event to the user's live sessions, if any. An offline user still gets the
// stored record; no delivery is attempted and no error is raised.
func (s *Service) SendNotification(userID, title, message, notifType string, data map[string]interface{}) store.Notification {
	n := store.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		Data:      data,
		CreatedAt: time.Now(),
	}
	s.notifications.Append(n)

	s.SendEvent(store.Event{
		ID:        n.ID,
		Type:      EventNotification,
		Target:    store.UserTarget(userID),
		CreatedAt: n.CreatedAt,
		Payload: map[string]interface{}{
			"userId":  userID,
			"title":   title,
			"message": message,
			"type":    notifType,
			"data":    data,
		},
	})
	return n
}

// SendSystemAlert broadcasts an alert to every connected client.
func (s *Service) SendSystemAlert(message, severity string, data map[string]interface{}) {
	s.SendEvent(store.Event{
		Type:   EventSystemAlert,
		Target: store.AllTarget(),
		Payload: map[string]interface{}{
			"message":  message,
			"severity": severity,
			"data":     data,
		},
	})
}

// BroadcastOrderUpdate notifies the order's room of a status change.
func (s *Service) BroadcastOrderUpdate(orderID, status string, data map[string]interface{}) {
	s.SendEvent(store.Event{
		Type:   EventOrderUpdate,
		Target: store.RoomTarget("order:" + orderID),
		Payload: map[string]interface{}{
			"orderId": orderID,
			"status":  status,
			"data":    data,
		},
	})
}

// BroadcastProductUpdate notifies all connected clients of a product change.
func (s *Service) BroadcastProductUpdate(productID, action string, data map[string]interface{}) {
	s.SendEvent(store.Event{
		Type:   EventProductUpdate,
		Target: store.AllTarget(),
		Payload: map[string]interface{}{
			"productId": productID,
			"action":    action,
			"data":      data,
		},
	})
}

// BroadcastInventoryUpdate notifies vendors and admins of an inventory change.
func (s *Service) BroadcastInventoryUpdate(inventoryID, action string, data map[string]interface{}) {
	payload := map[string]interface{}{
		"inventoryId": inventoryID,
		"action":      action,
		"data":        data,
	}
	s.SendEvent(store.Event{
		Type:    EventInventoryUpdate,
		Target:  store.RoleTarget("vendor"),
		Payload: payload,
	})
	s.SendEvent(store.Event{
		Type:    EventInventoryUpdate,
		Target:  store.RoleTarget(gateway.RoleAdmin),
		Payload: payload,
	})
}
