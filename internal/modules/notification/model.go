// README: Notification intents and the gateways that deliver them.
package notification

import (
	"context"
	"errors"
	"time"

	"haulr/internal/types"
)

type Category string

const (
	CategoryNewDelivery Category = "new_delivery"
	CategoryAccepted    Category = "delivery_accepted"
	CategoryPickedUp    Category = "delivery_picked_up"
	CategoryInTransit   Category = "delivery_in_transit"
	CategoryDelivered   Category = "delivery_delivered"
	CategoryPayment     Category = "payment"
	CategoryCancelled   Category = "delivery_cancelled"
)

// Intent is a request to tell one user something. Delivery is best effort.
type Intent struct {
	UserID   types.ID          `json:"user_id"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Category Category          `json:"category"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Notification is an intent persisted to a user's in-app inbox.
type Notification struct {
	ID types.ID `json:"id"`
	Intent
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Gateway delivers a single intent over one channel (inbox, push).
type Gateway interface {
	Send(ctx context.Context, in Intent) error
}

var (
	ErrQueueFull     = errors.New("notification queue full")
	ErrNoDeviceToken = errors.New("no device token registered")
	ErrNotFound      = errors.New("notification not found")
)
