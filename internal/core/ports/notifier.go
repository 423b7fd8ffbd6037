package ports

import (
	"context"
	"time"

	"orderflow/internal/core/domain/model/kernel"
)

// Message is a text sent to a customer through the messaging provider.
// Key is stable across retries so the provider side can drop duplicates.
type Message struct {
	Key       string
	Recipient string
	Text      string
}

// Push is a notification delivered to the devices behind a subscription.
type Push struct {
	Key          string
	Subscription string
	Title        string
	Body         string
	OrderID      kernel.UUID
}

// Notice is an in-app record shown on staff dashboards.
type Notice struct {
	Key         string
	Audience    string
	OrderID     kernel.UUID
	OrderNumber int64
	Text        string
	CreatedAt   time.Time
}

// MessageSender sends customer messages (SMS, chat apps).
type MessageSender interface {
	SendMessage(ctx context.Context, msg Message) error
}

// PushSender sends push notifications.
type PushSender interface {
	SendPush(ctx context.Context, push Push) error
}

// NoticeBoard stores in-app notices for staff.
type NoticeBoard interface {
	Post(ctx context.Context, notice Notice) error
	Recent(ctx context.Context, audience string, limit int) ([]Notice, error)
}
