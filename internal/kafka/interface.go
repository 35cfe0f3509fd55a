package kafka

import (
	"context"

	"github.com/devboard/devboard/internal/domain"
)

// MessageEvent is the archive record emitted for every persisted chat
// message. Downstream consumers (search indexing, analytics) read these;
// the realtime path never depends on them.
type MessageEvent struct {
	Type      string `json:"type"` // "message_created"
	Room      string `json:"room"`
	MessageID uint   `json:"message_id"`
	ProjectID uint   `json:"project_id"`
	ChannelID *uint  `json:"channel_id,omitempty"`
	UserID    uint   `json:"user_id"`
	Content   string `json:"content,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Event types
const (
	EventMessageCreated = "message_created"
)

// MessageEventProducer emits archive events for persisted messages.
type MessageEventProducer interface {
	ProduceMessageCreated(ctx context.Context, msg *domain.Message) error
	Close() error
}
