package dispatcher

import (
	"context"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/event"
)

// Handler processes run lifecycle events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
