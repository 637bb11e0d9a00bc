// Package processor bridges the messaging transport and the approval router:
// it takes raw inbound callback events off the broker and feeds the
// identifiers to the router. Transport concerns (ack/nack, malformed bodies)
// stay in the consumer; correlation stays in the router.
package processor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kolobok/dbadmin/internal/approval"
)

// CallbackEvent is the JSON body delivered for every pressed action button.
type CallbackEvent struct {
	CallbackID string    `json:"callback_id"`
	AnsweredAt time.Time `json:"answered_at"`
}

// CallbackHandler validates and dispatches inbound callbacks.
type CallbackHandler struct {
	router *approval.Router
	logger *slog.Logger
}

func NewCallbackHandler(router *approval.Router, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{router: router, logger: logger}
}

// Handle routes one callback event. Unknown action prefixes are dropped
// before they reach the router; everything else is resolved there. Dispatch
// never fails: stale or duplicate callbacks are no-ops by contract.
func (h *CallbackHandler) Handle(ctx context.Context, event CallbackEvent) {
	id := strings.TrimSpace(event.CallbackID)
	if id == "" {
		h.logger.Debug("Empty callback event dropped")
		return
	}

	if !strings.HasPrefix(id, "yes_") && !strings.HasPrefix(id, "no_") {
		h.logger.Debug("Callback with unknown action dropped", "callback_id", id)
		return
	}

	h.router.Dispatch(id)
}
