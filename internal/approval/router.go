package approval

import (
	"log/slog"
	"strings"
)

// Router resolves inbound callback identifiers against the single
// outstanding session. Non-matching or stale callbacks are silently ignored;
// the second callback for an already-resolved token is a no-op.
type Router struct {
	slot   *Slot
	logger *slog.Logger
}

func NewRouter(slot *Slot, logger *slog.Logger) *Router {
	return &Router{slot: slot, logger: logger}
}

// Dispatch is invoked by the messaging transport for every inbound callback
// event. The identifier format is <action>_<token> with action yes or no.
func (r *Router) Dispatch(callbackID string) {
	sess := r.slot.Current()
	if sess == nil {
		r.logger.Debug("Callback with no outstanding request ignored", "callback_id", callbackID)
		return
	}

	var approved bool
	switch {
	case callbackID == "yes_"+sess.Token():
		approved = true
	case callbackID == "no_"+sess.Token():
		approved = false
	default:
		action, _, _ := strings.Cut(callbackID, "_")
		r.logger.Debug("Callback does not match outstanding token, ignored",
			"action", action, "token", sess.Token())
		return
	}

	if !sess.Resolve(approved) {
		r.logger.Debug("Callback for already-resolved token ignored", "token", sess.Token())
		return
	}

	r.logger.Info("Approval request resolved", "token", sess.Token(), "state", sess.State())
}
