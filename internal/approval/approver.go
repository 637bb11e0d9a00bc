package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kolobok/dbadmin/internal/models"
	"github.com/kolobok/dbadmin/pkg/metrics"
)

// Result is the outcome of one approval wait.
type Result int

const (
	ResultApproved Result = iota
	ResultDenied
	ResultExpired
)

func (r Result) String() string {
	switch r {
	case ResultApproved:
		return "approved"
	case ResultDenied:
		return "denied"
	case ResultExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Request is the outbound approval message. ApproveID and DenyID are the two
// mutually exclusive callback identifiers; the <action>_<token> format is
// load-bearing for correlation and must not change.
type Request struct {
	Token       string    `json:"token"`
	ApproveID   string    `json:"approve_id"`
	DenyID      string    `json:"deny_id"`
	Actor       string    `json:"actor"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Publisher is the outbound side of the messaging transport.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RoutingKeyApproval carries approval requests to the remote operator.
const RoutingKeyApproval = "dbadmin.approval.request"

// Approver issues approval requests and waits for the callback router to
// resolve them. The wait polls the session's resolution flag at a short
// fixed interval, so the inbound callback never touches the waiting caller
// directly.
type Approver struct {
	slot      *Slot
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration
	poll      time.Duration
	actor     string
}

func NewApprover(slot *Slot, publisher Publisher, actor string, timeout, poll time.Duration, logger *slog.Logger) *Approver {
	if poll <= 0 || poll > time.Second {
		poll = 500 * time.Millisecond
	}
	return &Approver{
		slot:      slot,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
		poll:      poll,
		actor:     actor,
	}
}

// RequestApproval dispatches one approval request and blocks until it is
// approved, denied, or the timeout elapses. A second call while a request is
// outstanding fails fast with ErrApprovalPending. Context cancellation
// invalidates the token and returns promptly.
func (a *Approver) RequestApproval(ctx context.Context) (Result, error) {
	sess := NewSession(a.timeout)
	if !a.slot.Put(sess) {
		return ResultDenied, models.ErrApprovalPending
	}

	req := Request{
		Token:       sess.Token(),
		ApproveID:   "yes_" + sess.Token(),
		DenyID:      "no_" + sess.Token(),
		Actor:       a.actor,
		RequestedAt: sess.CreatedAt(),
		ExpiresAt:   sess.Deadline(),
	}

	if err := a.publisher.Publish(ctx, RoutingKeyApproval, req); err != nil {
		sess.Expire()
		a.slot.Clear(sess)
		return ResultDenied, fmt.Errorf("%w: approval request dispatch failed: %v", models.ErrConnectivity, err)
	}

	a.logger.Info("Approval request dispatched", "token", sess.Token(), "expires_at", sess.Deadline())

	defer a.slot.Clear(sess)

	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sess.Expire()
			a.logger.Warn("Approval wait cancelled", "token", sess.Token())
			return ResultExpired, ctx.Err()
		case <-ticker.C:
			switch sess.State() {
			case StateApproved:
				metrics.ApprovalOutcomes.WithLabelValues("approved").Inc()
				return ResultApproved, nil
			case StateDenied:
				metrics.ApprovalOutcomes.WithLabelValues("denied").Inc()
				return ResultDenied, nil
			}

			if time.Now().After(sess.Deadline()) {
				// The flag may have flipped between the state read and now
				if sess.Expire() {
					metrics.ApprovalOutcomes.WithLabelValues("expired").Inc()
					a.logger.Warn("Approval wait expired", "token", sess.Token())
					return ResultExpired, nil
				}
			}
		}
	}
}
