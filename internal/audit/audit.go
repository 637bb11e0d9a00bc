// Package audit dispatches operator events to the remote notification
// channel and to a local append-only file. Dispatch is fire-and-forget with
// respect to the triggering operation: a slow or dead channel never blocks a
// data write. Shutdown performs a bounded synchronous drain so the final
// events are not lost to process exit.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kolobok/dbadmin/internal/models"
	"github.com/kolobok/dbadmin/pkg/metrics"
)

// timestampFormat is the human-readable prefix used in the local log file.
const timestampFormat = "02.01.2006 15:04:05"

const queueCapacity = 128

// Publisher is the outbound side of the messaging transport.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	IsHealthy() bool
}

// RoutingKeyAudit mirrors broker.RoutingKeyAudit; declared here so the
// package depends only on the Publisher contract.
const RoutingKeyAudit = "dbadmin.audit"

// Auditor queues events and ships them from a single worker goroutine.
type Auditor struct {
	publisher Publisher
	logger    *slog.Logger
	actor     string
	filePath  string

	queue  chan models.AuditEvent
	done   chan struct{}
	closed atomic.Bool
	mu     sync.Mutex // guards queue close against concurrent Emit
}

// New starts the dispatch worker. filePath is the append-only local record;
// an empty path disables the file channel.
func New(publisher Publisher, actor, filePath string, logger *slog.Logger) *Auditor {
	a := &Auditor{
		publisher: publisher,
		logger:    logger,
		actor:     actor,
		filePath:  filePath,
		queue:     make(chan models.AuditEvent, queueCapacity),
		done:      make(chan struct{}),
	}
	go a.run()
	return a
}

// Emit enqueues one event without blocking the caller. Events are dropped
// (and counted) when the queue is full or the auditor is already draining.
func (a *Auditor) Emit(kind models.EventKind, table, detail string) {
	ev := models.AuditEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Table:     table,
		Actor:     a.actor,
		Timestamp: time.Now(),
		Detail:    detail,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed.Load() {
		metrics.AuditQueueDropped.Inc()
		return
	}

	select {
	case a.queue <- ev:
	default:
		metrics.AuditQueueDropped.Inc()
		a.logger.Warn("Audit queue full, event dropped", "kind", ev.Kind, "table", ev.Table)
	}
}

// EmitSync writes and publishes one event inline within the given budget.
// Used on exit paths where the worker may no longer get scheduled.
func (a *Auditor) EmitSync(kind models.EventKind, table, detail string, budget time.Duration) {
	ev := models.AuditEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Table:     table,
		Actor:     a.actor,
		Timestamp: time.Now(),
		Detail:    detail,
	}

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	a.dispatch(ctx, ev)
}

func (a *Auditor) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a.dispatch(ctx, ev)
		cancel()
	}
}

// dispatch writes the file record first (cheap, local), then the broker
// message. The two channels are independent best-effort records.
func (a *Auditor) dispatch(ctx context.Context, ev models.AuditEvent) {
	if a.filePath != "" {
		if err := a.appendToFile(ev); err != nil {
			metrics.AuditEvents.WithLabelValues("file", "error").Inc()
			a.logger.Error("Failed to append audit record to file", "error", err)
		} else {
			metrics.AuditEvents.WithLabelValues("file", "ok").Inc()
		}
	}

	if a.publisher == nil || !a.publisher.IsHealthy() {
		metrics.AuditEvents.WithLabelValues("broker", "skipped").Inc()
		return
	}

	if err := a.publisher.Publish(ctx, RoutingKeyAudit, ev); err != nil {
		metrics.AuditEvents.WithLabelValues("broker", "error").Inc()
		a.logger.Error("Failed to publish audit event", "kind", ev.Kind, "error", err)
		return
	}
	metrics.AuditEvents.WithLabelValues("broker", "ok").Inc()
}

func (a *Auditor) appendToFile(ev models.AuditEvent) error {
	f, err := os.OpenFile(a.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s", ev.Timestamp.Format(timestampFormat), formatLine(ev))
	_, err = f.WriteString(line + "\n")
	return err
}

func formatLine(ev models.AuditEvent) string {
	s := string(ev.Kind)
	if ev.Table != "" {
		s += " - table: " + ev.Table
	}
	s += ", actor: " + ev.Actor
	if ev.Detail != "" {
		s += ", " + ev.Detail
	}
	return s
}

// Flush stops intake and waits for the worker to drain the queue, up to
// timeout. Call once, on shutdown.
func (a *Auditor) Flush(timeout time.Duration) error {
	a.mu.Lock()
	if a.closed.Swap(true) {
		a.mu.Unlock()
		return nil
	}
	close(a.queue)
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit drain timed out after %s", timeout)
	}
}
