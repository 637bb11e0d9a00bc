// Package service holds the two orchestrators of the console: the login gate
// and the generic CRUD engine. Both are transport-agnostic; the CLI drives
// them and the stores/broker sit below them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kolobok/dbadmin/internal/db"
	"github.com/kolobok/dbadmin/internal/mapper"
	"github.com/kolobok/dbadmin/internal/models"
	"github.com/kolobok/dbadmin/internal/tracker"
	"github.com/kolobok/dbadmin/pkg/metrics"
)

// Engine runs schema-driven CRUD over whatever tables the store discovers.
// It holds one tracker per opened table and serializes write-backs per table
// so a second save cannot start while one is in flight.
type Engine struct {
	store   db.Store
	builder *mapper.StatementBuilder
	auditor AuditSink
	logger  *slog.Logger

	mu       sync.Mutex
	trackers map[string]*tracker.Tracker
	inFlight map[string]bool
}

func NewEngine(store db.Store, auditor AuditSink, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		builder:  mapper.NewStatementBuilder(store.Dialect()),
		auditor:  auditor,
		logger:   logger,
		trackers: make(map[string]*tracker.Tracker),
		inFlight: make(map[string]bool),
	}
}

// Tables lists the user tables available in the store.
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	names, err := e.store.ListTables(ctx)
	if err != nil {
		e.auditor.Emit(models.EventError, "", "table discovery failed: "+err.Error())
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return names, nil
}

// Load returns the tracker for a table, fetching it on first access. Use
// Refresh to force a reload.
func (e *Engine) Load(ctx context.Context, table string) (*tracker.Tracker, error) {
	e.mu.Lock()
	if t, ok := e.trackers[table]; ok {
		e.mu.Unlock()
		return t, nil
	}
	e.mu.Unlock()
	return e.Refresh(ctx, table)
}

// Refresh reloads a table from the store, discarding any unaccepted local
// edits for that table.
func (e *Engine) Refresh(ctx context.Context, table string) (*tracker.Tracker, error) {
	schema, rows, err := e.store.LoadTable(ctx, table)
	if err != nil {
		e.auditor.Emit(models.EventError, table, "table load failed: "+err.Error())
		return nil, fmt.Errorf("loading table %s: %w", table, err)
	}

	t := tracker.New(schema, rows)
	e.mu.Lock()
	e.trackers[table] = t
	e.mu.Unlock()

	e.logger.Info("Table loaded", "table", table, "rows", len(rows))
	return t, nil
}

// Tracker returns the already-loaded tracker for a table, if any.
func (e *Engine) Tracker(table string) (*tracker.Tracker, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.trackers[table]
	return t, ok
}

// NextKeyPreview returns a non-authoritative MAX+1 hint for the identity
// column, for display in the add dialog.
func (e *Engine) NextKeyPreview(ctx context.Context, table string) (int64, error) {
	t, err := e.Load(ctx, table)
	if err != nil {
		return 0, err
	}
	identity, err := t.Schema().IdentityColumn()
	if err != nil {
		return 0, err
	}
	return e.store.NextKeyPreview(ctx, table, identity.Name)
}

// Add validates, inserts, and registers one new row. Every required column
// left blank is reported in a single *models.ValidationError; nothing is
// written unless validation passes. Values are given as raw strings and
// converted per the discovered column type.
func (e *Engine) Add(ctx context.Context, table string, values map[string]string) (*models.RowSnapshot, error) {
	t, err := e.Load(ctx, table)
	if err != nil {
		return nil, err
	}
	schema := t.Schema()

	var missing []string
	for _, col := range schema.Columns {
		if col.Generated || col.Nullable {
			continue
		}
		if strings.TrimSpace(values[col.Name]) == "" {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) > 0 {
		verr := &models.ValidationError{Table: table, MissingColumns: missing}
		e.auditor.Emit(models.EventError, table, verr.Error())
		metrics.CrudOperations.WithLabelValues("add", table, "invalid").Inc()
		return nil, verr
	}

	row := &models.RowSnapshot{Values: make(map[string]any, len(schema.Columns))}
	for _, col := range schema.Columns {
		if col.Generated {
			continue
		}
		v, err := convertValue(col, values[col.Name])
		if err != nil {
			e.auditor.Emit(models.EventError, table, "add rejected: "+err.Error())
			metrics.CrudOperations.WithLabelValues("add", table, "invalid").Inc()
			return nil, err
		}
		row.Values[col.Name] = v
	}

	stmt, err := e.builder.BuildInsert(schema, row)
	if err != nil {
		return nil, err
	}

	keyColumn := ""
	if identity, err := schema.IdentityColumn(); err == nil && identity.Generated {
		keyColumn = identity.Name
	}

	if err := e.withWriteGuard(table, func() error {
		start := time.Now()
		key, err := e.store.Insert(ctx, stmt, keyColumn)
		metrics.CrudDuration.WithLabelValues("add").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		if keyColumn != "" && key != nil {
			row.Values[keyColumn] = key
		}
		return nil
	}); err != nil {
		e.auditor.Emit(models.EventError, table, "insert failed: "+err.Error())
		metrics.CrudOperations.WithLabelValues("add", table, "error").Inc()
		return nil, fmt.Errorf("inserting into %s: %w", table, err)
	}

	t.Append(row)
	// The store already accepted this row; it carries no pending write
	row.State = models.RowUnchanged

	e.auditor.Emit(models.EventAdd, table, describeRow(schema, row))
	metrics.CrudOperations.WithLabelValues("add", table, "ok").Inc()
	return row, nil
}

// Delete removes the row at index from the store and the working set. A
// delete that matches no store row returns models.ErrNotFound and leaves the
// working set untouched.
func (e *Engine) Delete(ctx context.Context, table string, index int) error {
	t, ok := e.Tracker(table)
	if !ok {
		return fmt.Errorf("table %s is not loaded", table)
	}
	row, err := t.Row(index)
	if err != nil {
		return err
	}

	stmt, err := e.builder.BuildDelete(t.Schema(), row)
	if err != nil {
		return err
	}

	if err := e.withWriteGuard(table, func() error {
		start := time.Now()
		affected, err := e.store.Exec(ctx, stmt)
		metrics.CrudDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: no row matched the identity value", models.ErrNotFound)
		}
		return nil
	}); err != nil {
		e.auditor.Emit(models.EventError, table, "delete failed: "+err.Error())
		metrics.CrudOperations.WithLabelValues("delete", table, "error").Inc()
		return err
	}

	t.Remove(row)
	e.auditor.Emit(models.EventDelete, table, describeRow(t.Schema(), row))
	metrics.CrudOperations.WithLabelValues("delete", table, "ok").Inc()
	return nil
}

// SetValue stages an edit on a working row. Nothing hits the store until
// SaveChanges.
func (e *Engine) SetValue(table string, index int, column, raw string) error {
	t, ok := e.Tracker(table)
	if !ok {
		return fmt.Errorf("table %s is not loaded", table)
	}
	col, ok := t.Schema().Column(column)
	if !ok {
		return fmt.Errorf("table %s has no column %s", table, column)
	}
	v, err := convertValue(col, raw)
	if err != nil {
		return err
	}
	return t.SetValue(index, column, v)
}

// SaveChanges writes back every row whose origin flag is Modified, one UPDATE
// per row. The origin flag alone drives the save; values are not diffed. On
// full success the tracker accepts the new baseline and the count of saved
// rows is returned. With nothing pending it returns 0 and no error. A save
// already in flight for the table is reported as 0 without touching the store.
func (e *Engine) SaveChanges(ctx context.Context, table string) (int, error) {
	t, ok := e.Tracker(table)
	if !ok {
		return 0, fmt.Errorf("table %s is not loaded", table)
	}

	modified := t.Modified()
	if len(modified) == 0 {
		return 0, nil
	}

	saved := 0
	err := e.withWriteGuard(table, func() error {
		for _, row := range modified {
			stmt, err := e.builder.BuildUpdate(t.Schema(), row)
			if err != nil {
				return err
			}
			start := time.Now()
			_, err = e.store.Exec(ctx, stmt)
			metrics.CrudDuration.WithLabelValues("update").Observe(time.Since(start).Seconds())
			if err != nil {
				return err
			}
			saved++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errWriteInFlight) {
			e.logger.Warn("Save ignored, another write is in flight", "table", table)
			return 0, nil
		}
		e.auditor.Emit(models.EventError, table, "save failed: "+err.Error())
		metrics.CrudOperations.WithLabelValues("update", table, "error").Inc()
		return saved, fmt.Errorf("saving changes to %s: %w", table, err)
	}

	t.AcceptChanges()
	e.auditor.Emit(models.EventUpdate, table, fmt.Sprintf("rows updated: %d", saved))
	metrics.CrudOperations.WithLabelValues("update", table, "ok").Inc()
	return saved, nil
}

var errWriteInFlight = errors.New("write already in flight")

// withWriteGuard runs fn with the per-table write latch held. A second write
// arriving while one runs gets errWriteInFlight instead of queueing.
func (e *Engine) withWriteGuard(table string, fn func() error) error {
	e.mu.Lock()
	if e.inFlight[table] {
		e.mu.Unlock()
		return errWriteInFlight
	}
	e.inFlight[table] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, table)
		e.mu.Unlock()
	}()
	return fn()
}

// convertValue parses a raw string into the Go value for one column. Blank
// input on a nullable column binds NULL.
func convertValue(col models.ColumnSpec, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	switch col.Type {
	case models.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not an integer", col.Name, raw)
		}
		return n, nil
	case models.TypeDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a number", col.Name, raw)
		}
		return f, nil
	case models.TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a boolean", col.Name, raw)
		}
		return b, nil
	case models.TypeDateTime:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("column %s: %q is not a recognized timestamp", col.Name, raw)
	case models.TypeBinary:
		return []byte(raw), nil
	default:
		return raw, nil
	}
}

// describeRow renders a short identity-first description for audit details.
func describeRow(schema *models.TableSchema, row *models.RowSnapshot) string {
	if identity, err := schema.IdentityColumn(); err == nil {
		if v := row.Get(identity.Name); v != nil {
			return fmt.Sprintf("%s = %v", identity.Name, v)
		}
	}
	return fmt.Sprintf("columns: %d", len(row.Values))
}
