// Package tracker wraps a loaded table snapshot and tracks which rows were
// added, modified, or marked deleted since the last accepted state. The
// origin flag on each row is the single source of truth for pending writes.
package tracker

import (
	"fmt"

	"github.com/kolobok/dbadmin/internal/models"
)

// Tracker owns the in-memory working copy of one table.
type Tracker struct {
	schema   *models.TableSchema
	rows     []*models.RowSnapshot
	baseline []*models.RowSnapshot
}

// New builds a tracker over freshly loaded rows. All rows start Unchanged and
// a deep-copied baseline is retained for display/diff purposes.
func New(schema *models.TableSchema, rows []*models.RowSnapshot) *Tracker {
	t := &Tracker{schema: schema, rows: rows}
	t.rebaseline()
	return t
}

func (t *Tracker) rebaseline() {
	t.baseline = make([]*models.RowSnapshot, len(t.rows))
	for i, r := range t.rows {
		t.baseline[i] = r.Clone()
	}
}

func (t *Tracker) Schema() *models.TableSchema {
	return t.schema
}

// Rows returns the working rows, including ones marked Deleted.
func (t *Tracker) Rows() []*models.RowSnapshot {
	return t.rows
}

// Row returns the working row at index.
func (t *Tracker) Row(index int) (*models.RowSnapshot, error) {
	if index < 0 || index >= len(t.rows) {
		return nil, fmt.Errorf("row index %d out of range (table %s has %d rows)", index, t.schema.Name, len(t.rows))
	}
	return t.rows[index], nil
}

// Append registers a row created by the add-flow.
func (t *Tracker) Append(row *models.RowSnapshot) {
	row.State = models.RowAdded
	t.rows = append(t.rows, row)
}

// SetValue edits one field of a working row, promoting it to Modified.
func (t *Tracker) SetValue(index int, column string, value any) error {
	row, err := t.Row(index)
	if err != nil {
		return err
	}
	if _, ok := t.schema.Column(column); !ok {
		return fmt.Errorf("table %s has no column %s", t.schema.Name, column)
	}
	if row.State == models.RowDeleted {
		return fmt.Errorf("row %d is marked for deletion", index)
	}
	row.Set(column, value)
	return nil
}

// MarkDeleted flags a row for removal.
func (t *Tracker) MarkDeleted(index int) error {
	row, err := t.Row(index)
	if err != nil {
		return err
	}
	row.State = models.RowDeleted
	return nil
}

// byState collects working rows carrying the given origin flag.
func (t *Tracker) byState(state models.RowState) []*models.RowSnapshot {
	var out []*models.RowSnapshot
	for _, r := range t.rows {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out
}

func (t *Tracker) Added() []*models.RowSnapshot    { return t.byState(models.RowAdded) }
func (t *Tracker) Modified() []*models.RowSnapshot { return t.byState(models.RowModified) }
func (t *Tracker) Deleted() []*models.RowSnapshot  { return t.byState(models.RowDeleted) }

// Remove drops a row from the working set entirely (after a successful
// store-side delete).
func (t *Tracker) Remove(row *models.RowSnapshot) {
	for i, r := range t.rows {
		if r == row {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return
		}
	}
}

// AcceptChanges commits the working state as the new baseline: rows marked
// Deleted are dropped, everything else reverts to Unchanged.
func (t *Tracker) AcceptChanges() {
	kept := t.rows[:0]
	for _, r := range t.rows {
		if r.State == models.RowDeleted {
			continue
		}
		r.State = models.RowUnchanged
		kept = append(kept, r)
	}
	t.rows = kept
	t.rebaseline()
}
