package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolobok/dbadmin/internal/models"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	schema := &models.TableSchema{
		Name: "products",
		Columns: []models.ColumnSpec{
			{Name: "id", Type: models.TypeInteger, Generated: true},
			{Name: "name", Type: models.TypeText},
		},
	}
	rows := []*models.RowSnapshot{
		{Values: map[string]any{"id": int64(1), "name": "bread"}},
		{Values: map[string]any{"id": int64(2), "name": "milk"}},
	}
	return New(schema, rows)
}

func TestNewStartsUnchanged(t *testing.T) {
	tr := newTestTracker(t)
	for _, r := range tr.Rows() {
		assert.Equal(t, models.RowUnchanged, r.State)
	}
	assert.Empty(t, tr.Modified())
	assert.Empty(t, tr.Added())
	assert.Empty(t, tr.Deleted())
}

func TestSetValuePromotesToModified(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.SetValue(0, "name", "rye bread"))

	row, err := tr.Row(0)
	require.NoError(t, err)
	assert.Equal(t, models.RowModified, row.State)
	assert.Equal(t, "rye bread", row.Get("name"))
	assert.Len(t, tr.Modified(), 1)

	// A second edit does not change the origin flag
	require.NoError(t, tr.SetValue(0, "name", "white bread"))
	assert.Equal(t, models.RowModified, row.State)
	assert.Len(t, tr.Modified(), 1)
}

func TestSetValueRejectsUnknownColumn(t *testing.T) {
	tr := newTestTracker(t)
	assert.ErrorContains(t, tr.SetValue(0, "nope", "x"), "no column")
}

func TestSetValueRejectsDeletedRow(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.MarkDeleted(1))
	assert.ErrorContains(t, tr.SetValue(1, "name", "x"), "marked for deletion")
}

func TestRowOutOfRange(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.Row(5)
	assert.ErrorContains(t, err, "out of range")
}

func TestAppendMarksAdded(t *testing.T) {
	tr := newTestTracker(t)
	tr.Append(&models.RowSnapshot{Values: map[string]any{"name": "eggs"}})

	assert.Len(t, tr.Rows(), 3)
	assert.Len(t, tr.Added(), 1)
}

func TestAcceptChangesCommitsWorkingState(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.SetValue(0, "name", "rye bread"))
	require.NoError(t, tr.MarkDeleted(1))
	tr.Append(&models.RowSnapshot{Values: map[string]any{"name": "eggs"}})

	tr.AcceptChanges()

	assert.Len(t, tr.Rows(), 2)
	for _, r := range tr.Rows() {
		assert.Equal(t, models.RowUnchanged, r.State)
	}
	assert.Empty(t, tr.Modified())
	assert.Empty(t, tr.Deleted())
}

func TestAcceptChangesIsIdempotent(t *testing.T) {
	tr := newTestTracker(t)
	tr.AcceptChanges()
	tr.AcceptChanges()
	assert.Len(t, tr.Rows(), 2)
}

func TestRemoveDropsRow(t *testing.T) {
	tr := newTestTracker(t)
	row, err := tr.Row(0)
	require.NoError(t, err)

	tr.Remove(row)

	assert.Len(t, tr.Rows(), 1)
	assert.Equal(t, "milk", tr.Rows()[0].Get("name"))
}
