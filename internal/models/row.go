package models

// RowState is the per-row origin flag. SaveChanges uses it as the sole signal
// for which writes to issue; a value diff against the baseline is never
// consulted.
type RowState int

const (
	RowUnchanged RowState = iota
	RowAdded
	RowModified
	RowDeleted
)

func (s RowState) String() string {
	switch s {
	case RowUnchanged:
		return "unchanged"
	case RowAdded:
		return "added"
	case RowModified:
		return "modified"
	case RowDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RowSnapshot is one loaded row: column name → value (nil means NULL).
// Iteration order comes from the owning TableSchema, not from the map.
type RowSnapshot struct {
	Values map[string]any
	State  RowState
}

// NewRowSnapshot creates an empty row in the given state.
func NewRowSnapshot(state RowState) *RowSnapshot {
	return &RowSnapshot{Values: make(map[string]any), State: state}
}

// Get returns the value for a column; nil for NULL or unknown columns.
func (r *RowSnapshot) Get(column string) any {
	return r.Values[column]
}

// Set stores a value and promotes an Unchanged row to Modified. Added and
// Deleted rows keep their state: the origin flag records how the row entered
// the current edit session, not the latest touch.
func (r *RowSnapshot) Set(column string, value any) {
	r.Values[column] = value
	if r.State == RowUnchanged {
		r.State = RowModified
	}
}

// Clone returns a deep copy used for change-tracking baselines.
func (r *RowSnapshot) Clone() *RowSnapshot {
	c := &RowSnapshot{Values: make(map[string]any, len(r.Values)), State: r.State}
	for k, v := range r.Values {
		c.Values[k] = v
	}
	return c
}
