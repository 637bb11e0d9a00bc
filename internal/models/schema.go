package models

import "fmt"

// ColumnType is the semantic type of a column as discovered from the store.
// Driver-specific type names are normalized into this small set so the rest
// of the system never branches on vendor type strings.
type ColumnType string

const (
	TypeText     ColumnType = "text"
	TypeInteger  ColumnType = "integer"
	TypeDecimal  ColumnType = "decimal"
	TypeDateTime ColumnType = "datetime"
	TypeBoolean  ColumnType = "boolean"
	TypeBinary   ColumnType = "binary"
)

// ColumnSpec describes a single column. Immutable once loaded for a session;
// a schema change requires a full table reload.
type ColumnSpec struct {
	Name      string
	Type      ColumnType
	Nullable  bool
	Generated bool // auto-generated key (identity/serial)
}

// TableSchema is the runtime-discovered shape of one table. Columns keep the
// declared order from the store; all generated SQL follows that order.
type TableSchema struct {
	Name    string
	Columns []ColumnSpec
}

// IdentityColumn returns the column used to target a row for update/delete:
// the single auto-generated column if one is marked, otherwise the first
// declared column.
func (s *TableSchema) IdentityColumn() (ColumnSpec, error) {
	if len(s.Columns) == 0 {
		return ColumnSpec{}, fmt.Errorf("table %s has no columns", s.Name)
	}
	for _, c := range s.Columns {
		if c.Generated {
			return c, nil
		}
	}
	return s.Columns[0], nil
}

// Column looks a column up by name.
func (s *TableSchema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Validate enforces the single-generated-key invariant.
func (s *TableSchema) Validate() error {
	generated := 0
	for _, c := range s.Columns {
		if c.Generated {
			generated++
		}
	}
	if generated > 1 {
		return fmt.Errorf("table %s declares %d auto-generated key columns, at most one is allowed", s.Name, generated)
	}
	return nil
}
