package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityColumnPrefersGenerated(t *testing.T) {
	schema := &TableSchema{
		Name: "orders",
		Columns: []ColumnSpec{
			{Name: "code", Type: TypeText},
			{Name: "id", Type: TypeInteger, Generated: true},
		},
	}

	identity, err := schema.IdentityColumn()
	require.NoError(t, err)
	assert.Equal(t, "id", identity.Name)
}

func TestIdentityColumnFallsBackToFirstDeclared(t *testing.T) {
	schema := &TableSchema{
		Name: "settings",
		Columns: []ColumnSpec{
			{Name: "key", Type: TypeText},
			{Name: "value", Type: TypeText},
		},
	}

	identity, err := schema.IdentityColumn()
	require.NoError(t, err)
	assert.Equal(t, "key", identity.Name)
}

func TestIdentityColumnEmptySchema(t *testing.T) {
	schema := &TableSchema{Name: "empty"}
	_, err := schema.IdentityColumn()
	assert.Error(t, err)
}

func TestValidateRejectsMultipleGeneratedColumns(t *testing.T) {
	schema := &TableSchema{
		Name: "broken",
		Columns: []ColumnSpec{
			{Name: "a", Generated: true},
			{Name: "b", Generated: true},
		},
	}
	assert.Error(t, schema.Validate())
}

func TestValidationErrorListsEveryMissingColumn(t *testing.T) {
	err := &ValidationError{Table: "products", MissingColumns: []string{"name", "price"}}
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "price")
}

func TestRowSetPromotesOnlyUnchanged(t *testing.T) {
	row := &RowSnapshot{Values: map[string]any{"name": "a"}, State: RowAdded}
	row.Set("name", "b")
	assert.Equal(t, RowAdded, row.State)

	row.State = RowUnchanged
	row.Set("name", "c")
	assert.Equal(t, RowModified, row.State)
}

func TestRowCloneIsDeep(t *testing.T) {
	row := &RowSnapshot{Values: map[string]any{"name": "a"}, State: RowModified}
	clone := row.Clone()

	clone.Values["name"] = "b"
	assert.Equal(t, "a", row.Values["name"])
	assert.Equal(t, RowModified, clone.State)
}
