// Package db implements schema introspection and statement execution against
// the backing relational store. Two backends are provided: Postgres (pgx) and
// Firebird (database/sql). Both discover tables and column metadata at
// runtime; nothing here is table-specific.
package db

import (
	"context"

	"github.com/kolobok/dbadmin/internal/mapper"
	"github.com/kolobok/dbadmin/internal/models"
)

// Store is the contract the CRUD engine drives. LoadTable returns the full
// row set together with discovered column metadata; callers treat the schema
// as immutable until the next LoadTable.
type Store interface {
	// Dialect reports the SQL conventions statement builders must use.
	Dialect() mapper.Dialect

	// ListTables returns the user table names in deterministic order,
	// excluding internal/system tables.
	ListTables(ctx context.Context) ([]string, error)

	// LoadTable introspects one table and loads its rows in identity order.
	LoadTable(ctx context.Context, name string) (*models.TableSchema, []*models.RowSnapshot, error)

	// Insert executes an INSERT. When keyColumn is non-empty the store
	// returns the generated key value for that column.
	Insert(ctx context.Context, stmt mapper.Statement, keyColumn string) (any, error)

	// Exec executes an UPDATE or DELETE and returns the affected row count.
	Exec(ctx context.Context, stmt mapper.Statement) (int64, error)

	// NextKeyPreview returns MAX(column)+1 as a non-authoritative hint for
	// the add dialog. The store's generated value always wins.
	NextKeyPreview(ctx context.Context, table, column string) (int64, error)

	Close()
}

// normalizeTypeName maps vendor type names onto the semantic column types.
// Unrecognized names degrade to text so unknown schemas stay browsable.
func normalizeTypeName(dataType string) models.ColumnType {
	switch dataType {
	case "smallint", "integer", "bigint", "int2", "int4", "int8":
		return models.TypeInteger
	case "numeric", "decimal", "real", "double precision", "money", "float4", "float8":
		return models.TypeDecimal
	case "timestamp without time zone", "timestamp with time zone", "timestamp",
		"timestamptz", "date", "time", "time without time zone", "time with time zone":
		return models.TypeDateTime
	case "boolean", "bool":
		return models.TypeBoolean
	case "bytea", "blob":
		return models.TypeBinary
	default:
		return models.TypeText
	}
}
