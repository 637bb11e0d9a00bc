// Package mapper translates runtime-discovered table schemas into
// parameterized SQL. Values are always bound, never interpolated into the
// statement text, and column ordering always follows the schema's declared
// order so generated SQL is deterministic.
package mapper

import (
	"fmt"
	"strings"

	"github.com/kolobok/dbadmin/internal/models"
)

// Dialect captures the identifier quoting and placeholder conventions of the
// backing store.
type Dialect int

const (
	// DialectPostgres quotes identifiers with double quotes and numbers
	// placeholders $1..$n.
	DialectPostgres Dialect = iota
	// DialectFirebird upper-cases identifiers and uses ? placeholders.
	DialectFirebird
)

// Statement is a ready-to-execute parameterized query.
type Statement struct {
	Query string
	Args  []any
}

// StatementBuilder generates insert/update/delete statements for any table
// given only its discovered schema. No table-specific code.
type StatementBuilder struct {
	dialect Dialect
}

func NewStatementBuilder(d Dialect) *StatementBuilder {
	return &StatementBuilder{dialect: d}
}

// quote delimits an identifier per dialect.
func (b *StatementBuilder) quote(ident string) string {
	switch b.dialect {
	case DialectFirebird:
		return strings.ToUpper(ident)
	default:
		return `"` + ident + `"`
	}
}

// placeholder renders the n-th (1-based) bind marker.
func (b *StatementBuilder) placeholder(n int) string {
	if b.dialect == DialectFirebird {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// BuildInsert generates an INSERT covering every non-generated column of the
// schema, in declared order. Missing values bind as NULL.
func (b *StatementBuilder) BuildInsert(schema *models.TableSchema, row *models.RowSnapshot) (Statement, error) {
	if len(schema.Columns) == 0 {
		return Statement{}, fmt.Errorf("no columns declared for table %s", schema.Name)
	}

	var columns []string
	var placeholders []string
	var args []any

	for _, col := range schema.Columns {
		if col.Generated {
			continue
		}
		columns = append(columns, b.quote(col.Name))
		placeholders = append(placeholders, b.placeholder(len(args)+1))
		args = append(args, row.Get(col.Name))
	}

	if len(columns) == 0 {
		return Statement{}, fmt.Errorf("table %s has no insertable columns", schema.Name)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		b.quote(schema.Name),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	return Statement{Query: query, Args: args}, nil
}

// BuildUpdate generates an UPDATE keyed by the identity column. The identity
// column and any generated column are excluded from the SET list.
func (b *StatementBuilder) BuildUpdate(schema *models.TableSchema, row *models.RowSnapshot) (Statement, error) {
	identity, err := schema.IdentityColumn()
	if err != nil {
		return Statement{}, err
	}
	key := row.Get(identity.Name)
	if key == nil {
		return Statement{}, fmt.Errorf("identity value for %s.%s is missing", schema.Name, identity.Name)
	}

	var setClauses []string
	var args []any

	for _, col := range schema.Columns {
		if col.Generated || col.Name == identity.Name {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", b.quote(col.Name), b.placeholder(len(args)+1)))
		args = append(args, row.Get(col.Name))
	}

	if len(setClauses) == 0 {
		return Statement{}, fmt.Errorf("table %s has no updatable columns", schema.Name)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = %s",
		b.quote(schema.Name),
		strings.Join(setClauses, ", "),
		b.quote(identity.Name),
		b.placeholder(len(args)+1),
	)
	args = append(args, key)

	return Statement{Query: query, Args: args}, nil
}

// BuildDelete generates a DELETE keyed by the identity column.
func (b *StatementBuilder) BuildDelete(schema *models.TableSchema, row *models.RowSnapshot) (Statement, error) {
	identity, err := schema.IdentityColumn()
	if err != nil {
		return Statement{}, err
	}
	key := row.Get(identity.Name)
	if key == nil {
		return Statement{}, fmt.Errorf("identity value for %s.%s is missing", schema.Name, identity.Name)
	}

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = %s",
		b.quote(schema.Name),
		b.quote(identity.Name),
		b.placeholder(1),
	)

	return Statement{Query: query, Args: []any{key}}, nil
}

// Dialect exposes the builder's dialect for callers that need to append
// store-specific clauses (e.g. RETURNING).
func (b *StatementBuilder) Dialect() Dialect {
	return b.dialect
}

// QuoteIdent is the exported form of quote for store implementations.
func (b *StatementBuilder) QuoteIdent(ident string) string {
	return b.quote(ident)
}
