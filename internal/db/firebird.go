package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/nakagami/firebirdsql"

	"github.com/kolobok/dbadmin/internal/mapper"
	"github.com/kolobok/dbadmin/internal/models"
	pkgencoding "github.com/kolobok/dbadmin/pkg/encoding"
)

// FirebirdStore drives a legacy Firebird schema through database/sql.
// Text columns in these databases are commonly WIN1252; values are decoded
// to UTF-8 on load.
type FirebirdStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewFirebirdStore(connString string, logger *slog.Logger) (*FirebirdStore, error) {
	db, err := sql.Open("firebirdsql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open firebird connection: %w", err)
	}

	// Legacy servers misbehave with aggressive pooling
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: firebird ping failed: %v", models.ErrConnectivity, err)
	}

	logger.Info("Connected to Firebird")

	return &FirebirdStore{db: db, logger: logger}, nil
}

func (s *FirebirdStore) Dialect() mapper.Dialect {
	return mapper.DialectFirebird
}

func (s *FirebirdStore) ListTables(ctx context.Context) ([]string, error) {
	opCtx, cancel := context.WithTimeout(ctx, introspectTimeout)
	defer cancel()

	query := `
		SELECT TRIM(RDB$RELATION_NAME)
		FROM RDB$RELATIONS
		WHERE RDB$SYSTEM_FLAG = 0 AND RDB$VIEW_BLR IS NULL
		ORDER BY RDB$RELATION_NAME
	`

	rows, err := s.db.QueryContext(opCtx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: table discovery failed: %v", models.ErrDataSource, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: table name scan failed: %v", models.ErrDataSource, err)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, skip := excludedTables[name]; skip {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: table discovery failed: %v", models.ErrDataSource, err)
	}

	return names, nil
}

// firebirdTypeName maps RDB$FIELD_TYPE codes onto vendor-neutral names
// understood by normalizeTypeName. Sub-zero scale on integer storage means
// a NUMERIC/DECIMAL declaration.
func firebirdTypeName(fieldType, subType, scale int) string {
	if scale < 0 {
		return "decimal"
	}
	switch fieldType {
	case 7, 8, 16:
		return "integer"
	case 10, 27:
		return "double precision"
	case 12, 13, 35:
		return "timestamp"
	case 14, 37:
		return "text"
	case 261:
		if subType == 1 {
			return "text"
		}
		return "blob"
	case 23:
		return "boolean"
	default:
		return "text"
	}
}

func (s *FirebirdStore) introspectColumns(ctx context.Context, table string) ([]models.ColumnSpec, error) {
	query := `
		SELECT TRIM(rf.RDB$FIELD_NAME),
		       f.RDB$FIELD_TYPE,
		       COALESCE(f.RDB$FIELD_SUB_TYPE, 0),
		       COALESCE(f.RDB$FIELD_SCALE, 0),
		       COALESCE(rf.RDB$NULL_FLAG, 0),
		       CASE WHEN rf.RDB$IDENTITY_TYPE IS NULL THEN 0 ELSE 1 END
		FROM RDB$RELATION_FIELDS rf
		JOIN RDB$FIELDS f ON f.RDB$FIELD_NAME = rf.RDB$FIELD_SOURCE
		WHERE rf.RDB$RELATION_NAME = ?
		ORDER BY rf.RDB$FIELD_POSITION
	`

	rows, err := s.db.QueryContext(ctx, query, strings.ToUpper(table))
	if err != nil {
		return nil, fmt.Errorf("%w: column introspection failed for %s: %v", models.ErrDataSource, table, err)
	}
	defer rows.Close()

	var columns []models.ColumnSpec
	for rows.Next() {
		var name string
		var fieldType, subType, scale, notNull, identity int
		if err := rows.Scan(&name, &fieldType, &subType, &scale, &notNull, &identity); err != nil {
			return nil, fmt.Errorf("%w: column scan failed for %s: %v", models.ErrDataSource, table, err)
		}
		columns = append(columns, models.ColumnSpec{
			Name:      strings.ToLower(name),
			Type:      normalizeTypeName(firebirdTypeName(fieldType, subType, scale)),
			Nullable:  notNull == 0,
			Generated: identity == 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: column introspection failed for %s: %v", models.ErrDataSource, table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s not found or has no columns", models.ErrDataSource, table)
	}

	return columns, nil
}

func (s *FirebirdStore) LoadTable(ctx context.Context, name string) (*models.TableSchema, []*models.RowSnapshot, error) {
	opCtx, cancel := context.WithTimeout(ctx, introspectTimeout)
	defer cancel()

	columns, err := s.introspectColumns(opCtx, name)
	if err != nil {
		return nil, nil, err
	}

	schema := &models.TableSchema{Name: name, Columns: columns}
	if err := schema.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrDataSource, err)
	}

	identity, err := schema.IdentityColumn()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrDataSource, err)
	}

	builder := mapper.NewStatementBuilder(mapper.DialectFirebird)
	selectList := make([]string, len(columns))
	for i, c := range columns {
		selectList[i] = builder.QuoteIdent(c.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(selectList, ", "), builder.QuoteIdent(name), builder.QuoteIdent(identity.Name))

	rows, err := s.db.QueryContext(opCtx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to load table %s: %v", models.ErrDataSource, name, err)
	}
	defer rows.Close()

	var snapshots []*models.RowSnapshot
	for rows.Next() {
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("%w: row scan failed for %s: %v", models.ErrDataSource, name, err)
		}

		snap := models.NewRowSnapshot(models.RowUnchanged)
		for i, c := range columns {
			value := *(dest[i].(*any))
			if b, ok := value.([]byte); ok && c.Type == models.TypeText {
				value = pkgencoding.ToUTF8(b)
			}
			snap.Values[c.Name] = value
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to load table %s: %v", models.ErrDataSource, name, err)
	}

	return schema, snapshots, nil
}

func (s *FirebirdStore) Insert(ctx context.Context, stmt mapper.Statement, keyColumn string) (any, error) {
	if keyColumn == "" {
		_, err := s.Exec(ctx, stmt)
		return nil, err
	}

	builder := mapper.NewStatementBuilder(mapper.DialectFirebird)
	query := stmt.Query + " RETURNING " + builder.QuoteIdent(keyColumn)

	var key any
	err := s.db.QueryRowContext(ctx, query, stmt.Args...).Scan(&key)
	if err != nil {
		return nil, fmt.Errorf("%w: insert failed: %v", models.ErrDataSource, err)
	}
	return key, nil
}

func (s *FirebirdStore) Exec(ctx context.Context, stmt mapper.Statement) (int64, error) {
	res, err := s.db.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("%w: statement failed: %v", models.ErrDataSource, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: affected row count unavailable: %v", models.ErrDataSource, err)
	}
	return affected, nil
}

func (s *FirebirdStore) NextKeyPreview(ctx context.Context, table, column string) (int64, error) {
	builder := mapper.NewStatementBuilder(mapper.DialectFirebird)
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s",
		builder.QuoteIdent(column), builder.QuoteIdent(table))

	var next int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&next); err != nil {
		return 0, fmt.Errorf("%w: next key preview failed for %s: %v", models.ErrDataSource, table, err)
	}
	return next, nil
}

func (s *FirebirdStore) Close() {
	s.logger.Info("Closing Firebird connection pool")
	s.db.Close()
}
