package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kolobok/dbadmin/internal/mapper"
	"github.com/kolobok/dbadmin/internal/models"
)

const introspectTimeout = 10 * time.Second

// tables that never belong to the administered schema
var excludedTables = map[string]struct{}{
	"goose_db_version":  {},
	"schema_migrations": {},
	"spatial_ref_sys":   {},
	"sysdiagrams":       {},
}

// PostgresStore drives a Postgres schema through pgxpool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connString string, logger *slog.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: no response from postgres: %v", models.ErrConnectivity, err)
	}

	logger.Info("Connected to Postgres", "database", config.ConnConfig.Database)

	return &PostgresStore{pool: p, logger: logger}, nil
}

func (s *PostgresStore) Dialect() mapper.Dialect {
	return mapper.DialectPostgres
}

func (s *PostgresStore) ListTables(ctx context.Context) ([]string, error) {
	opCtx, cancel := context.WithTimeout(ctx, introspectTimeout)
	defer cancel()

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := s.pool.Query(opCtx, query)
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

// introspectColumns reads column metadata in declared (ordinal) order.
// A column counts as auto-generated when it is a declared identity or backed
// by a serial sequence default.
func (s *PostgresStore) introspectColumns(ctx context.Context, table string) ([]models.ColumnSpec, error) {
	query := `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       is_identity = 'YES' OR COALESCE(column_default, '') LIKE 'nextval(%'
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := s.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("%w: column introspection failed for %s: %v", models.ErrDataSource, table, err)
	}
	defer rows.Close()

	var columns []models.ColumnSpec
	for rows.Next() {
		var name, dataType string
		var nullable, generated bool
		if err := rows.Scan(&name, &dataType, &nullable, &generated); err != nil {
			return nil, fmt.Errorf("%w: column scan failed for %s: %v", models.ErrDataSource, table, err)
		}
		columns = append(columns, models.ColumnSpec{
			Name:      name,
			Type:      normalizeTypeName(dataType),
			Nullable:  nullable,
			Generated: generated,
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

func (s *PostgresStore) LoadTable(ctx context.Context, name string) (*models.TableSchema, []*models.RowSnapshot, error) {
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

	builder := mapper.NewStatementBuilder(mapper.DialectPostgres)
	selectList := make([]string, len(columns))
	for i, c := range columns {
		selectList[i] = builder.QuoteIdent(c.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(selectList, ", "), builder.QuoteIdent(name), builder.QuoteIdent(identity.Name))

	rows, err := s.pool.Query(opCtx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to load table %s: %v", models.ErrDataSource, name, err)
	}
	defer rows.Close()

	var snapshots []*models.RowSnapshot
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: row scan failed for %s: %v", models.ErrDataSource, name, err)
		}
		snap := models.NewRowSnapshot(models.RowUnchanged)
		for i, c := range columns {
			snap.Values[c.Name] = values[i]
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to load table %s: %v", models.ErrDataSource, name, err)
	}

	return schema, snapshots, nil
}

func (s *PostgresStore) Insert(ctx context.Context, stmt mapper.Statement, keyColumn string) (any, error) {
	if keyColumn == "" {
		_, err := s.Exec(ctx, stmt)
		return nil, err
	}

	builder := mapper.NewStatementBuilder(mapper.DialectPostgres)
	query := stmt.Query + " RETURNING " + builder.QuoteIdent(keyColumn)

	var key any
	err := s.pool.QueryRow(ctx, query, stmt.Args...).Scan(&key)
	if err != nil {
		return nil, fmt.Errorf("%w: insert failed: %v", models.ErrDataSource, err)
	}
	return key, nil
}

func (s *PostgresStore) Exec(ctx context.Context, stmt mapper.Statement) (int64, error) {
	tag, err := s.pool.Exec(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("%w: statement failed: %v", models.ErrDataSource, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) NextKeyPreview(ctx context.Context, table, column string) (int64, error) {
	builder := mapper.NewStatementBuilder(mapper.DialectPostgres)
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s",
		builder.QuoteIdent(column), builder.QuoteIdent(table))

	var next int64
	err := s.pool.QueryRow(ctx, query).Scan(&next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 1, nil
		}
		return 0, fmt.Errorf("%w: next key preview failed for %s: %v", models.ErrDataSource, table, err)
	}
	return next, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
