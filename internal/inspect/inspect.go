// Package inspect answers read-only questions about a database: server
// version, table row counts and sizes, schema listing. It talks to the
// server directly via pgx instead of shelling out to psql.
package inspect

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbclone/dbclone/internal/profile"
)

// DB is the pgx query surface used here; satisfied by *pgxpool.Pool and by
// pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TableInfo describes one base table.
type TableInfo struct {
	Name     string `json:"name"`
	Schema   string `json:"schema"`
	RowCount int64  `json:"rowCount"`
	Size     int64  `json:"size"`
}

// DatabaseInfo is the connection-test result.
type DatabaseInfo struct {
	Tables    []TableInfo `json:"tables"`
	TotalSize int64       `json:"totalSize"`
	Version   string      `json:"version"`
}

// SchemaInfo is one user schema with its table count.
type SchemaInfo struct {
	Name       string `json:"name"`
	TableCount int    `json:"tableCount"`
}

// DatabaseStructure lists user schemas and their tables.
type DatabaseStructure struct {
	Schemas []SchemaInfo `json:"schemas"`
	Tables  []TableInfo  `json:"tables"`
}

// Connect opens a pgx pool for the profile and verifies it with a ping.
func Connect(ctx context.Context, prof profile.ConnectionProfile) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(prof.URL())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 2
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect %s: %w", prof.Name, err)
	}
	return pool, nil
}

const tablesQuery = `SELECT
    t.table_name,
    t.table_schema,
    COALESCE(s.n_live_tup, 0)::bigint AS row_count,
    COALESCE(pg_total_relation_size(quote_ident(t.table_schema) || '.' || quote_ident(t.table_name)), 0)::bigint AS size
FROM information_schema.tables t
LEFT JOIN pg_stat_user_tables s ON t.table_name = s.relname AND t.table_schema = s.schemaname
WHERE t.table_schema NOT IN ('pg_catalog', 'information_schema')
AND t.table_type = 'BASE TABLE'
ORDER BY t.table_schema, t.table_name`

const schemasQuery = `SELECT
    n.nspname AS schema_name,
    COUNT(c.relname)::integer AS table_count
FROM pg_namespace n
LEFT JOIN pg_class c ON c.relnamespace = n.oid AND c.relkind = 'r'
WHERE n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
AND n.nspname NOT LIKE 'pg_temp_%'
AND n.nspname NOT LIKE 'pg_toast_temp_%'
GROUP BY n.nspname
ORDER BY n.nspname`

// TestConnection verifies connectivity and returns server version, per-table
// stats and total database size.
func TestConnection(ctx context.Context, db DB, database string) (DatabaseInfo, error) {
	var info DatabaseInfo

	if err := db.QueryRow(ctx, "SELECT version()").Scan(&info.Version); err != nil {
		return info, fmt.Errorf("query version: %w", err)
	}

	tables, err := listTables(ctx, db)
	if err != nil {
		return info, err
	}
	info.Tables = tables

	if err := db.QueryRow(ctx, "SELECT pg_database_size($1)", database).Scan(&info.TotalSize); err != nil {
		return info, fmt.Errorf("query database size: %w", err)
	}
	return info, nil
}

// Structure lists user schemas with table counts plus the per-table stats.
func Structure(ctx context.Context, db DB) (DatabaseStructure, error) {
	var st DatabaseStructure

	rows, err := db.Query(ctx, schemasQuery)
	if err != nil {
		return st, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s SchemaInfo
		if err := rows.Scan(&s.Name, &s.TableCount); err != nil {
			return st, err
		}
		st.Schemas = append(st.Schemas, s)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	tables, err := listTables(ctx, db)
	if err != nil {
		return st, err
	}
	st.Tables = tables
	return st, nil
}

func listTables(ctx context.Context, db DB) ([]TableInfo, error) {
	rows, err := db.Query(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Schema, &t.RowCount, &t.Size); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// PrettyBytes converts bytes to human-readable IEC units similar to pg_size_pretty.
func PrettyBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d bytes", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(b) / float64(div)
	suffix := []string{"kB", "MB", "GB", "TB", "PB", "EB"}[exp]
	return fmt.Sprintf("%.2f %s", value, suffix)
}
