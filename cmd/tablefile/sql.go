package tablefile

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLFile is a database holding one table per name.
type SQLFile struct {
	location string
	db       *sql.DB
	describe describeFunc
}

// describeFunc lists the fields of a table together with the query that
// projects each value-bearing path. An empty field list means the table does
// not exist.
type describeFunc func(ctx context.Context, db *sql.DB, name string) ([]Field, map[string]string, error)

func openSQL(ctx context.Context, location, driver, dsn string, describe describeFunc) (*SQLFile, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, redact(location), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, redact(location), err)
	}
	return newSQLFile(location, db, describe), nil
}

func newSQLFile(location string, db *sql.DB, describe describeFunc) *SQLFile {
	return &SQLFile{location: redact(location), db: db, describe: describe}
}

func openSQLite(ctx context.Context, path string) (*SQLFile, error) {
	return openSQL(ctx, path, "sqlite", "file:"+path+"?mode=ro", describeSQLite)
}

func openDuckDB(ctx context.Context, path string) (*SQLFile, error) {
	return openSQL(ctx, path, "duckdb", path+"?access_mode=read_only", describeDuckDB)
}

func openPostgres(ctx context.Context, location string) (*SQLFile, error) {
	return openSQL(ctx, location, "postgres", location, describePostgres)
}

// Location returns the database location with credentials redacted
func (f *SQLFile) Location() string {
	return f.location
}

// Table describes the named table
func (f *SQLFile) Table(ctx context.Context, name string) (Table, error) {
	fields, queries, err := f.describe(ctx, f.db, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to describe table %q: %w", ErrResourceAccess, f.location, name, err)
	}
	if len(fields) == 0 {
		return nil, tableNotFound(f.location, name)
	}
	return &sqlTable{
		fieldSet: newFieldSet(fields),
		name:     name,
		db:       f.db,
		queries:  queries,
	}, nil
}

// Close closes the database handle
func (f *SQLFile) Close() error {
	return f.db.Close()
}

type sqlTable struct {
	fieldSet
	name    string
	db      *sql.DB
	queries map[string]string
}

func (t *sqlTable) Name() string {
	return t.name
}

func (t *sqlTable) Values(ctx context.Context, path string) ([]float64, error) {
	query, ok := t.queries[path]
	if !ok {
		return nil, fieldNotFound(t.name, path)
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", path, err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %q: %w", path, err)
		}
		if values, err = appendValue(values, v); err != nil {
			return nil, fmt.Errorf("%q: %w", path, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return values, nil
}

// quoteIdent double-quotes an identifier for sqlite and duckdb.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func describeSQLite(ctx context.Context, db *sql.DB, name string) ([]Field, map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", name)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var fields []Field
	queries := make(map[string]string)
	for rows.Next() {
		var column, typeName string
		if err := rows.Scan(&column, &typeName); err != nil {
			return nil, nil, err
		}
		if typeName == "" {
			typeName = "any"
		}
		fields = append(fields, Field{Name: column, Path: column, TypeName: strings.ToLower(typeName)})
		queries[column] = fmt.Sprintf("SELECT %s FROM %s", quoteIdent(column), quoteIdent(name))
	}
	return fields, queries, rows.Err()
}

func describePostgres(ctx context.Context, db *sql.DB, name string) ([]Field, map[string]string, error) {
	schema, table := "", name
	if i := strings.Index(name, "."); i >= 0 {
		schema, table = name[:i], name[i+1:]
	}
	from := pq.QuoteIdentifier(table)
	if schema != "" {
		from = pq.QuoteIdentifier(schema) + "." + from
	}

	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, udt_name
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var fields []Field
	queries := make(map[string]string)
	for rows.Next() {
		var column, dataType, udtName string
		if err := rows.Scan(&column, &dataType, &udtName); err != nil {
			return nil, nil, err
		}

		expr := pq.QuoteIdentifier(column)
		typeName := strings.ToLower(dataType)
		if dataType == "ARRAY" {
			typeName = "vector<" + strings.TrimPrefix(udtName, "_") + ">"
			expr = "unnest(" + expr + ")"
		}
		fields = append(fields, Field{Name: column, Path: column, TypeName: typeName})
		queries[column] = fmt.Sprintf("SELECT %s FROM %s", expr, from)
	}
	return fields, queries, rows.Err()
}

func describeDuckDB(ctx context.Context, db *sql.DB, name string) ([]Field, map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var fields []Field
	queries := make(map[string]string)
	for rows.Next() {
		var column, dataType string
		if err := rows.Scan(&column, &dataType); err != nil {
			return nil, nil, err
		}
		t, err := parseDuckType(dataType)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q: %w", column, err)
		}
		fields = append(fields, duckField(column, nil, t, duckSource{expr: quoteIdent(column), from: quoteIdent(name)}, queries))
	}
	return fields, queries, rows.Err()
}

// duckSource is the expression producing a value and the relation it is
// selected from.
type duckSource struct {
	expr  string
	from  string
	depth int
}

func (s duckSource) query() string {
	return fmt.Sprintf("SELECT %s FROM %s", s.expr, s.from)
}

// unnest moves the source into a subquery yielding one row per list element.
func (s duckSource) unnest() duckSource {
	alias := fmt.Sprintf("u%d", s.depth)
	return duckSource{
		expr:  alias,
		from:  fmt.Sprintf("(SELECT unnest(%s) AS %s FROM %s)", s.expr, alias, s.from),
		depth: s.depth + 1,
	}
}

func duckField(name string, parent []string, t duckType, src duckSource, queries map[string]string) Field {
	logical := joinPath(parent, name)
	path := strings.Join(logical, ".")
	field := Field{Name: name, Path: path, TypeName: t.String()}

	switch {
	case t.Kind == duckMap:
		return field
	case t.Kind == duckStruct:
		for _, child := range t.Fields {
			childSrc := src
			childSrc.expr = fmt.Sprintf("struct_extract(%s, %s)", src.expr, quoteLiteral(child.Name))
			field.Leaves = append(field.Leaves, leavesOf(duckField(child.Name, logical, child.Type, childSrc, queries))...)
		}
		return field
	case t.Kind == duckList && t.Elem.Kind == duckStruct:
		inner := duckField(name, parent, *t.Elem, src.unnest(), queries)
		for i := range inner.Leaves {
			inner.Leaves[i].TypeName = "vector<" + inner.Leaves[i].TypeName + ">"
		}
		field.Leaves = inner.Leaves
		return field
	default:
		queries[path] = src.query()
		return field
	}
}
