// Package tablefile opens named tables from files and databases and projects
// their columns into float sequences.
//
// Supported locations:
//
//	tree.parquet[.zst|.lz4|.gz]   parquet, groups are composite fields
//	tree.csv[.zst|.lz4|.gz]       header row, scalar fields
//	tree.jsonl[.zst|.lz4|.gz]     nested objects are composite fields
//	tree.sqlite, tree.db          SQLite database, one table per name
//	tree.duckdb                   DuckDB database, STRUCT columns are composite
//	postgres://user@host/db       PostgreSQL database
//	s3://bucket/key.parquet       any single-table file format stored on S3
package tablefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/airframesio/table-compare/cmd/compressors"
	"github.com/spf13/afero"
)

// Format type constants
const (
	FormatParquet  = "parquet"
	FormatCSV      = "csv"
	FormatJSONL    = "jsonl"
	FormatSQLite   = "sqlite"
	FormatDuckDB   = "duckdb"
	FormatPostgres = "postgres"
)

// Static errors for table access
var (
	ErrResourceAccess    = errors.New("cannot access table source")
	ErrTableNotFound     = errors.New("table not found")
	ErrFieldNotFound     = errors.New("field not found")
	ErrNotNumeric        = errors.New("value is not numeric")
	ErrUnsupportedFormat = errors.New("unsupported table file format")
)

// Field describes a top-level column or one of its nested leaves.
type Field struct {
	// Name is the last component of Path.
	Name string
	// Path is the dotted qualified name used to fetch values.
	Path string
	// TypeName is a lower-case type description such as "double",
	// "vector<float>" or "map<string,int32>".
	TypeName string
	// Leaves lists every nested leaf in declaration order. It is empty for
	// scalar fields.
	Leaves []Field
}

// IsComposite reports whether the field has nested leaves.
func (f Field) IsComposite() bool {
	return len(f.Leaves) > 0
}

// IsMap reports whether the field holds key-value pairs.
func (f Field) IsMap() bool {
	return strings.HasPrefix(f.TypeName, "map")
}

// Table is a read-only named collection of records sharing a schema.
type Table interface {
	// Name returns the table name.
	Name() string
	// Fields returns the top-level fields in declaration order.
	Fields() []Field
	// Field looks up a top-level field by name.
	Field(name string) (Field, bool)
	// Values projects every record onto the field or leaf at path.
	// Null values are skipped.
	Values(ctx context.Context, path string) ([]float64, error)
}

// File is an opened table source.
type File interface {
	// Location returns the location the file was opened from, with any
	// credentials redacted.
	Location() string
	// Table retrieves a named table from the file.
	Table(ctx context.Context, name string) (Table, error)
	// Close releases the underlying resource.
	Close() error
}

// S3Options configures access to s3:// locations.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Options configures Open.
type Options struct {
	// Fs is used for single-table files. Defaults to the OS filesystem.
	Fs     afero.Fs
	S3     S3Options
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Open opens the table source at location.
func Open(ctx context.Context, location string, opts Options) (File, error) {
	opts = opts.withDefaults()

	switch {
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return openPostgres(ctx, location)
	case strings.HasPrefix(location, "s3://"):
		data, key, err := fetchS3(ctx, location, opts.S3)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, location, err)
		}
		return openBytes(location, key, data)
	}

	compressor, inner := compressors.Detect(location)
	format, err := FormatOf(inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, location, err)
	}
	opts.Logger.Debug(fmt.Sprintf("Opening %s as %s (compression: %s)", location, format, compressor.Name()))

	switch format {
	case FormatSQLite, FormatDuckDB:
		if compressor.Name() != compressors.None {
			return nil, fmt.Errorf("%w: %s: %w: compressed %s databases", ErrResourceAccess, location, ErrUnsupportedFormat, format)
		}
		if _, err := os.Stat(location); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResourceAccess, err)
		}
		if format == FormatSQLite {
			return openSQLite(ctx, location)
		}
		return openDuckDB(ctx, location)
	case FormatParquet:
		if compressor.Name() == compressors.None {
			return openParquetFile(opts.Fs, location)
		}
	}

	data, err := readAll(opts.Fs, location, compressor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceAccess, err)
	}
	return decode(location, format, data)
}

// FormatOf returns the table format implied by a file name with any
// compression extension already removed.
func FormatOf(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".sqlite", ".sqlite3", ".db":
		return FormatSQLite, nil
	case ".duckdb", ".ddb":
		return FormatDuckDB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Base(name))
	}
}

// openBytes decodes an in-memory single-table file named name.
func openBytes(location, name string, data []byte) (File, error) {
	compressor, inner := compressors.Detect(name)
	format, err := FormatOf(inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, location, err)
	}

	if compressor.Name() != compressors.None {
		data, err = compressors.Decompress(compressor, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, location, err)
		}
	}
	return decode(location, format, data)
}

func decode(location, format string, data []byte) (File, error) {
	var (
		file File
		err  error
	)
	switch format {
	case FormatParquet:
		file, err = openParquetBytes(location, data)
	case FormatCSV:
		file, err = readCSV(location, data)
	case FormatJSONL:
		file, err = readJSONL(location, data)
	default:
		err = fmt.Errorf("%w: %s cannot be read from memory", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResourceAccess, location, err)
	}
	return file, nil
}

func readAll(fs afero.Fs, path string, compressor compressors.Compressor) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := compressor.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream: %w", compressor.Name(), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// redact hides passwords in connection URLs.
func redact(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.User == nil {
		return location
	}
	return u.Redacted()
}

func tableNotFound(location, name string) error {
	return fmt.Errorf("%w: %w: %q in %s", ErrResourceAccess, ErrTableNotFound, name, location)
}

func fieldNotFound(table, path string) error {
	return fmt.Errorf("%w: %q in table %q", ErrFieldNotFound, path, table)
}

// fieldSet indexes top-level fields by name.
type fieldSet struct {
	fields []Field
	byName map[string]int
}

func newFieldSet(fields []Field) fieldSet {
	s := fieldSet{
		fields: make([]Field, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		// A key-value field has nothing to iterate at the top level, so it
		// is exposed as a composite holding itself as its only leaf.
		if f.IsMap() && !f.IsComposite() {
			f.Leaves = []Field{{Name: f.Name, Path: f.Path, TypeName: f.TypeName}}
		}
		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

func (s fieldSet) Fields() []Field {
	return s.fields
}

func (s fieldSet) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// leavesOf returns the leaves contributed by f to an enclosing composite.
func leavesOf(f Field) []Field {
	if f.IsComposite() {
		return f.Leaves
	}
	return []Field{f}
}

func joinPath(parent []string, name string) []string {
	path := make([]string, len(parent), len(parent)+1)
	copy(path, parent)
	return append(path, name)
}
