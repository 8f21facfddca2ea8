package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/spf13/afero"
)

func validGenerateConfig(output string) *GenerateConfig {
	return &GenerateConfig{
		Output:       output,
		TableName:    defaultTableName,
		Fields:       3,
		Rows:         1500,
		Seed:         42,
		GroupLeaves:  2,
		ParquetCodec: "snappy",
	}
}

func openGenerated(t *testing.T, fs afero.Fs, location string) tablefile.Table {
	t.Helper()
	ctx := context.Background()
	f, err := tablefile.Open(ctx, location, tablefile.Options{Fs: fs})
	if err != nil {
		t.Fatalf("failed to open %s: %v", location, err)
	}
	t.Cleanup(func() { f.Close() })

	table, err := f.Table(ctx, defaultTableName)
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}
	return table
}

func TestGenerateTable(t *testing.T) {
	for _, output := range []string{"tree.parquet", "tree.csv.zst", "tree.jsonl.gz", "tree.parquet.lz4"} {
		t.Run(output, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			config := validGenerateConfig(output)
			if err := generateTable(fs, config); err != nil {
				t.Fatalf("generateTable failed: %v", err)
			}

			table := openGenerated(t, fs, output)
			fields := table.Fields()
			if len(fields) != 3 {
				t.Fatalf("expected 3 fields, got %d", len(fields))
			}
			if fields[0].Name != "field0" || fields[2].Name != "field2" {
				t.Errorf("unexpected field names %s, %s", fields[0].Name, fields[2].Name)
			}

			values, err := table.Values(context.Background(), "field1")
			if err != nil {
				t.Fatalf("failed to read values: %v", err)
			}
			if len(values) != config.Rows {
				t.Fatalf("expected %d values, got %d", config.Rows, len(values))
			}
			for _, v := range values {
				if v < 0 || v >= 1 {
					t.Fatalf("value %v outside [0, 1)", v)
				}
			}
		})
	}
}

func TestGenerateTableWithGroup(t *testing.T) {
	for _, output := range []string{"tree.parquet", "tree.jsonl"} {
		t.Run(output, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			config := validGenerateConfig(output)
			config.Group = "hits"
			if err := generateTable(fs, config); err != nil {
				t.Fatalf("generateTable failed: %v", err)
			}

			table := openGenerated(t, fs, output)
			hits, ok := table.Field("hits")
			if !ok {
				t.Fatal("expected composite field hits")
			}
			if len(hits.Leaves) != 3 {
				t.Fatalf("expected 3 leaves, got %d", len(hits.Leaves))
			}
			if hits.Leaves[2].Path != "hits.n" {
				t.Errorf("expected count leaf last, got %s", hits.Leaves[2].Path)
			}
		})
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := validGenerateConfig("a.csv")
	b := validGenerateConfig("b.csv")
	if err := generateTable(fs, a); err != nil {
		t.Fatalf("generateTable failed: %v", err)
	}
	if err := generateTable(fs, b); err != nil {
		t.Fatalf("generateTable failed: %v", err)
	}

	dataA, _ := afero.ReadFile(fs, "a.csv")
	dataB, _ := afero.ReadFile(fs, "b.csv")
	if string(dataA) != string(dataB) {
		t.Error("same seed should produce the same table")
	}
}

func TestGeneratedTablesCompareEqual(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, output := range []string{"ref.parquet", "new.parquet"} {
		config := validGenerateConfig(output)
		config.Group = "hits"
		if err := generateTable(fs, config); err != nil {
			t.Fatalf("generateTable failed: %v", err)
		}
	}

	config := testCompareConfig()
	config.Reference = "ref.parquet"
	config.Comparison = "new.parquet"
	report, _, err := runTestComparison(t, fs, config)
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	if report.Len() != 6 {
		t.Errorf("expected 6 results, got %d", report.Len())
	}
	if !report.AllSame() {
		t.Errorf("expected identical tables, differing: %v", report.Differing())
	}
	assertExists(t, fs, "out/hits/leaf0_compare.svg", true)
}

func TestGenerateConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*GenerateConfig)
		wantErr error
	}{
		{"MissingOutput", func(c *GenerateConfig) { c.Output = "" }, ErrGenerateOutputRequired},
		{"UnsupportedOutput", func(c *GenerateConfig) { c.Output = "tree.root" }, ErrGenerateFormatInvalid},
		{"DatabaseOutput", func(c *GenerateConfig) { c.Output = "tree.sqlite" }, ErrGenerateFormatInvalid},
		{"MissingTableName", func(c *GenerateConfig) { c.TableName = "" }, ErrTableNameRequired},
		{"NoFields", func(c *GenerateConfig) { c.Fields = 0 }, ErrFieldsInvalid},
		{"NoRows", func(c *GenerateConfig) { c.Rows = 0 }, ErrRowsInvalid},
		{"EmptyGroup", func(c *GenerateConfig) { c.Group = "hits"; c.GroupLeaves = 0 }, ErrGroupLeavesInvalid},
		{"UnknownCodec", func(c *GenerateConfig) { c.ParquetCodec = "brotli" }, ErrParquetCodecInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validGenerateConfig("tree.parquet")
			tt.modify(config)
			if err := config.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if err := validGenerateConfig("tree.jsonl.zst").Validate(); err != nil {
		t.Errorf("compressed jsonl output should be valid: %v", err)
	}
}

func TestGenerateSchemaNames(t *testing.T) {
	config := validGenerateConfig("tree.parquet")
	config.Fields = 12
	config.Group = "hits"
	config.GroupLeaves = 1

	schema := generateSchema(config)
	if len(schema.Columns) != 14 {
		t.Fatalf("expected 14 columns, got %d", len(schema.Columns))
	}
	if got := schema.Columns[3].Name(); got != "field03" {
		t.Errorf("expected zero padded name, got %s", got)
	}
	if got := schema.Columns[12].Name(); got != "hits.leaf0" {
		t.Errorf("unexpected group leaf %s", got)
	}
}
