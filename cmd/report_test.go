package cmd

import (
	"bytes"
	"testing"

	"github.com/airframesio/table-compare/cmd/comparison"
	"github.com/airframesio/table-compare/cmd/schemawalk"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

func testReport() *comparison.Report {
	report := comparison.NewReport()
	report.Add(&comparison.Result{
		Task:     schemawalk.Task{QualifiedName: "x", DisplayPath: "x", Field: "x"},
		Entries1: 3, Entries2: 3, Mean1: 1, Mean2: 1,
		Artifact: "out/x/x_compare.pdf",
	})
	report.Add(&comparison.Result{
		Task:        schemawalk.Task{QualifiedName: "hits.e", DisplayPath: "e", Field: "hits"},
		IsDifferent: true,
		Entries1:    3, Entries2: 2, Mean1: 2, Mean2: 1.5,
		Artifact: "out/hits/DIFF_e_compare.pdf",
	})
	return report
}

func readReport(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

func TestWriteReport(t *testing.T) {
	config := validConfig()

	t.Run("json", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := writeReport(fs, "reports/summary.json", config, testReport()); err != nil {
			t.Fatalf("writeReport failed: %v", err)
		}

		var doc ReportDocument
		if err := json.Unmarshal(readReport(t, fs, "reports/summary.json"), &doc); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if doc.AllSame {
			t.Error("expected all_same to be false")
		}
		if len(doc.Differing) != 1 || doc.Differing[0] != "hits.e" {
			t.Errorf("unexpected differing list %v", doc.Differing)
		}
		if len(doc.Results) != 2 || doc.Results[1].Entries2 != 2 || doc.Results[1].Field != "hits" {
			t.Errorf("unexpected results %+v", doc.Results)
		}
		if doc.Table != defaultTableName {
			t.Errorf("unexpected table %q", doc.Table)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := writeReport(fs, "summary.yaml", config, testReport()); err != nil {
			t.Fatalf("writeReport failed: %v", err)
		}

		var doc ReportDocument
		if err := yaml.Unmarshal(readReport(t, fs, "summary.yaml"), &doc); err != nil {
			t.Fatalf("invalid yaml: %v", err)
		}
		if len(doc.Results) != 2 || doc.Results[1].Mean2 != 1.5 {
			t.Errorf("unexpected results %+v", doc.Results)
		}
		if doc.Results[0].Artifact != "out/x/x_compare.pdf" {
			t.Errorf("unexpected artifact %q", doc.Results[0].Artifact)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := writeReport(fs, "summary.xlsx", config, testReport()); err != nil {
			t.Fatalf("writeReport failed: %v", err)
		}

		f, err := excelize.OpenReader(bytes.NewReader(readReport(t, fs, "summary.xlsx")))
		if err != nil {
			t.Fatalf("invalid workbook: %v", err)
		}
		defer f.Close()

		rows, err := f.GetRows(reportSheet)
		if err != nil {
			t.Fatalf("failed to read sheet: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(rows))
		}
		if rows[0][1] != "qualified_name" {
			t.Errorf("unexpected header %v", rows[0])
		}
		if rows[2][1] != "hits.e" || rows[2][3] != "TRUE" {
			t.Errorf("unexpected row %v", rows[2])
		}
	})

	t.Run("empty report keeps differing list", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := writeReport(fs, "empty.json", config, comparison.NewReport()); err != nil {
			t.Fatalf("writeReport failed: %v", err)
		}
		if !bytes.Contains(readReport(t, fs, "empty.json"), []byte(`"differing": []`)) {
			t.Error("expected an empty differing list")
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := writeReport(fs, "summary.txt", config, testReport()); err == nil {
			t.Fatal("expected error for unknown report extension")
		}
	})
}
