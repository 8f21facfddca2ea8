package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/airframesio/table-compare/cmd/comparison"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report formats
const (
	reportJSON = "json"
	reportYAML = "yaml"
	reportXLSX = "xlsx"
)

const reportSheet = "Comparison"

// ReportRow is one compared field in a written report
type ReportRow struct {
	Field         string  `json:"field" yaml:"field"`
	QualifiedName string  `json:"qualified_name" yaml:"qualified_name"`
	DisplayPath   string  `json:"display_path" yaml:"display_path"`
	Different     bool    `json:"different" yaml:"different"`
	Entries1      int     `json:"entries1" yaml:"entries1"`
	Entries2      int     `json:"entries2" yaml:"entries2"`
	Mean1         float64 `json:"mean1" yaml:"mean1"`
	Mean2         float64 `json:"mean2" yaml:"mean2"`
	Artifact      string  `json:"artifact" yaml:"artifact"`
}

// ReportDocument is the top level of json and yaml reports
type ReportDocument struct {
	Reference  string      `json:"reference" yaml:"reference"`
	Comparison string      `json:"comparison" yaml:"comparison"`
	Table      string      `json:"table" yaml:"table"`
	AllSame    bool        `json:"all_same" yaml:"all_same"`
	Differing  []string    `json:"differing" yaml:"differing"`
	Results    []ReportRow `json:"results" yaml:"results"`
}

var reportHeaders = []string{
	"field", "qualified_name", "display_path", "different",
	"entries1", "entries2", "mean1", "mean2", "artifact",
}

func newReportDocument(config *Config, report *comparison.Report) ReportDocument {
	doc := ReportDocument{
		Reference:  config.Reference,
		Comparison: config.Comparison,
		Table:      config.TableName,
		AllSame:    report.AllSame(),
		Differing:  report.Differing(),
		Results:    make([]ReportRow, 0, report.Len()),
	}
	if doc.Differing == nil {
		doc.Differing = []string{}
	}
	for _, res := range report.Results() {
		doc.Results = append(doc.Results, ReportRow{
			Field:         res.Task.Field,
			QualifiedName: res.Task.QualifiedName,
			DisplayPath:   res.Task.DisplayPath,
			Different:     res.IsDifferent,
			Entries1:      res.Entries1,
			Entries2:      res.Entries2,
			Mean1:         res.Mean1,
			Mean2:         res.Mean2,
			Artifact:      filepath.ToSlash(res.Artifact),
		})
	}
	return doc
}

// writeReport writes the comparison summary to path, choosing the format
// from the file extension
func writeReport(fs afero.Fs, path string, config *Config, report *comparison.Report) error {
	format, ok := reportFormat(path)
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrReportFormatInvalid, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	doc := newReportDocument(config, report)
	switch format {
	case reportJSON:
		err = writeJSONReport(f, doc)
	case reportYAML:
		err = writeYAMLReport(f, doc)
	case reportXLSX:
		err = writeXLSXReport(f, doc)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return f.Close()
}

func writeJSONReport(w io.Writer, doc ReportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeYAMLReport(w io.Writer, doc ReportDocument) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func writeXLSXReport(w io.Writer, doc ReportDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return err
	}

	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return err
		}
	}

	for r, row := range doc.Results {
		values := []interface{}{
			row.Field, row.QualifiedName, row.DisplayPath, row.Different,
			row.Entries1, row.Entries2, row.Mean1, row.Mean2, row.Artifact,
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}
