package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestPrintSchema(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "tree.jsonl", `{"x": 1.5, "hits": {"e": 2, "tags": {}}}`+"\n")

	table := openGenerated(t, fs, "tree.jsonl")

	var out bytes.Buffer
	printSchema(&out, "tree.jsonl", table)
	got := out.String()

	for _, want := range []string{"AnalysisTree in tree.jsonl", "2 fields", "x", "hits.e", "hits.tags"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "(skipped)"); n != 1 {
		t.Errorf("expected the map leaf to be marked once, got %d:\n%s", n, got)
	}
}
