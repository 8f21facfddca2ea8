// Package comparison decides whether the values of one field differ between
// two tables and renders the evidence.
//
// Two distributions are reported as different when their entry counts or
// their means differ. Means are compared with exact float equality, so a
// single ULP of drift is reported.
package comparison

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/airframesio/table-compare/cmd/histogram"
	"github.com/airframesio/table-compare/cmd/render"
	"github.com/airframesio/table-compare/cmd/schemawalk"
	"github.com/airframesio/table-compare/cmd/tablefile"
)

// DiffPrefix marks the artifact of a differing field.
const DiffPrefix = "DIFF_"

// Renderer persists the plot of one comparison.
type Renderer interface {
	Render(path, format string, in render.Input) error
}

// Result is the outcome of comparing one task.
type Result struct {
	Task        schemawalk.Task
	IsDifferent bool
	Entries1    int
	Entries2    int
	Mean1       float64
	Mean2       float64
	// Artifact is the path of the written plot.
	Artifact string
}

// Config configures a Comparator.
type Config struct {
	// Bins is the histogram bin count. Zero means histogram.DefaultBins.
	Bins int
	// Format is the plot format passed to the renderer.
	Format string
	// Label1 and Label2 name the two tables in plot legends.
	Label1 string
	Label2 string
}

// Comparator compares one task at a time.
type Comparator struct {
	cfg      Config
	renderer Renderer
	logger   *slog.Logger
}

// New creates a Comparator
func New(cfg Config, renderer Renderer, logger *slog.Logger) *Comparator {
	if cfg.Bins == 0 {
		cfg.Bins = histogram.DefaultBins
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Comparator{cfg: cfg, renderer: renderer, logger: logger}
}

// Compare extracts the task's values from both tables, bins them over a
// shared range and renders the pair to outputPath, or to outputPath with a
// DIFF_ prefixed base name when the distributions differ. The difference
// rule is only evaluated when warnOnDiff is set.
//
// A nil result with a nil error means neither table holds any value for the
// task; nothing is rendered in that case.
func (c *Comparator) Compare(ctx context.Context, t1, t2 tablefile.Table, task schemawalk.Task, outputPath string, warnOnDiff bool) (*Result, error) {
	name := task.QualifiedName

	values1, err := t1.Values(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from the first table: %w", name, err)
	}
	values2, err := t2.Values(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from the second table: %w", name, err)
	}

	pair, err := histogram.NewPair(values1, values2, c.cfg.Bins)
	if err != nil {
		return nil, fmt.Errorf("failed to build histograms for %s: %w", name, err)
	}
	if pair.Empty() {
		c.logger.Debug(fmt.Sprintf("%s has no entries in either table", name))
		return nil, nil
	}

	result := &Result{
		Task:     task,
		Entries1: pair.H1.Entries,
		Entries2: pair.H2.Entries,
		Mean1:    pair.H1.Mean,
		Mean2:    pair.H2.Mean,
		Artifact: outputPath,
	}

	if warnOnDiff {
		if result.Entries1 != result.Entries2 {
			result.IsDifferent = true
			c.logger.Warn(fmt.Sprintf("%s has differing entries %d vs %d", name, result.Entries1, result.Entries2))
		}
		if result.Mean1 != result.Mean2 {
			result.IsDifferent = true
			c.logger.Warn(fmt.Sprintf("%s has differing means %v vs %v", name, result.Mean1, result.Mean2))
		}
	}

	if result.IsDifferent {
		result.Artifact = DiffPath(outputPath)
	}

	if err := c.renderer.Render(result.Artifact, c.cfg.Format, render.Input{
		Title:  name,
		Label1: c.cfg.Label1,
		Label2: c.cfg.Label2,
		Pair:   pair,
	}); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", result.Artifact, err)
	}

	return result, nil
}

// DiffPath prefixes the base name of path with DIFF_.
func DiffPath(path string) string {
	dir, base := filepath.Split(path)
	return dir + DiffPrefix + base
}
