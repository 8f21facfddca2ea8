// Package schemawalk pairs the fields of two tables and turns every
// comparable pair into a comparison task.
package schemawalk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/spf13/afero"
)

// ErrLeafCountMismatch is returned when a composite field has a different
// number of leaves in the two tables, which makes positional pairing invalid.
var ErrLeafCountMismatch = errors.New("composite field leaf count mismatch")

// Task is one leaf-level comparison.
type Task struct {
	// QualifiedName is the dotted path used to extract values.
	QualifiedName string
	// DisplayPath is a single file name component derived from QualifiedName.
	DisplayPath string
	// Field is the enclosing top-level field and names the output subdirectory.
	Field string
}

// Walker enumerates comparison tasks and prepares their output directories.
type Walker struct {
	fs        afero.Fs
	outputDir string
	logger    *slog.Logger
	verbose   bool
}

// New creates a Walker writing directories below outputDir on fs
func New(fs afero.Fs, outputDir string, logger *slog.Logger, verbose bool) *Walker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Walker{
		fs:        fs,
		outputDir: outputDir,
		logger:    logger,
		verbose:   verbose,
	}
}

// Enumerate walks the top-level fields of t1 in declaration order and pairs
// them with t2. Fields missing from t2 are skipped with a warning, map leaves
// are skipped silently. The output directory of a field is created once the
// field yields at least one task.
func (w *Walker) Enumerate(t1, t2 tablefile.Table) ([]Task, error) {
	var tasks []Task

	for i, field := range t1.Fields() {
		if w.verbose {
			w.logger.Info(fmt.Sprintf("FIELD %d : %s", i, field.Name))
		}

		other, ok := t2.Field(field.Name)
		if !ok {
			w.logger.Warn(fmt.Sprintf("Tree2 doesn't have field %s", field.Name))
			continue
		}

		fieldTasks, err := w.pair(field, other)
		if err != nil {
			return nil, err
		}
		if len(fieldTasks) == 0 {
			continue
		}

		dir := filepath.Join(w.outputDir, field.Name)
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
		tasks = append(tasks, fieldTasks...)
	}

	return tasks, nil
}

func (w *Walker) pair(field, other tablefile.Field) ([]Task, error) {
	if !field.IsComposite() {
		return []Task{{
			QualifiedName: field.Path,
			DisplayPath:   separatorReplacer.Replace(field.Name),
			Field:         field.Name,
		}}, nil
	}

	if len(field.Leaves) != len(other.Leaves) {
		return nil, fmt.Errorf("%w: %s has %d leaves in the first table and %d in the second",
			ErrLeafCountMismatch, field.Name, len(field.Leaves), len(other.Leaves))
	}

	var tasks []Task
	for j, leaf := range field.Leaves {
		if leaf.IsMap() {
			if w.verbose {
				w.logger.Info(fmt.Sprintf("Skipping %s of unsupported type %s", leaf.Path, leaf.TypeName))
			}
			continue
		}

		if peer := other.Leaves[j]; peer.Name != leaf.Name {
			w.logger.Warn(fmt.Sprintf("Leaf %d of %s differs between tables: %s vs %s, using %s",
				j, field.Name, leaf.Path, peer.Path, leaf.Path))
		}

		tasks = append(tasks, Task{
			QualifiedName: leaf.Path,
			DisplayPath:   DisplayPath(field.Name, leaf.Path),
			Field:         field.Name,
		})
	}
	return tasks, nil
}

var (
	displayReplacer   = strings.NewReplacer(".", "_", "/", "_", `\`, "_")
	separatorReplacer = strings.NewReplacer("/", "_", `\`, "_")
)

// DisplayPath strips the enclosing field name from a qualified name and
// flattens the rest into one file name component.
func DisplayPath(field, qualified string) string {
	return displayReplacer.Replace(strings.TrimPrefix(qualified, field+"."))
}
