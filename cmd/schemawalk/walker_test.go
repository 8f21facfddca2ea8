package schemawalk

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/airframesio/table-compare/cmd/tablefile"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	fields []tablefile.Field
}

func (t *fakeTable) Name() string { return "AnalysisTree" }

func (t *fakeTable) Fields() []tablefile.Field { return t.fields }

func (t *fakeTable) Field(name string) (tablefile.Field, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return tablefile.Field{}, false
}

func (t *fakeTable) Values(context.Context, string) ([]float64, error) { return nil, nil }

func scalar(name string) tablefile.Field {
	return tablefile.Field{Name: name, Path: name, TypeName: "double"}
}

func composite(name string, leaves ...tablefile.Field) tablefile.Field {
	for i := range leaves {
		leaves[i].Path = name + "." + leaves[i].Path
	}
	return tablefile.Field{Name: name, Path: name, TypeName: "group", Leaves: leaves}
}

func leaf(name, typeName string) tablefile.Field {
	return tablefile.Field{Name: name[strings.LastIndex(name, ".")+1:], Path: name, TypeName: typeName}
}

func newTestWalker(verbose bool) (*Walker, afero.Fs, *bytes.Buffer) {
	fs := afero.NewMemMapFs()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return New(fs, "out", logger, verbose), fs, &logs
}

func TestEnumerateScalars(t *testing.T) {
	w, fs, logs := newTestWalker(false)
	t1 := &fakeTable{fields: []tablefile.Field{scalar("x"), scalar("y"), scalar("z")}}
	t2 := &fakeTable{fields: []tablefile.Field{scalar("z"), scalar("x")}}

	tasks, err := w.Enumerate(t1, t2)
	require.NoError(t, err)
	assert.Equal(t, []Task{
		{QualifiedName: "x", DisplayPath: "x", Field: "x"},
		{QualifiedName: "z", DisplayPath: "z", Field: "z"},
	}, tasks)

	assert.Equal(t, 1, strings.Count(logs.String(), "Tree2 doesn't have field y"))

	for dir, want := range map[string]bool{"out/x": true, "out/z": true, "out/y": false} {
		exists, err := afero.DirExists(fs, dir)
		require.NoError(t, err)
		assert.Equal(t, want, exists, dir)
	}
}

func TestEnumerateScalarKeepsName(t *testing.T) {
	w, _, _ := newTestWalker(false)
	t1 := &fakeTable{fields: []tablefile.Field{scalar("hits.e"), scalar("a/b")}}

	tasks, err := w.Enumerate(t1, t1)
	require.NoError(t, err)
	assert.Equal(t, []Task{
		{QualifiedName: "hits.e", DisplayPath: "hits.e", Field: "hits.e"},
		{QualifiedName: "a/b", DisplayPath: "a_b", Field: "a/b"},
	}, tasks)
}

func TestEnumerateComposite(t *testing.T) {
	w, fs, _ := newTestWalker(false)
	hits := composite("hits",
		leaf("e", "float"),
		leaf("pos.z", "double"),
		leaf("tags", "map<string,int32>"),
	)
	t1 := &fakeTable{fields: []tablefile.Field{hits}}
	t2 := &fakeTable{fields: []tablefile.Field{composite("hits",
		leaf("e", "float"),
		leaf("pos.z", "double"),
		leaf("tags", "map<string,int32>"),
	)}}

	tasks, err := w.Enumerate(t1, t2)
	require.NoError(t, err)
	assert.Equal(t, []Task{
		{QualifiedName: "hits.e", DisplayPath: "e", Field: "hits"},
		{QualifiedName: "hits.pos.z", DisplayPath: "pos_z", Field: "hits"},
	}, tasks)

	exists, err := afero.DirExists(fs, "out/hits")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnumerateMapOnlyFieldCreatesNoDirectory(t *testing.T) {
	w, fs, logs := newTestWalker(true)
	tags := composite("tags", leaf("tags", "map<string,int32>"))
	tags.Leaves[0].Path = "tags"
	t1 := &fakeTable{fields: []tablefile.Field{tags}}
	t2 := &fakeTable{fields: []tablefile.Field{tags}}

	tasks, err := w.Enumerate(t1, t2)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	exists, err := afero.DirExists(fs, "out/tags")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Contains(t, logs.String(), "FIELD 0 : tags")
	assert.Contains(t, logs.String(), "Skipping tags")
}

func TestEnumeratePositionalMismatch(t *testing.T) {
	w, _, logs := newTestWalker(false)
	t1 := &fakeTable{fields: []tablefile.Field{composite("hits", leaf("a", "double"), leaf("b", "double"))}}
	t2 := &fakeTable{fields: []tablefile.Field{composite("hits", leaf("a", "double"), leaf("c", "double"))}}

	tasks, err := w.Enumerate(t1, t2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "hits.b", tasks[1].QualifiedName)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "hits.b vs hits.c")
}

func TestEnumerateLeafCountMismatch(t *testing.T) {
	w, _, _ := newTestWalker(false)
	t1 := &fakeTable{fields: []tablefile.Field{composite("hits", leaf("a", "double"), leaf("b", "double"))}}
	t2 := &fakeTable{fields: []tablefile.Field{composite("hits", leaf("a", "double"))}}

	_, err := w.Enumerate(t1, t2)
	assert.ErrorIs(t, err, ErrLeafCountMismatch)
}

func TestDisplayPath(t *testing.T) {
	tests := []struct {
		field, qualified, want string
	}{
		{"x", "x", "x"},
		{"hits", "hits.e", "e"},
		{"hits", "hits.pos.z", "pos_z"},
		{"a/b", "a/b", "a_b"},
		{"hits", `hits.dir\name`, "dir_name"},
	}
	for _, tt := range tests {
		t.Run(tt.qualified, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayPath(tt.field, tt.qualified))
		})
	}
}
