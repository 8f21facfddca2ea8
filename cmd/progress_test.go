package cmd

import (
	"fmt"
	"strings"
	"testing"

	"github.com/airframesio/table-compare/cmd/comparison"
	"github.com/airframesio/table-compare/cmd/schemawalk"
	tea "github.com/charmbracelet/bubbletea"
)

func sendTaskDone(m progressModel, done, total int, name string, different bool) progressModel {
	task := schemawalk.Task{QualifiedName: name}
	res := &comparison.Result{Task: task, IsDifferent: different, Entries1: 3, Entries2: 2}
	updated, _ := m.Update(taskDoneMsg{done: done, total: total, task: task, result: res})
	return updated.(progressModel)
}

func TestProgressModel(t *testing.T) {
	t.Run("waiting for schemas", func(t *testing.T) {
		m := newProgressModel(nil)
		if !strings.Contains(m.View(), "Reading schemas") {
			t.Errorf("expected waiting message, got:\n%s", m.View())
		}
	})

	t.Run("task progress", func(t *testing.T) {
		m := newProgressModel(nil)
		m = sendTaskDone(m, 1, 4, "x", false)
		m = sendTaskDone(m, 2, 4, "hits.e", true)

		if m.done != 2 || m.total != 4 {
			t.Errorf("expected 2/4, got %d/%d", m.done, m.total)
		}
		if m.differing != 1 {
			t.Errorf("expected 1 differing field, got %d", m.differing)
		}
		view := m.View()
		if !strings.Contains(view, "2/4 fields, 1 differing") {
			t.Errorf("missing counters in view:\n%s", view)
		}
		if !strings.Contains(view, "DIFF hits.e (3 vs 2 entries)") {
			t.Errorf("missing diff message in view:\n%s", view)
		}
	})

	t.Run("message log is bounded", func(t *testing.T) {
		m := newProgressModel(nil)
		for i := 0; i < maxMessages+5; i++ {
			m = sendTaskDone(m, i+1, 20, fmt.Sprintf("f%d", i), true)
		}
		if len(m.messages) != maxMessages {
			t.Errorf("expected %d messages, got %d", maxMessages, len(m.messages))
		}
		if !strings.Contains(m.messages[len(m.messages)-1], fmt.Sprintf("f%d", maxMessages+4)) {
			t.Errorf("expected newest message last, got %q", m.messages[len(m.messages)-1])
		}
	})

	t.Run("quit key cancels the run", func(t *testing.T) {
		cancelled := false
		m := newProgressModel(func() { cancelled = true })

		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		if !cancelled {
			t.Error("expected cancel to be called")
		}
		if cmd != nil {
			t.Error("view should wait for the run to finish before quitting")
		}
		if updated.(progressModel).current != "cancelling..." {
			t.Error("expected cancelling status")
		}
	})

	t.Run("run done quits", func(t *testing.T) {
		m := newProgressModel(nil)
		updated, cmd := m.Update(runDoneMsg{})
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if updated.View() != "" {
			t.Error("finished view should be empty")
		}
	})

	t.Run("window size", func(t *testing.T) {
		m := newProgressModel(nil)
		updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
		if got := updated.(progressModel).progress.Width; got != 90 {
			t.Errorf("expected progress width 90, got %d", got)
		}
	})
}
