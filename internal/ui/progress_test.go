package ui

import (
	"strings"
	"testing"

	"symtrace/internal/driver"
)

func TestProgressModelAppliesEvents(t *testing.T) {
	events := make(chan driver.Event)
	m := NewProgressModel("validating", []string{"a.symt", "b.symt"}, events).(*progressModel)

	m.Update(eventMsg(driver.Event{File: "a.symt", Status: driver.StatusValidating}))
	m.Update(eventMsg(driver.Event{File: "b.symt", Status: driver.StatusPassed, Events: 12, Cached: true}))
	m.Update(eventMsg(driver.Event{File: "unknown.symt", Status: driver.StatusFailed}))

	if m.items[0].status != driver.StatusValidating {
		t.Errorf("a status = %s", m.items[0].status)
	}
	if m.items[1].events != 12 || !m.items[1].cached {
		t.Errorf("b = %+v", m.items[1])
	}
	if m.finished() != 1 {
		t.Errorf("finished = %d", m.finished())
	}

	view := m.View()
	for _, want := range []string{"validating [1/2]", "a.symt", "12 events, cached"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m.Update(doneMsg{})
	if !m.done || !strings.Contains(m.View(), "done: validating") {
		t.Errorf("done view:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 6, "abc..."},
		{"abcdef", 2, "ab"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
