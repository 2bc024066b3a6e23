package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"wasmloader/internal/buildpipeline"
)

func apply(m *progressModel, evs ...buildpipeline.Event) {
	for _, ev := range evs {
		m.applyEvent(ev)
	}
}

func TestProgressTracksModules(t *testing.T) {
	m := NewProgressModel("building", []string{"app", "worker"}, nil).(*progressModel)
	apply(m,
		buildpipeline.Event{Module: "app", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusWorking},
		buildpipeline.Event{Module: "worker", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusError, Err: errors.New("exit status 101"), Elapsed: 1500 * time.Millisecond},
	)
	if m.items[0].status != "compiling" || m.items[1].status != "error" {
		t.Fatalf("statuses = %q, %q", m.items[0].status, m.items[1].status)
	}

	apply(m,
		buildpipeline.Event{Module: "app", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusDone},
		buildpipeline.Event{Module: "app", Stage: buildpipeline.StageReduce, Status: buildpipeline.StatusSkipped},
		buildpipeline.Event{Module: "app", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone},
		buildpipeline.Event{Module: "worker", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusWorking},
	)
	if m.items[0].status != "done" || m.items[1].status != "error" {
		t.Fatalf("statuses = %q, %q", m.items[0].status, m.items[1].status)
	}
	if m.items[1].elapsed != 1500*time.Millisecond || m.items[1].failure != "compile: exit status 101" {
		t.Fatalf("worker = %+v", m.items[1])
	}
	if m.percent() != 1.0 {
		t.Fatalf("percent = %v", m.percent())
	}

	view := m.View()
	for _, want := range []string{"building", "app", "worker", "done", "error", "1.5s", "exit status 101"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressUnknownModuleUpdatesHeader(t *testing.T) {
	m := NewProgressModel("building", []string{"app"}, nil).(*progressModel)
	apply(m, buildpipeline.Event{Module: "other", Stage: buildpipeline.StageBindgen, Status: buildpipeline.StatusWorking})
	if m.stageLabel != "binding" || m.items[0].status != "queued" {
		t.Fatalf("stageLabel = %q, item = %+v", m.stageLabel, m.items[0])
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"abcdef", 0, "abcdef"},
	}
	if got := truncate("abcdefghijklmnop", 10); !strings.HasSuffix(got, "...") || len(got) > 10 {
		t.Errorf("long value = %q", got)
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}
