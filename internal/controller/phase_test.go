package controller

import (
	"fmt"
	"testing"

	"toolchain-bench/internal/models"
	"toolchain-bench/internal/profiler"
)

func TestPhase_String(t *testing.T) {
	want := []string{"PREPARE_BUILD", "BUILD", "PREPARE_RUN", "RUN", "COLLECT"}
	for i, name := range want {
		if got := Phase(i).String(); got != name {
			t.Fatalf("Phase(%d) = %q, want %q", i, got, name)
		}
		parsed, err := ParsePhase(name)
		if err != nil || parsed != Phase(i) {
			t.Fatalf("ParsePhase(%q) = %v, %v", name, parsed, err)
		}
	}
	if got := Phase(42).String(); got != "Phase(42)" {
		t.Fatalf("unexpected name for unknown phase: %q", got)
	}
}

func TestParsePolicies_Defaults(t *testing.T) {
	p, err := ParsePolicies(nil)
	if err != nil {
		t.Fatalf("ParsePolicies: %v", err)
	}
	if p.For(PhaseBuild) != PolicyAbort {
		t.Fatalf("BUILD should abort by default")
	}
	for _, phase := range []Phase{PhasePrepareBuild, PhasePrepareRun, PhaseRun} {
		if p.For(phase) != PolicyContinue {
			t.Fatalf("%s should continue by default", phase)
		}
	}
}

func TestParsePolicies_Overrides(t *testing.T) {
	p, err := ParsePolicies(map[string]string{"build": "continue", "RUN": "Abort"})
	if err != nil {
		t.Fatalf("ParsePolicies: %v", err)
	}
	if p.For(PhaseBuild) != PolicyContinue || p.For(PhaseRun) != PolicyAbort {
		t.Fatalf("overrides not applied: %v", p)
	}

	for _, bad := range []map[string]string{
		{"collect": "abort"},
		{"link": "abort"},
		{"run": "retry"},
	} {
		if _, err := ParsePolicies(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"ModelNotFoundError":   fmt.Errorf("resolve: %w", &models.ModelNotFoundError{Kind: models.KindMachine, Name: "x"}),
		"ValidationError":      &models.ValidationError{Compiler: "gcc", Flag: "-Rpass"},
		"ToolUnavailableError": &profiler.ToolUnavailableError{Tool: "perf"},
		"PermissionError":      &profiler.PermissionError{Level: 3},
		"PhaseError":           &PhaseError{Phase: PhaseBuild, Args: []string{"make"}, ExitCode: 2},
		"Error":                fmt.Errorf("something else"),
	}
	for want, err := range cases {
		if got := Classify(err); got != want {
			t.Fatalf("Classify(%v) = %q, want %q", err, got, want)
		}
	}
	if Classify(nil) != "" {
		t.Fatalf("nil error should have no class")
	}
}
