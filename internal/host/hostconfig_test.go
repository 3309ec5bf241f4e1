package host

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadPerfEventParanoid(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		content string
		want    int
		wantErr bool
	}{
		{"2\n", 2, false},
		{"-1\n", -1, false},
		{"4", 4, false},
		{"garbage\n", 0, true},
	}

	for i, tc := range cases {
		path := filepath.Join(dir, "paranoid")
		if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
			t.Fatalf("case %d: write: %v", i, err)
		}
		got, err := ReadPerfEventParanoid(path)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("case %d: expected error for %q", i, tc.content)
			}
			continue
		}
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if got != tc.want {
			t.Fatalf("case %d: got %d, want %d", i, got, tc.want)
		}
	}
}

func TestReadPerfEventParanoid_MissingFile(t *testing.T) {
	if _, err := ReadPerfEventParanoid(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestInspect_FillsBasics(t *testing.T) {
	hc, err := Inspect(InspectOptions{})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if hc.Hostname == "" || hc.OSInfo == "" || hc.KernelVersion == "" {
		t.Fatalf("expected system info to be set, got %+v", hc)
	}
	if hc.TotalThreads <= 0 || hc.NumSockets <= 0 {
		t.Fatalf("expected cpu counts to be positive, got %+v", hc)
	}
	if hc.RDT.Supported {
		t.Fatalf("RDT must not be reported without InitRDT")
	}
}
