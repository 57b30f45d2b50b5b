package main

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"migrate", "run", "trigger", "mcp"} {
		if !slices.Contains(names, want) {
			t.Fatalf("expected %q command, got %v", want, names)
		}
	}
}

func TestTriggerFlagsHaveDefaults(t *testing.T) {
	cmd := newTriggerCmd()
	timeout := cmd.Flags().Lookup("timeout")
	if timeout == nil || timeout.DefValue != "30m0s" {
		t.Fatalf("unexpected timeout flag: %+v", timeout)
	}
	if cmd.Flags().Lookup("subject") == nil {
		t.Fatalf("expected subject flag")
	}
}

func TestReportResult(t *testing.T) {
	var out bytes.Buffer
	if err := reportResult(&out, domain.RunResult{OK: true, Stats: &domain.RunStats{FilesSeen: 2}}); err != nil {
		t.Fatalf("report ok result: %v", err)
	}
	if !strings.Contains(out.String(), `"filesSeen": 2`) {
		t.Fatalf("unexpected output: %s", out.String())
	}

	out.Reset()
	err := reportResult(&out, domain.RunResult{OK: false, Error: "scan tree: boom"})
	if err == nil || !strings.Contains(err.Error(), "scan tree: boom") {
		t.Fatalf("expected failure error, got %v", err)
	}
	if !strings.Contains(out.String(), `"ok": false`) {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
