package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scancode"
)

func TestNormalizeRows(t *testing.T) {
	rows, err := normalizeRows("ID41234567890TLM", scancode.ChannelPhysical, scancode.FormatUnknown)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	got := map[string]string{}
	for _, r := range rows {
		got[r[0]] = r[1]
	}
	if got["code"] != "41234567890" || got["tier"] != "high" || got["confirm"] != "false" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	rows, err = normalizeRows("ABC123", scancode.ChannelCamera, scancode.FormatQR)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rows[len(rows)-1][1] != "Confirm code: The following code was detected. Add it to the list?" {
		t.Fatalf("expected confirmation prompt, got %v", rows)
	}

	if _, err := normalizeRows("  ", scancode.ChannelPhysical, scancode.FormatUnknown); err == nil {
		t.Fatalf("expected error for empty code")
	}
}

func TestRenderTableWritesCSVWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	out := renderTable(&buf, []string{"Code", "Result"}, [][]string{{"41234567890", "updated"}}, nil)
	if !strings.Contains(out, "Code,Result") || !strings.Contains(out, "41234567890,updated") || strings.Contains(out, "╭") {
		t.Fatalf("unexpected csv table: %q", out)
	}
}

func TestBatchRowsListsFailuresAfterUpdates(t *testing.T) {
	rows := batchRows(lifecycle.BatchResult{
		Updated: []string{"41234567890"},
		Failed: []*lifecycle.TransitionError{
			{Code: "41234567899", From: lifecycle.StatusDelivered, Attempted: lifecycle.VerbQualify},
		},
	})
	if len(rows) != 2 || rows[0][1] != "updated" || rows[1][1] != "failed" || rows[1][0] != "41234567899" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if pluralize(1, "code was", "codes were") != "1 code was" || pluralize(3, "code was", "codes were") != "3 codes were" {
		t.Fatalf("unexpected pluralize output")
	}
}

func TestStatusCommandAgainstSQLite(t *testing.T) {
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "packctl.db"))
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("MIGRATIONS_DIR", "")
	t.Setenv("PACKTRACK_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"status", "41234567890"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "41234567890,unassigned") {
		t.Fatalf("unexpected status output: %q", out.String())
	}
}
