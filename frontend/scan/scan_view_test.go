package scan

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"packtrack/infrastructure/confirm"
	"packtrack/infrastructure/scansession"
)

func TestSessionPageEscapesAndCounts(t *testing.T) {
	snap := scansession.Snapshot{
		ID:         "abc",
		Workflow:   scansession.WorkflowAssign,
		Operator:   "Luis <b>Perez</b>",
		Area:       "QUALITY CHECK",
		State:      "listening",
		MELCount:   2,
		OtherCount: 1,
		Pending: []scansession.Item{
			{Code: "41234567890", Product: "Mug"},
		},
		Confirmation: &confirm.Request{Title: "Warning", Message: "This is not a MEL code. Add it anyway?", Code: "ABC123"},
		Recent:       []scansession.Outcome{{Kind: scansession.OutcomeAccepted, Message: "Added code 41234567890."}},
	}
	var buf bytes.Buffer
	if err := SessionPage(snap).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	page := buf.String()
	for _, want := range []string{"MEL: 2 | Other: 1", "41234567890", "Luis &lt;b&gt;Perez&lt;/b&gt;", "ABC123", "Added code 41234567890."} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q:\n%s", want, page)
		}
	}
	if strings.Contains(page, "<b>Perez</b>") {
		t.Fatalf("operator name must be escaped")
	}
}
