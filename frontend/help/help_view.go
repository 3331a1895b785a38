package help

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"packtrack/frontend/shared/html"
	"packtrack/infrastructure/config"
	"packtrack/infrastructure/scansession"
)

type WorkflowHelp struct {
	Name        string
	Description string
	IntervalMS  int64
}

type PageData struct {
	Area      string
	FlushMS   int64
	Workflows []WorkflowHelp
}

func BuildPageData(scanCfg config.Scan) PageData {
	describe := []struct {
		w    scansession.Workflow
		text string
	}{
		{scansession.WorkflowAssign, "Scan printed labels, pick a packer and commit to assign them."},
		{scansession.WorkflowQualify, "Individual mode qualifies each scan. Mass mode builds a list to commit."},
		{scansession.WorkflowDeliver, "Only qualified packages can be delivered."},
		{scansession.WorkflowLookup, "Shows the status and packer of a code without changing it."},
	}
	data := PageData{Area: scanCfg.Area, FlushMS: scanCfg.FlushDelay().Milliseconds()}
	for _, d := range describe {
		data.Workflows = append(data.Workflows, WorkflowHelp{
			Name:        string(d.w),
			Description: d.text,
			IntervalMS:  scanCfg.Interval(string(d.w)).Milliseconds(),
		})
	}
	return data
}

func HelpPage(data PageData) templ.Component {
	return html.Layout("Help", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Scanning</h1><table class="workflows"><tr><th>Workflow</th><th>Min interval</th><th></th></tr>`)
		for _, wf := range data.Workflows {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%d ms</td><td>%s</td></tr>`,
				templ.EscapeString(wf.Name), wf.IntervalMS, templ.EscapeString(wf.Description))
		}
		b.WriteString(`</table>`)
		fmt.Fprintf(&b, `<p>Physical scanners end a code with Enter or after %d ms without keystrokes.</p>`, data.FlushMS)
		fmt.Fprintf(&b, `<p>Assignment exports are written for area <strong>%s</strong>.</p>`, templ.EscapeString(data.Area))
		_, err := io.WriteString(w, b.String())
		return err
	}))
}
