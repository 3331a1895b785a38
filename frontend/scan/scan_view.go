package scan

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"packtrack/frontend/shared/html"
	"packtrack/frontend/shared/nav"
	"packtrack/infrastructure/scansession"
)

// SessionPage renders the session list with its counters and recent
// outcomes.
func SessionPage(snap scansession.Snapshot) templ.Component {
	return html.Layout("Scan session "+snap.ID, sessionBody(snap))
}

func sessionBody(snap scansession.Snapshot) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		top := nav.BuildTopNavData(snap)
		var b strings.Builder
		fmt.Fprintf(&b, `<header class="topnav"><span class="encargado">%s</span> <span class="workflow">%s</span>`, esc(top.Encargado), esc(top.Workflow))
		if top.Mode != "" {
			fmt.Fprintf(&b, ` <span class="mode">%s</span>`, esc(top.Mode))
		}
		fmt.Fprintf(&b, ` <span class="area">%s</span></header>`, esc(top.Area))

		fmt.Fprintf(&b, `<section class="status"><span>%s</span>`, esc(snap.State))
		if snap.Channel != "" {
			fmt.Fprintf(&b, ` <span>%s</span>`, esc(string(snap.Channel)))
		}
		fmt.Fprintf(&b, ` <span class="counts">MEL: %d | Other: %d</span></section>`, snap.MELCount, snap.OtherCount)

		if snap.Confirmation != nil {
			fmt.Fprintf(&b, `<dialog open class="confirm"><h2>%s</h2><p>%s</p><p class="code">%s</p></dialog>`,
				esc(snap.Confirmation.Title), esc(snap.Confirmation.Message), esc(snap.Confirmation.Code))
		}

		writeItems(&b, "pending", snap.Pending)
		if len(snap.Assigned) > 0 {
			writeItems(&b, "assigned", snap.Assigned)
		}

		b.WriteString(`<ol class="recent">`)
		for i := len(snap.Recent) - 1; i >= 0; i-- {
			out := snap.Recent[i]
			fmt.Fprintf(&b, `<li class="%s">%s</li>`, esc(string(out.Kind)), esc(out.Message))
		}
		b.WriteString(`</ol>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeItems(b *strings.Builder, class string, items []scansession.Item) {
	fmt.Fprintf(b, `<table class="%s"><thead><tr><th>Code</th><th>Product</th><th>SKU</th><th>Qty</th><th>Packer</th><th>Status</th></tr></thead><tbody>`, class)
	for _, it := range items {
		rowClass := ""
		if it.Reported {
			rowClass = "reported"
		}
		fmt.Fprintf(b, `<tr class="%s"><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%s</td></tr>`,
			rowClass, esc(it.Code), esc(it.Product), esc(it.SKU), it.Quantity, esc(it.AssignedTo), esc(string(it.Status)))
	}
	b.WriteString(`</tbody></table>`)
}

func esc(s string) string { return templ.EscapeString(s) }
