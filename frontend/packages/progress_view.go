package packages

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"packtrack/frontend/shared/html"
	"packtrack/infrastructure/lifecycle"
)

func ProgressPage(p lifecycle.Progress) templ.Component {
	return html.Layout("Progress", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<table class="progress"><tr><th>Packer</th><th>Assigned</th><th>Qualified</th><th>Reported</th><th>Delivered</th><th>Total</th></tr>`)
		for _, row := range p.ByPacker {
			progressRow(&b, "", row)
		}
		progressRow(&b, "totals", p.Totals)
		b.WriteString(`</table>`)
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func progressRow(b *strings.Builder, class string, row lifecycle.PackerProgress) {
	fmt.Fprintf(b, `<tr class="%s"><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
		class, templ.EscapeString(row.Packer), row.Assigned, row.Qualified, row.Reported, row.Delivered, row.Total)
}
