// Package diffrender renders line diffs of field values as HTML blocks.
package diffrender

import (
	"html"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Renderer renders the difference between two line lists under a label.
type Renderer interface {
	Render(label string, from, to []string) string
}

// HTML renders a side-by-side table with one row per changed or unchanged
// line. Deleted lines are wrapped in <del>, inserted lines in <ins>.
type HTML struct{}

// NewHTML creates an HTML renderer.
func NewHTML() *HTML {
	return &HTML{}
}

// Render implements Renderer.
func (*HTML) Render(label string, from, to []string) string {
	var b strings.Builder
	b.WriteString(`<table class="diff">`)
	b.WriteString(`<thead><tr><th colspan="2">`)
	b.WriteString(html.EscapeString(label))
	b.WriteString(`</th></tr></thead><tbody>`)

	m := difflib.NewMatcher(from, to)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				line := html.EscapeString(from[i])
				writeRow(&b, "unchanged", line, line)
			}
		case 'r':
			writeReplace(&b, from[op.I1:op.I2], to[op.J1:op.J2])
		case 'd':
			for _, l := range from[op.I1:op.I2] {
				writeRow(&b, "deleted", del(l), "")
			}
		case 'i':
			for _, l := range to[op.J1:op.J2] {
				writeRow(&b, "inserted", "", ins(l))
			}
		}
	}

	b.WriteString(`</tbody></table>`)
	return b.String()
}

func writeReplace(b *strings.Builder, from, to []string) {
	n := max(len(from), len(to))
	for i := range n {
		var left, right string
		if i < len(from) {
			left = del(from[i])
		}
		if i < len(to) {
			right = ins(to[i])
		}
		writeRow(b, "changed", left, right)
	}
}

func writeRow(b *strings.Builder, class, left, right string) {
	b.WriteString(`<tr class="`)
	b.WriteString(class)
	b.WriteString(`"><td>`)
	b.WriteString(left)
	b.WriteString(`</td><td>`)
	b.WriteString(right)
	b.WriteString(`</td></tr>`)
}

func del(s string) string {
	return "<del>" + html.EscapeString(s) + "</del>"
}

func ins(s string) string {
	return "<ins>" + html.EscapeString(s) + "</ins>"
}

// Verify interface compliance.
var _ Renderer = (*HTML)(nil)
