// Package formatter turns user submitted rich text into the plain text that
// is sent for classification.
package formatter

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Cleanup strips markup, drops script and style bodies, decodes entities
// and collapses whitespace. The result is empty when nothing readable is left.
func Cleanup(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))

	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail, either way keep what was read.
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Script || tok.DataAtom == atom.Style {
				skip++
			}
			if blockLevel(tok.DataAtom) {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			tok := z.Token()
			if (tok.DataAtom == atom.Script || tok.DataAtom == atom.Style) && skip > 0 {
				skip--
			}
			if blockLevel(tok.DataAtom) {
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func blockLevel(a atom.Atom) bool {
	switch a {
	case atom.Br, atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Tr, atom.Td:
		return true
	}
	return false
}
