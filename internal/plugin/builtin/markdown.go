package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"git.home.luguber.info/inful/tails/internal/frontmatter"
	"git.home.luguber.info/inful/tails/internal/plugin"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Markdown renders markdown to HTML and exports it with the document's front matter.
func Markdown() plugin.Plugin {
	return plugin.Plugin{
		Name:          "markdown",
		Test:          ext(`md|markdown`),
		AcceptsReload: true,
		Transform: func(_ context.Context, src plugin.Source, _ plugin.Options) (string, error) {
			doc, err := frontmatter.Parse(src.Content)
			if err != nil {
				return "", err
			}
			var html bytes.Buffer
			if err := md.Convert([]byte(doc.Body), &html); err != nil {
				return "", fmt.Errorf("render markdown: %w", err)
			}
			fm, err := json.Marshal(doc.Fields)
			if err != nil {
				return "", fmt.Errorf("encode front matter: %w", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "export const frontmatter = %s;\n", fm)
			fmt.Fprintf(&b, "export const html = %s;\n", jsString(html.String()))
			b.WriteString("export default html;\n")
			return b.String(), nil
		},
		Resolve: appendJS,
	}
}
