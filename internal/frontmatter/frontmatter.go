// Package frontmatter splits YAML front matter from markdown modules.
package frontmatter

import (
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// front matter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Document is a markdown source with its front matter decoded.
type Document struct {
	Fields map[string]any
	Body   string
	Had    bool
}

// Split separates YAML front matter (`---` delimited) from the markdown body.
//
// If the document does not start with a delimiter, had is false and body is the full input.
func Split(content string) (frontmatter, body string, had bool, err error) {
	nl := detectNewline(content)
	open := "---" + nl
	if !strings.HasPrefix(content, open) {
		return "", content, false, nil
	}

	start := len(open)
	if strings.HasPrefix(content[start:], open) {
		return "", content[start+len(open):], true, nil
	}

	closeSeq := nl + "---" + nl
	idx := strings.Index(content[start:], closeSeq)
	if idx < 0 {
		// A closing delimiter on the final line without a trailing newline.
		if strings.HasSuffix(content, nl+"---") {
			return content[start : len(content)-len("---")], "", true, nil
		}
		return "", "", false, ErrMissingClosingDelimiter
	}
	return content[start : start+idx+len(nl)], content[start+idx+len(closeSeq):], true, nil
}

// Parse splits content and decodes the front matter.
func Parse(content string) (Document, error) {
	fm, body, had, err := Split(content)
	if err != nil {
		return Document{}, err
	}
	fields, err := ParseYAML(fm)
	if err != nil {
		return Document{}, err
	}
	return Document{Fields: fields, Body: body, Had: had}, nil
}

// ParseYAML parses raw YAML front matter (without --- delimiters) into a map.
func ParseYAML(frontmatter string) (map[string]any, error) {
	if strings.TrimSpace(frontmatter) == "" {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(frontmatter), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func detectNewline(content string) string {
	if i := strings.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
