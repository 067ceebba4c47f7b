// Package textextract turns uploaded knowledge base files into plain text
// and splits it into overlapping chunks for embedding.
package textextract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupportedType is returned for content types that can be stored but
// not indexed
var ErrUnsupportedType = errors.New("text extraction is not supported for this file type")

// Content types accepted by Extract
const (
	TypePlain    = "text/plain"
	TypeMarkdown = "text/markdown"
	TypeCSV      = "text/csv"
	TypeJSON     = "application/json"
)

// Supported reports whether Extract can handle contentType
func Supported(contentType string) bool {
	switch normalize(contentType) {
	case TypePlain, TypeMarkdown, TypeCSV, TypeJSON:
		return true
	}
	return false
}

// Extract returns the plain text of a document
func Extract(contentType string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid UTF-8")
	}

	switch normalize(contentType) {
	case TypePlain, TypeCSV:
		return strings.TrimSpace(string(data)), nil
	case TypeMarkdown:
		return Markdown(data), nil
	case TypeJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return "", fmt.Errorf("invalid JSON document: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
}

// Markdown renders markdown source to plain text, keeping one blank line
// between blocks and the contents of code blocks
func Markdown(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Kind() != ast.KindListItem {
				buf.WriteString("\n\n")
			} else if n.Kind() == ast.KindListItem {
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.HardLineBreak() {
				buf.WriteString("\n")
			} else if node.SoftLineBreak() {
				buf.WriteString(" ")
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			buf.Write(node.URL(source))
		}
		return ast.WalkContinue, nil
	})

	return collapseBlankLines(buf.String())
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func normalize(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
