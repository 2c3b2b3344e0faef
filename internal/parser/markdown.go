package parser

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"io"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// MarkdownParser renders Markdown pages with goldmark and parses the result
// as a standalone HTML document. Raw HTML blocks are kept so hand-written
// pages can carry the same navigation markup Doxygen emits.
type MarkdownParser struct{}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*html.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := markdown.Parser().Parse(text.NewReader(src))

	title := firstHeading(doc, src)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	var body bytes.Buffer
	if err := markdown.Renderer().Render(&body, src, doc); err != nil {
		return nil, fmt.Errorf("render markdown %s: %w", filename, err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(stdhtml.EscapeString(title))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")

	tree, err := html.Parse(&page)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markdown %s: %w", filename, err)
	}
	return tree, nil
}

// firstHeading returns the text of the first level-1 heading.
func firstHeading(doc ast.Node, src []byte) string {
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			return strings.TrimSpace(string(h.Text(src)))
		}
	}
	return ""
}
