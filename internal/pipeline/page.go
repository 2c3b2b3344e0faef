package pipeline

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/doxynav/internal/layout"
	"github.com/dgallion1/doxynav/internal/parser"
)

// Output is an adjusted, serialized page.
type Output struct {
	Name   string
	Title  string
	HTML   []byte
	ETag   string
	Report layout.Report
}

// AdjustPage parses a source page, runs the adjuster against it and renders
// the result. name selects the parser and is mapped to the output page name.
func AdjustPage(adj *layout.Adjuster, r *parser.Renderer, name string, data []byte, width int) (*Output, error) {
	p, err := parser.ForFile(name)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), name)
	if err != nil {
		return nil, err
	}

	report, err := adj.Adjust(doc, layout.FixedWidth(width))
	if err != nil {
		return nil, fmt.Errorf("adjust %s: %w", name, err)
	}

	out, err := r.Bytes(doc)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	return &Output{
		Name:   parser.OutputName(name),
		Title:  parser.Title(doc),
		HTML:   out,
		ETag:   `"` + ContentHashHex(out)[:16] + `"`,
		Report: report,
	}, nil
}
