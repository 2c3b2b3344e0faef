package parser

import (
	"fmt"
	"io"

	"github.com/oxtoacart/bpool"
	"golang.org/x/net/html"
)

// Renderer serializes document trees through a pool of scratch buffers so a
// failed render never leaves a partial page on the writer.
type Renderer struct {
	bufpool *bpool.BufferPool
}

// NewRenderer creates a Renderer holding up to size idle buffers.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = 64
	}
	return &Renderer{bufpool: bpool.NewBufferPool(size)}
}

// Render writes doc to w.
func (r *Renderer) Render(w io.Writer, doc *html.Node) error {
	tempbuf := r.bufpool.Get()
	defer r.bufpool.Put(tempbuf)
	if err := html.Render(tempbuf, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := tempbuf.WriteTo(w)
	return err
}

// Bytes returns doc serialized into a fresh slice.
func (r *Renderer) Bytes(doc *html.Node) ([]byte, error) {
	tempbuf := r.bufpool.Get()
	defer r.bufpool.Put(tempbuf)
	if err := html.Render(tempbuf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	out := make([]byte, tempbuf.Len())
	copy(out, tempbuf.Bytes())
	return out, nil
}
