package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/doxynav/internal/parser"
	"github.com/dgallion1/doxynav/internal/pipeline"
	"github.com/dgraph-io/ristretto"
	"github.com/go-chi/chi/v5"
)

// NewPageCache creates the cache for adjusted site pages, bounded by the
// total size of cached HTML.
func NewPageCache(maxBytes int64) (*ristretto.Cache, error) {
	return ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
}

// handleSite serves SITE_DIR. Pages are adjusted for the requesting
// viewport; everything else is served unchanged.
func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	rel := path.Clean("/" + chi.URLParam(r, "*"))
	if strings.HasSuffix(r.URL.Path, "/") {
		rel = path.Join(rel, "index.html")
	}
	full := filepath.Join(s.cfg.SiteDir, filepath.FromSlash(rel))

	if !parser.IsSupportedExtension(full) {
		http.ServeFile(w, r, full)
		return
	}

	width, err := viewportWidth(r, s.cfg.DefaultViewportWidth)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	adj, err := s.orchestrator.Adjusters().Get(r.URL.Query().Get("preset"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.log.Error("read site page", "path", rel, "error", err)
		jsonError(w, "failed to read page", http.StatusInternalServerError)
		return
	}

	// Output only depends on which side of the threshold the width falls.
	narrow := width < adj.Preset().NarrowWidth
	key := fmt.Sprintf("%s|%s|%t|%s", rel, adj.Preset().Name, narrow, pipeline.ContentHashHex(data)[:16])

	advertiseViewportHints(w)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			w.Header().Set("X-Cache", "hit")
			s.writePage(w, r, v.(*pipeline.Output), adj.Preset().Name)
			return
		}
	}

	out, err := pipeline.AdjustPage(adj, s.orchestrator.Renderer(), filepath.Base(full), data, width)
	if err != nil {
		s.log.Error("adjust site page", "path", rel, "error", err)
		jsonError(w, "failed to adjust page", http.StatusInternalServerError)
		return
	}
	if s.cache != nil {
		s.cache.Set(key, out, int64(len(out.HTML)))
	}
	w.Header().Set("X-Cache", "miss")
	s.writePage(w, r, out, adj.Preset().Name)
}
