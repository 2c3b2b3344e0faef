package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/doxynav/internal/parser"
	"github.com/dgallion1/doxynav/internal/pipeline"
)

const (
	headerSteps  = "X-Doxynav-Steps"
	headerPreset = "X-Doxynav-Preset"
)

// handleAdjust adjusts a single page and returns it. The page is either the
// multipart "file" field or the raw request body.
func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

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

	filename, data, status, err := s.readPage(r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	out, err := pipeline.AdjustPage(adj, s.orchestrator.Renderer(), filename, data, width)
	if err != nil {
		jsonError(w, "adjust failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writePage(w, r, out, adj.Preset().Name)
}

func (s *Server) readPage(r *http.Request) (string, []byte, int, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", nil, readStatus(err), fmt.Errorf("invalid multipart form: %w", err)
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
		}
		defer file.Close()
		return s.readUpload(file, sanitizeFilename(header.Filename))
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "page.html"
	}
	return s.readUpload(r.Body, sanitizeFilename(filename))
}

func (s *Server) readUpload(src io.Reader, filename string) (string, []byte, int, error) {
	if !parser.IsSupportedExtension(filename) {
		return "", nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := io.ReadAll(io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", nil, readStatus(err), fmt.Errorf("failed to read page: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", nil, http.StatusRequestEntityTooLarge, fmt.Errorf("page exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return filename, data, http.StatusOK, nil
}

// readStatus maps a body read error to 413 when the request hit its size
// limit and 400 otherwise.
func readStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// writePage sends an adjusted page, honoring If-None-Match.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, out *pipeline.Output, preset string) {
	w.Header().Set("ETag", out.ETag)
	w.Header().Set(headerPreset, preset)
	w.Header().Set(headerSteps, out.Report.Summary())
	if match := r.Header.Get("If-None-Match"); match != "" && match == out.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(out.HTML)))
	w.Write(out.HTML)
}

// handleBatchAdjust queues every multipart "files" entry as one job.
func (s *Server) handleBatchAdjust(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), readStatus(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

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

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(adj.Preset().Name, width)
	var results []map[string]any
	pages := make(map[string]string)
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		// Outputs are keyed by page name, so a.md and a.html would collide.
		if prev, dup := pages[parser.OutputName(filename)]; dup {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("output page %s already produced by %s", parser.OutputName(filename), prev),
			})
			continue
		}
		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}
		_, data, _, err := s.readUpload(f, filename)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}
		job.AddSource(filename, data)
		pages[parser.OutputName(filename)] = filename
		results = append(results, map[string]any{
			"filename": filename,
			"page":     parser.OutputName(filename),
		})
	}

	if len(job.Sources()) == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": "no usable files",
			"files": results,
		})
		return
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"preset":   job.Preset,
		"width":    job.Width,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
		"files":    results,
	})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
