package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/doxynav/internal/config"
	"github.com/dgallion1/doxynav/internal/layout"
	"github.com/dgallion1/doxynav/internal/parser"
	"github.com/dgallion1/doxynav/internal/pipeline"
)

const testKey = "secret"

const page = `<html><head><title>RIOT: Main Page</title></head><body>
<nav class="navbar"><ul id="riot-navlist"></ul><div id="riot-searchbox"></div></nav>
<div id="navrow1" class="tabs"><ul class="tablist"><li class="current"><a href="index.html">Main Page</a></li><li><div id="MSearchBox"></div></li></ul></div>
<div id="navrow2" class="tabs2"><ul class="tablist"><li class="current"><a href="modules.html">Modules</a></li></ul></div>
<div id="side-nav"><div id="nav-tree"></div></div>
<div class="contents"><img src="diagram.png"></div>
</body></html>`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	site := t.TempDir()
	if err := os.WriteFile(filepath.Join(site, "index.html"), []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(site, "doxygen.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{
		APIKey:               testKey,
		Preset:               layout.PresetRelocate,
		DefaultViewportWidth: 1024,
		SiteDir:              site,
		WorkerCount:          1,
		MaxQueueSize:         4,
		MaxConcurrentPages:   2,
		MaxUploadBytes:       1 << 20,
		JobTTL:               time.Hour,
		CacheMaxBytes:        1 << 20,
		CORSOrigins:          []string{"*"},
	}
	log := slog.New(slog.DiscardHandler)
	reg, err := layout.NewRegistry(layout.Relocate(), log)
	if err != nil {
		t.Fatal(err)
	}
	orch := pipeline.NewOrchestrator(cfg, reg, parser.NewRenderer(4), log)
	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)
	t.Cleanup(func() {
		cancel()
		orch.Stop()
	})

	cache, err := NewPageCache(cfg.CacheMaxBytes)
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(orch, cache, log, cfg), site
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["preset"] != "relocate" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/adjust", strings.NewReader(page)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/adjust", strings.NewReader(page))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestAdjust_RawBody(t *testing.T) {
	s, _ := newTestServer(t)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust?width=749", strings.NewReader(page)))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, `id="side-nav"`) {
		t.Error("expected side nav removed at width 749")
	}
	if strings.Contains(body, `id="navrow1"`) {
		t.Error("expected primary row removed")
	}
	if !strings.Contains(body, `<div id="riot-searchbox"><div id="MSearchBox"></div></div>`) {
		t.Errorf("expected search box relocated, got %s", body)
	}
	if !strings.Contains(body, `<ul class="nav nav-tabs"><li class="active">`) {
		t.Errorf("expected promoted secondary row, got %s", body)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("expected ETag")
	}
	if got := rec.Header().Get(headerPreset); got != "relocate" {
		t.Errorf("expected preset header relocate, got %q", got)
	}
	if !strings.Contains(rec.Header().Get(headerSteps), "side-nav=0/1/0") {
		t.Errorf("unexpected steps header %q", rec.Header().Get(headerSteps))
	}
}

func TestAdjust_HidePresetViaHeaderWidth(t *testing.T) {
	s, _ := newTestServer(t)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust?preset=hide", strings.NewReader(page)))
	req.Header.Set("Sec-CH-Viewport-Width", "1280")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, "MSearchBox") {
		t.Error("expected search box removed by hide preset")
	}
	if !strings.Contains(body, `id="side-nav"`) {
		t.Error("expected side nav kept at width 1280")
	}
	if !strings.Contains(body, `<img src="diagram.png" class="img-responsive"/>`) {
		t.Errorf("expected responsive image, got %s", body)
	}
}

func TestAdjust_NotModified(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/adjust", strings.NewReader(page))))
	etag := rec.Header().Get("ETag")

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust", strings.NewReader(page)))
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
}

func TestAdjust_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"bad width", "/api/adjust?width=wide", http.StatusBadRequest},
		{"negative width", "/api/adjust?width=-1", http.StatusBadRequest},
		{"unknown preset", "/api/adjust?preset=fancy", http.StatusBadRequest},
		{"unsupported file", "/api/adjust?filename=paper.pdf", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(page))))
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.code, rec.Code)
		}
	}
}

func TestAdjust_TooLarge(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.MaxUploadBytes = 16

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/adjust", strings.NewReader(page))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestAdjust_MultipartTooLarge(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.MaxUploadBytes = 16
	body, ctype := multipartBody(t, "file", map[string]string{"big.html": strings.Repeat("x", 2<<20)})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust", body))
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReadStatus(t *testing.T) {
	if got := readStatus(fmt.Errorf("wrapped: %w", &http.MaxBytesError{Limit: 1})); got != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for size limit, got %d", got)
	}
	if got := readStatus(io.ErrUnexpectedEOF); got != http.StatusBadRequest {
		t.Errorf("expected 400 for other errors, got %d", got)
	}
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestAdjust_Multipart(t *testing.T) {
	s, _ := newTestServer(t)
	body, ctype := multipartBody(t, "file", map[string]string{"guide.md": "# Guide\n\ntext\n"})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust", body))
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<title>Guide</title>") {
		t.Errorf("expected rendered markdown page, got %s", rec.Body.String())
	}
}

func TestBatchAdjust(t *testing.T) {
	s, _ := newTestServer(t)
	body, ctype := multipartBody(t, "files", map[string]string{
		"index.html": page,
		"notes.md":   "# Notes\n",
		"paper.pdf":  "%PDF",
	})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust/batch?width=500", body))
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID   string           `json:"job_id"`
		PollURL string           `json:"poll_url"`
		Width   int              `json:"width"`
		Files   []map[string]any `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Width != 500 || len(resp.Files) != 3 {
		t.Errorf("unexpected response %+v", resp)
	}

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, resp.PollURL, nil)))
		if rec.Code != http.StatusOK {
			t.Fatalf("status poll: expected 200, got %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if snap.Status == pipeline.StatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed job, got %s %+v", snap.Status, snap.Progress)
	}
	if len(snap.Pages) != 2 {
		t.Fatalf("expected 2 adjusted pages, got %+v", snap.Pages)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp.JobID+"/pages/index.html", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("page fetch: expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `id="side-nav"`) {
		t.Error("expected side nav removed at width 500")
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp.JobID+"/pages/missing.html", nil)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing page, got %d", rec.Code)
	}
}

func TestBatchAdjust_RejectsCollidingOutputs(t *testing.T) {
	s, _ := newTestServer(t)
	body, ctype := multipartBody(t, "files", map[string]string{
		"guide.md":   "# Guide\n",
		"guide.html": page,
	})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust/batch", body))
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID string           `json:"job_id"`
		Files []map[string]any `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var accepted, rejected int
	for _, f := range resp.Files {
		if _, ok := f["error"]; ok {
			rejected++
		} else if f["page"] == "guide.html" {
			accepted++
		}
	}
	if accepted != 1 || rejected != 1 {
		t.Errorf("expected one page accepted and one rejected, got %+v", resp.Files)
	}
	job := s.orchestrator.GetJob(resp.JobID)
	if job == nil {
		t.Fatal("expected job to be stored")
	}
	if total := job.Snapshot().Progress.TotalPages; total != 1 {
		t.Errorf("expected a single source, got %d", total)
	}
}

func TestBatchAdjust_NoUsableFiles(t *testing.T) {
	s, _ := newTestServer(t)
	body, ctype := multipartBody(t, "files", map[string]string{"paper.pdf": "%PDF"})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/adjust/batch", body))
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/jobs/nope/status", nil)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSite(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/docs/", nil)
	req.Header.Set("Viewport-Width", "360.5")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `id="side-nav"`) {
		t.Error("expected side nav removed for narrow hint")
	}
	if !strings.Contains(rec.Header().Get("Accept-CH"), "Viewport-Width") {
		t.Error("expected Accept-CH advertised")
	}
	if rec.Header().Get("X-Cache") != "miss" {
		t.Errorf("expected first request to miss, got %q", rec.Header().Get("X-Cache"))
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/index.html?width=1200", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `id="side-nav"`) {
		t.Error("expected side nav kept for wide request")
	}
}

func TestSite_StaticAndMissing(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/doxygen.css", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Errorf("expected css served as is, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/missing.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/../../etc/passwd.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected traversal to stay inside the site, got %d", rec.Code)
	}
}

func TestViewportWidth(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		headers map[string]string
		want    int
		wantErr bool
	}{
		{"fallback", "/", nil, 1024, false},
		{"query", "/?width=749", nil, 749, false},
		{"query wins", "/?width=800", map[string]string{"Viewport-Width": "300"}, 800, false},
		{"client hint", "/", map[string]string{"Sec-CH-Viewport-Width": "412"}, 412, false},
		{"legacy hint", "/", map[string]string{"Viewport-Width": "750.9"}, 750, false},
		{"bad hint ignored", "/", map[string]string{"Viewport-Width": "wide"}, 1024, false},
		{"huge hint capped", "/", map[string]string{"Viewport-Width": "1e300"}, math.MaxInt32, false},
		{"infinite hint capped", "/", map[string]string{"Viewport-Width": "Inf"}, math.MaxInt32, false},
		{"int64 overflow hint", "/", map[string]string{"Viewport-Width": "9.3e18"}, math.MaxInt32, false},
		{"nan hint falls through", "/", map[string]string{"Sec-CH-Viewport-Width": "NaN", "Viewport-Width": "640"}, 640, false},
		{"negative hint ignored", "/", map[string]string{"Viewport-Width": "-5"}, 1024, false},
		{"bad query", "/?width=x", nil, 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.url, nil)
		for k, v := range tt.headers {
			req.Header.Set(k, v)
		}
		got, err := viewportWidth(req, 1024)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: expected error=%v, got %v", tt.name, tt.wantErr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"index.html":         "index.html",
		"../../etc/x.html":   "x.html",
		`C:\docs\group.html`: "group.html",
		"a..b.html":          "a_b.html",
		"":                   "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
