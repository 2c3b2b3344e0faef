package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobStatus represents the state of a batch adjustment job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusAdjusting JobStatus = "adjusting"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Source is one uploaded page awaiting adjustment.
type Source struct {
	Name string
	Data []byte
}

// Job tracks the state of a batch of pages adjusted with one preset and one
// viewport width.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	Preset string `json:"preset"`
	Width  int    `json:"width"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	sources []Source
	outputs map[string]*Output
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalPages     int      `json:"total_pages"`
	PagesProcessed int      `json:"pages_processed"`
	PagesFailed    int      `json:"pages_failed"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job with a fresh ULID.
func NewJob(preset string, width int) *Job {
	now := time.Now()
	return &Job{
		ID:        generateULID(),
		Preset:    preset,
		Width:     width,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		outputs:   make(map[string]*Output),
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddSource queues a page for adjustment.
func (j *Job) AddSource(name string, data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sources = append(j.sources, Source{Name: name, Data: data})
	j.Progress.TotalPages = len(j.sources)
}

// Sources returns the queued pages.
func (j *Job) Sources() []Source {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Source, len(j.sources))
	copy(out, j.sources)
	return out
}

// AddError records a page failure.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.Progress.PagesFailed++
	j.Progress.PagesProcessed++
	j.UpdatedAt = time.Now()
}

// AddOutput stores an adjusted page and counts it as processed.
func (j *Job) AddOutput(out *Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.outputs == nil {
		j.outputs = make(map[string]*Output)
	}
	j.outputs[out.Name] = out
	j.Progress.PagesProcessed++
	j.UpdatedAt = time.Now()
}

// Output returns the adjusted page called name.
func (j *Job) Output(name string) (*Output, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out, ok := j.outputs[name]
	return out, ok
}

// releaseSources drops the raw uploads once every page has been handled.
func (j *Job) releaseSources() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sources = nil
}

// PageSummary describes one adjusted page in a snapshot.
type PageSummary struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	ETag    string `json:"etag"`
	Summary string `json:"steps"`
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string        `json:"job_id"`
	Preset   string        `json:"preset"`
	Width    int           `json:"width"`
	Status   JobStatus     `json:"status"`
	Phase    string        `json:"phase"`
	Progress Progress      `json:"progress"`
	Pages    []PageSummary `json:"pages"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)

	pages := make([]PageSummary, 0, len(j.outputs))
	for _, out := range j.outputs {
		pages = append(pages, PageSummary{
			Name:    out.Name,
			Title:   out.Title,
			ETag:    out.ETag,
			Summary: out.Report.Summary(),
		})
	}
	sort.Slice(pages, func(a, b int) bool { return pages[a].Name < pages[b].Name })

	return JobSnapshot{
		ID:     j.ID,
		Preset: j.Preset,
		Width:  j.Width,
		Status: j.Status,
		Phase:  j.Phase,
		Progress: Progress{
			TotalPages:     j.Progress.TotalPages,
			PagesProcessed: j.Progress.PagesProcessed,
			PagesFailed:    j.Progress.PagesFailed,
			Errors:         errs,
		},
		Pages: pages,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
