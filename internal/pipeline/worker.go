package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/doxynav/internal/layout"
	"github.com/dgallion1/doxynav/internal/parser"
)

// Worker processes a single batch job.
type Worker struct {
	adjusters *layout.Registry
	renderer  *parser.Renderer
	log       *slog.Logger

	maxConcurrentPages int
}

func NewWorker(adjusters *layout.Registry, renderer *parser.Renderer, log *slog.Logger, maxPages int) *Worker {
	if maxPages <= 0 {
		maxPages = 1
	}
	return &Worker{
		adjusters:          adjusters,
		renderer:           renderer,
		log:                log,
		maxConcurrentPages: maxPages,
	}
}

// Process adjusts every page of a job with bounded concurrency.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "preset", job.Preset, "width", job.Width)

	adj, err := w.adjusters.Get(job.Preset)
	if err != nil {
		log.Error("unknown preset", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "preset")
		return
	}

	sources := job.Sources()
	if len(sources) == 0 {
		job.SetStatus(StatusFailed, "no pages")
		return
	}

	job.SetStatus(StatusAdjusting, "adjusting")
	sem := make(chan struct{}, w.maxConcurrentPages)
	var wg sync.WaitGroup
	var mu sync.Mutex
	adjusted := 0

	for _, src := range sources {
		if ctx.Err() != nil {
			job.AddError(fmt.Sprintf("%s: %s", src.Name, ctx.Err()))
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := AdjustPage(adj, w.renderer, src.Name, src.Data, job.Width)
			if err != nil {
				log.Error("page failed", "page", src.Name, "error", err)
				job.AddError(fmt.Sprintf("%s: %s", src.Name, err))
				return
			}
			log.Debug("page adjusted", "page", out.Name, "steps", out.Report.Summary())
			job.AddOutput(out)
			mu.Lock()
			adjusted++
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	job.releaseSources()

	log.Info("job complete", "pages", len(sources), "adjusted", adjusted)

	switch {
	case adjusted == len(sources):
		job.SetStatus(StatusCompleted, "done")
	case adjusted > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "adjusting")
	}
}
