// Package layout rearranges the navigation markup of Doxygen-generated pages
// so they fit a navbar-based theme. The pass runs once per page. It takes the
// parsed tree and a viewport-width accessor and mutates the tree in place.
package layout

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// Viewport reports the width, in CSS pixels, the page is laid out for.
type Viewport interface {
	Width() int
}

// FixedWidth is a Viewport with a constant width.
type FixedWidth int

func (w FixedWidth) Width() int { return int(w) }

// Report collects the result of each step in execution order.
type Report struct {
	Preset string       `json:"preset"`
	Steps  []StepResult `json:"steps"`
}

// Step returns the result for the named step.
func (r Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Changed reports whether any step touched the tree.
func (r Report) Changed() bool {
	for _, s := range r.Steps {
		if s.Moved+s.Removed+s.Relabeled > 0 {
			return true
		}
	}
	return false
}

// Summary renders the report as "step=moved/removed/relabeled" pairs,
// skipping steps whose target was absent.
func (r Report) Summary() string {
	var parts []string
	for _, s := range r.Steps {
		if !s.Found {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d/%d/%d", s.Step, s.Moved, s.Removed, s.Relabeled))
	}
	return strings.Join(parts, ",")
}

// Adjuster applies a preset's steps to page trees. It holds no per-page state
// and is safe for concurrent use on distinct trees.
type Adjuster struct {
	preset Preset
	steps  []Step
	log    *slog.Logger
}

// New validates preset and builds an Adjuster for it.
func New(preset Preset, log *slog.Logger) (*Adjuster, error) {
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Adjuster{
		preset: preset,
		steps:  StepsFor(preset),
		log:    log.With("preset", preset.Name),
	}, nil
}

// Preset returns the preset the adjuster was built with.
func (a *Adjuster) Preset() Preset { return a.preset }

// Steps returns the ordered steps.
func (a *Adjuster) Steps() []Step {
	out := make([]Step, len(a.steps))
	copy(out, a.steps)
	return out
}

// Adjust runs every step against root. A nil root is a no-op.
func (a *Adjuster) Adjust(root *html.Node, vp Viewport) (Report, error) {
	report := Report{Preset: a.preset.Name}
	if root == nil {
		return report, nil
	}
	page := &Page{Root: root, Viewport: vp, Preset: a.preset}
	for _, step := range a.steps {
		res, err := step.Apply(page)
		if err != nil {
			return report, fmt.Errorf("step %s: %w", step.Name, err)
		}
		a.log.Debug("layout step",
			"step", step.Name,
			"found", res.Found,
			"moved", res.Moved,
			"removed", res.Removed,
			"relabeled", res.Relabeled,
		)
		report.Steps = append(report.Steps, res)
	}
	return report, nil
}
