package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/dgallion1/doxynav/internal/config"
	"github.com/dgallion1/doxynav/internal/layout"
	"github.com/dgallion1/doxynav/internal/parser"
	"github.com/dgallion1/doxynav/internal/pipeline"
)

var adjustCmd = &cobra.Command{
	Use:   "adjust [patterns...]",
	Short: "Rewrite Doxygen pages on disk",
	Long: `Adjusts every page matching the given patterns. Patterns support ** globs,
e.g. "html/**/*.html". Output goes to --out, mirroring each file's path below
its pattern's base directory, or replaces the source with --in-place.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdjust,
}

func init() {
	adjustCmd.Flags().String("preset", layout.PresetRelocate, "layout preset (relocate or hide)")
	adjustCmd.Flags().String("preset-file", "", "YAML file overriding preset fields")
	adjustCmd.Flags().Int("width", 1024, "viewport width the pages are adjusted for")
	adjustCmd.Flags().String("out", "", "output directory")
	adjustCmd.Flags().Bool("in-place", false, "overwrite the source pages")
	rootCmd.AddCommand(adjustCmd)
}

type adjustOptions struct {
	Patterns   []string
	Preset     string
	PresetFile string
	Width      int
	OutDir     string
	InPlace    bool
}

type adjustSummary struct {
	Pages   int
	Changed int
	Failed  int
}

func runAdjust(cmd *cobra.Command, args []string) error {
	opts := adjustOptions{Patterns: args}
	opts.Preset, _ = cmd.Flags().GetString("preset")
	opts.PresetFile, _ = cmd.Flags().GetString("preset-file")
	opts.Width, _ = cmd.Flags().GetInt("width")
	opts.OutDir, _ = cmd.Flags().GetString("out")
	opts.InPlace, _ = cmd.Flags().GetBool("in-place")

	sum, err := adjustFiles(opts, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Adjusted %d pages (%d changed, %d failed)\n", sum.Pages, sum.Changed, sum.Failed)
	if sum.Failed > 0 {
		return fmt.Errorf("%d pages failed", sum.Failed)
	}
	return nil
}

// match is a page found by a pattern, with its path relative to the
// pattern's static base directory.
type match struct {
	path string
	rel  string
}

func expandPatterns(patterns []string) ([]match, error) {
	seen := make(map[string]bool)
	var out []match
	for _, pattern := range patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		for _, p := range paths {
			if seen[p] || !parser.IsSupportedExtension(p) {
				continue
			}
			seen[p] = true
			rel, err := filepath.Rel(filepath.FromSlash(base), p)
			if err != nil {
				rel = filepath.Base(p)
			}
			out = append(out, match{path: p, rel: rel})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

func adjustFiles(opts adjustOptions, log *slog.Logger) (adjustSummary, error) {
	var sum adjustSummary
	if opts.InPlace == (opts.OutDir != "") {
		return sum, fmt.Errorf("exactly one of --out or --in-place is required")
	}
	if opts.Width < 0 {
		return sum, fmt.Errorf("width must be non-negative")
	}

	preset, err := config.ResolvePreset(opts.Preset, opts.PresetFile)
	if err != nil {
		return sum, err
	}
	adj, err := layout.New(preset, log)
	if err != nil {
		return sum, err
	}

	matches, err := expandPatterns(opts.Patterns)
	if err != nil {
		return sum, err
	}
	if len(matches) == 0 {
		return sum, fmt.Errorf("no pages match %v", opts.Patterns)
	}

	renderer := parser.NewRenderer(4)
	for _, m := range matches {
		sum.Pages++
		data, err := os.ReadFile(m.path)
		if err != nil {
			log.Error("read failed", "page", m.path, "error", err)
			sum.Failed++
			continue
		}
		out, err := pipeline.AdjustPage(adj, renderer, m.path, data, opts.Width)
		if err != nil {
			log.Error("adjust failed", "page", m.path, "error", err)
			sum.Failed++
			continue
		}

		dst := filepath.Join(filepath.Dir(m.path), filepath.Base(out.Name))
		if !opts.InPlace {
			dst = filepath.Join(opts.OutDir, parser.OutputName(m.rel))
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			log.Error("mkdir failed", "page", dst, "error", err)
			sum.Failed++
			continue
		}
		if err := os.WriteFile(dst, out.HTML, 0o644); err != nil {
			log.Error("write failed", "page", dst, "error", err)
			sum.Failed++
			continue
		}
		if out.Report.Changed() {
			sum.Changed++
		}
		log.Info("adjusted", "page", m.path, "out", dst, "steps", out.Report.Summary())
	}
	return sum, nil
}
