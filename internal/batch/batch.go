package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/truevine-insights/spectrum/internal/paths"
	"github.com/truevine-insights/spectrum/pkg/types"
)

var (
	// ErrNoInputs means none of the requested source files could be
	// resolved to an existing path.
	ErrNoInputs = errors.New("no accessible input files")

	// ErrOutputInaccessible means neither the requested output directory
	// nor any safe fallback location could be used.
	ErrOutputInaccessible = errors.New("output location not accessible")
)

// FileConverter converts one RAW file into one output artifact. A failure
// is reported inside the outcome, never as a panic or error return.
type FileConverter interface {
	Convert(ctx context.Context, src, dst string, quality int, presetName string) types.ConversionOutcome
}

// MetadataCopier propagates metadata tags from src into dst.
type MetadataCopier interface {
	Copy(ctx context.Context, src, dst string) types.MetadataResult
}

// Request describes one conversion batch.
type Request struct {
	Files            []string `json:"files"`
	OutputDir        string   `json:"output_dir"`
	Quality          int      `json:"quality"`
	Preset           string   `json:"preset"`
	PreserveMetadata bool     `json:"preserve_metadata"`
}

type Options struct {
	OutputExtension string
	SkipExisting    bool
	Workers         int
}

// Orchestrator drives a converter across a batch of files: it resolves
// inputs and the output directory, skips already-converted files, runs
// conversions on a bounded worker pool, and aggregates the outcomes.
type Orchestrator struct {
	resolver     *paths.Resolver
	converter    FileConverter
	metadata     MetadataCopier
	outputExt    string
	skipExisting bool
	workers      int
}

func New(resolver *paths.Resolver, converter FileConverter, metadata MetadataCopier, opts Options) *Orchestrator {
	ext := opts.OutputExtension
	if ext == "" {
		ext = ".jpg"
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		resolver:     resolver,
		converter:    converter,
		metadata:     metadata,
		outputExt:    ext,
		skipExisting: opts.SkipExisting,
		workers:      workers,
	}
}

type resolvedInput struct {
	requested string
	path      string
}

// Run converts every file in the request and returns the aggregated
// result. Outcomes are reported to onProgress (when non-nil) in a fixed
// order: missing inputs first, in request order, then existing inputs in
// resolution order. Per-file failures never abort the batch; only the
// two batch-level conditions (no inputs, no output location) return an
// error.
func (o *Orchestrator) Run(ctx context.Context, req Request, onProgress func(types.ConversionOutcome)) (*types.BatchResult, error) {
	type missingInput struct {
		requested string
		unc       bool
	}

	var existing []resolvedInput
	var missing []missingInput

	for _, f := range req.Files {
		rp := o.resolver.Resolve(paths.Normalize(f))
		if rp.Origin == paths.OriginUNC {
			// Network-share paths are never translated; tell the caller
			// what to do instead of a generic not-found.
			missing = append(missing, missingInput{requested: f, unc: true})
			continue
		}
		if _, err := os.Stat(rp.Path); err == nil {
			existing = append(existing, resolvedInput{requested: f, path: rp.Path})
		} else {
			missing = append(missing, missingInput{requested: f})
		}
	}

	if len(existing) == 0 {
		return nil, fmt.Errorf("%w: none of the %d requested files exist", ErrNoInputs, len(req.Files))
	}

	outDir, err := o.resolveOutputDir(req.OutputDir, existing)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputInaccessible, err)
	}

	result := &types.BatchResult{Total: len(req.Files)}
	emit := func(outcome types.ConversionOutcome) {
		result.Outcomes = append(result.Outcomes, outcome)
		if onProgress != nil {
			onProgress(outcome)
		}
	}

	for _, m := range missing {
		msg := fmt.Sprintf("input file not accessible: %s", m.requested)
		if m.unc {
			msg = fmt.Sprintf("network path %s is not accessible; map the share to a drive letter first", m.requested)
		}
		emit(types.ConversionOutcome{
			Src:   m.requested,
			Error: msg,
		})
	}

	o.convertAll(ctx, existing, outDir, req, emit)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result.Tally()
	return result, nil
}

// convertAll runs the existing inputs through a bounded worker pool.
// Workers finish out of order; outcomes are buffered and re-sequenced so
// they are emitted in input order.
func (o *Orchestrator) convertAll(ctx context.Context, inputs []resolvedInput, outDir string, req Request, emit func(types.ConversionOutcome)) {
	type job struct {
		idx int
		in  resolvedInput
	}
	type done struct {
		idx     int
		outcome types.ConversionOutcome
	}

	jobs := make(chan job)
	results := make(chan done)

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- done{idx: j.idx, outcome: o.convertOne(ctx, j.in, outDir, req)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, in := range inputs {
			select {
			case jobs <- job{idx: i, in: in}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]types.ConversionOutcome)
	next := 0
	for d := range results {
		pending[d.idx] = d.outcome
		for {
			outcome, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			emit(outcome)
			next++
		}
	}
}

func (o *Orchestrator) convertOne(ctx context.Context, in resolvedInput, outDir string, req Request) types.ConversionOutcome {
	if ctx.Err() != nil {
		return types.ConversionOutcome{Src: in.path, Error: "cancelled"}
	}

	dst := o.destinationFor(in.path, outDir)

	if o.skipExisting {
		if _, err := os.Stat(dst); err == nil {
			outcome := types.ConversionOutcome{
				Src:     in.path,
				Dst:     dst,
				Success: true,
				Skipped: true,
			}
			// Metadata can still be refreshed on a file converted by an
			// earlier run.
			if req.PreserveMetadata && o.metadata != nil {
				mr := o.metadata.Copy(ctx, in.path, dst)
				outcome.Metadata = &mr
			}
			return outcome
		}
	}

	outcome := o.converter.Convert(ctx, in.path, dst, req.Quality, req.Preset)
	if outcome.Success && req.PreserveMetadata && o.metadata != nil {
		mr := o.metadata.Copy(ctx, in.path, dst)
		outcome.Metadata = &mr
	}
	return outcome
}

// destinationFor maps a source file into the output directory, keeping
// the path relative to the output directory's parent when possible and
// falling back to the bare file name.
func (o *Orchestrator) destinationFor(src, outDir string) string {
	rel, err := filepath.Rel(filepath.Dir(outDir), src)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(src)
	}
	ext := filepath.Ext(rel)
	return filepath.Join(outDir, rel[:len(rel)-len(ext)]+o.outputExt)
}

// resolveOutputDir validates the requested output directory. A directory
// whose parent also does not exist falls back to <common ancestor of the
// inputs>/converted, provided that ancestor is a real directory and not a
// filesystem root or a drive-mount root.
func (o *Orchestrator) resolveOutputDir(requested string, existing []resolvedInput) (string, error) {
	outDir := o.resolver.Resolve(paths.Normalize(requested)).Path

	if _, err := os.Stat(outDir); err == nil {
		return outDir, nil
	}
	if _, err := os.Stat(filepath.Dir(outDir)); err == nil {
		return outDir, nil
	}

	inputDirs := make([]string, 0, len(existing))
	for _, in := range existing {
		inputDirs = append(inputDirs, filepath.Dir(in.path))
	}
	ancestor := commonAncestor(inputDirs)

	if ancestor == "" || filepath.Dir(ancestor) == ancestor || o.resolver.IsDriveMountRoot(ancestor) {
		return "", fmt.Errorf("%w: %s does not exist and no safe fallback was found", ErrOutputInaccessible, requested)
	}
	if info, err := os.Stat(ancestor); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s does not exist and no safe fallback was found", ErrOutputInaccessible, requested)
	}
	return filepath.Join(ancestor, "converted"), nil
}

func commonAncestor(dirs []string) string {
	if len(dirs) == 0 {
		return ""
	}
	ancestor := filepath.Clean(dirs[0])
	for _, d := range dirs[1:] {
		d = filepath.Clean(d)
		for ancestor != "" && !isPrefixDir(ancestor, d) {
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				return ancestor
			}
			ancestor = parent
		}
	}
	return ancestor
}

func isPrefixDir(prefix, path string) bool {
	if prefix == path {
		return true
	}
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
