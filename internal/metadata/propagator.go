// Package metadata copies EXIF tags from RAW sources to converted
// outputs and reads key fields for display.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/truevine-insights/spectrum/pkg/types"
)

// Propagator copies metadata between files using an exiftool
// subprocess. Copy never returns an error value; failures are captured
// in the MetadataResult and must not affect the conversion they
// annotate.
type Propagator struct {
	toolPath string
}

// NewPropagator locates exiftool on PATH. A missing tool is not an
// error at construction time; every Copy will report it instead.
func NewPropagator() *Propagator {
	path, err := exec.LookPath("exiftool")
	if err != nil {
		return &Propagator{}
	}
	return &Propagator{toolPath: path}
}

// Available reports whether exiftool was found.
func (p *Propagator) Available() bool {
	return p.toolPath != ""
}

// Copy transfers all writable tags from src to dst. Cross-format
// copies (RAW to JPEG) need -all rather than -all:all so exiftool can
// remap tag groups, -unsafe to carry MakerNotes, and -m to tolerate
// tags the destination format cannot hold.
func (p *Propagator) Copy(ctx context.Context, src, dst string) types.MetadataResult {
	if p.toolPath == "" {
		return types.MetadataResult{Error: "exiftool not installed"}
	}

	cmd := exec.CommandContext(ctx, p.toolPath,
		"-TagsFromFile", src,
		"-all",
		"-unsafe",
		"-m",
		"-overwrite_original",
		dst,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	stdoutText := strings.TrimSpace(stdout.String())
	stderrText := strings.TrimSpace(stderr.String())

	// exiftool exits 0 on success and 1 on warnings; warnings are
	// expected for cross-format copies.
	if err == nil || exitCode(err) == 1 {
		if strings.Contains(stdoutText, "0 image files updated") {
			return types.MetadataResult{Error: "no metadata was written"}
		}
		return types.MetadataResult{Copied: true}
	}

	msg := stderrText
	if msg == "" {
		msg = stdoutText
	}
	if msg == "" {
		msg = err.Error()
	}
	return types.MetadataResult{Error: msg}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
