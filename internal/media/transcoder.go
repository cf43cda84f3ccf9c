package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnavailable reports that the ffmpeg binary cannot be located. Callers
// must treat it as "use the original bytes", never as a hard failure.
var ErrUnavailable = errors.New("ffmpeg binary not available")

// FFmpeg wraps the external ffmpeg binary for conversion and segmentation.
// The binary is resolved once; an absent binary yields ErrUnavailable on
// every call rather than an error at construction time.
type FFmpeg struct {
	bin string

	lookOnce sync.Once
	resolved string
	lookErr  error
}

// NewFFmpeg builds a wrapper around the named binary ("ffmpeg" by default).
func NewFFmpeg(bin string) *FFmpeg {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

func (f *FFmpeg) path() (string, error) {
	f.lookOnce.Do(func() {
		f.resolved, f.lookErr = exec.LookPath(f.bin)
	})
	if f.lookErr != nil {
		return "", ErrUnavailable
	}
	return f.resolved, nil
}

// Convert transcodes the input into a 16 kHz mono 16-bit PCM WAV next to it
// and returns the output path. A non-zero ffmpeg exit surfaces as a regular
// error carrying the tool's output, distinct from ErrUnavailable.
func (f *FFmpeg) Convert(ctx context.Context, inputPath string) (string, error) {
	bin, err := f.path()
	if err != nil {
		return "", err
	}
	outPath := stripExt(inputPath) + ".16kmono.wav"
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		"-sample_fmt", "s16",
		outPath,
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg convert: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return outPath, nil
}

func stripExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
