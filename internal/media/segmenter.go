package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Part is one time-bounded slice of the source audio. Index implies the
// window [Index*segmentSeconds, (Index+1)*segmentSeconds).
type Part struct {
	Index int
	Path  string
}

// Segment splits the input into fixed-duration parts with timestamps reset
// per part, so each one decodes independently. On any error (including an
// absent binary) or an empty result, the caller must fall back to treating
// the whole original file as a single part.
func (f *FFmpeg) Segment(ctx context.Context, inputPath string, segmentSeconds int) ([]Part, error) {
	bin, err := f.path()
	if err != nil {
		return nil, err
	}
	if segmentSeconds <= 0 {
		return nil, fmt.Errorf("segment seconds must be positive, got %d", segmentSeconds)
	}
	ext := filepath.Ext(inputPath)
	outPattern := stripExt(inputPath) + ".part-%03d" + ext

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-reset_timestamps", "1",
		outPattern,
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg segment: %s: %w", strings.TrimSpace(string(output)), err)
	}

	var parts []Part
	for i := 0; i < 1000; i++ {
		path := fmt.Sprintf(stripExt(inputPath)+".part-%03d"+ext, i)
		st, err := os.Stat(path)
		if err != nil {
			break
		}
		if st.Mode().IsRegular() && st.Size() > 0 {
			parts = append(parts, Part{Index: i, Path: path})
		}
	}
	return parts, nil
}
