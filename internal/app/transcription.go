package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lectureflow/internal/media"
	"lectureflow/pkg/domain"
	"lectureflow/pkg/trigger"
)

const transcriptPreviewChars = 500

// HandleRecordingUpdated reacts to recording document updates. It runs the
// transcription pipeline only when the transcript status actually changed on
// this update and the new value is exactly "pending"; every other transition
// (including no-op writes) is ignored. Because delivery is at-least-once,
// the stored status is re-checked so a redelivered event whose recording has
// already advanced past pending is a no-op.
func (a *App) HandleRecordingUpdated(ctx context.Context, ev trigger.RecordingUpdate) error {
	prev := ev.Before.TranscriptStatus
	if prev == "" {
		prev = domain.TranscriptNone
	}
	curr := ev.After.TranscriptStatus
	if prev == curr {
		return nil
	}
	if curr != domain.TranscriptPending {
		return nil
	}

	rec, ok, err := a.store.GetRecording(ev.After.ID)
	if err != nil {
		return fmt.Errorf("load recording %s: %w", ev.After.ID, err)
	}
	if !ok || rec.TranscriptStatus != domain.TranscriptPending {
		return nil
	}

	a.runTranscription(ctx, rec)
	return nil
}

func (a *App) runTranscription(ctx context.Context, rec domain.Recording) {
	log := a.logger.With("recording_id", rec.ID)

	// Flip to processing before any external work starts.
	if err := a.store.SetTranscriptStatus(rec.ID, domain.TranscriptProcessing, ""); err != nil {
		log.Error("mark transcript processing", "error", err)
		return
	}
	log.Info("transcription started", "filename", rec.Filename)

	audioKey := rec.StorageKey
	if audioKey == "" {
		audioKey = "recordings/" + rec.Filename
	}
	exists, err := a.objects.Exists(ctx, audioKey)
	if err != nil {
		a.failTranscript(rec.ID, fmt.Sprintf("check audio object: %v", err))
		return
	}
	if !exists {
		a.failTranscript(rec.ID, "audio file not found in storage")
		return
	}
	audio, err := a.objects.Get(ctx, audioKey)
	if err != nil {
		a.failTranscript(rec.ID, fmt.Sprintf("download audio: %v", err))
		return
	}
	log.Info("downloaded audio", "key", audioKey, "bytes", len(audio))

	ws, err := media.NewWorkspace(rec.ID)
	if err != nil {
		a.failTranscript(rec.ID, err.Error())
		return
	}
	// The workspace is the leak defense for aborted runs; the normal path
	// below also removes part files explicitly.
	defer ws.Close()

	ext := filepath.Ext(rec.Filename)
	if ext == "" {
		ext = ".m4a"
	}
	srcPath := ws.Path("source" + ext)
	if err := os.WriteFile(srcPath, audio, 0o600); err != nil {
		a.failTranscript(rec.ID, err.Error())
		return
	}

	parts := a.segmentOrWholeFile(ctx, log, srcPath)

	var sb strings.Builder
	for _, part := range parts {
		chunk, chunkName, err := a.chunkBytes(ctx, part.Path)
		if err != nil {
			a.failTranscript(rec.ID, err.Error())
			removePartFiles(parts, srcPath)
			return
		}
		piece, err := a.transcriber.Transcribe(ctx, chunk, chunkName)
		if err != nil {
			// One failed chunk aborts the whole run; a partial transcript
			// is never persisted.
			a.failTranscript(rec.ID, err.Error())
			removePartFiles(parts, srcPath)
			return
		}
		start := part.Index * a.segmentSeconds
		end := (part.Index + 1) * a.segmentSeconds
		sb.WriteString("\n[" + formatClock(start) + "–" + formatClock(end) + "]\n")
		sb.WriteString(piece)
		sb.WriteString("\n")
		log.Info("chunk transcribed", "index", part.Index, "chars", len(piece))
	}
	removePartFiles(parts, srcPath)

	text := sb.String()
	key := domain.TranscriptKey(rec.ID)
	if err := a.objects.Put(ctx, key, []byte(text), domain.TranscriptContentType); err != nil {
		a.failTranscript(rec.ID, fmt.Sprintf("save transcript: %v", err))
		return
	}
	if err := a.store.SetTranscriptResult(rec.ID, key, previewString(text, transcriptPreviewChars)); err != nil {
		log.Error("finalize transcript", "error", err)
		return
	}
	log.Info("transcript saved", "path", key, "parts", len(parts), "chars", len(text))
}

// segmentOrWholeFile attempts fixed-duration segmentation and falls back to
// the whole file as a single part on any failure or empty output. The
// fallback is required behavior: some environments have no ffmpeg at all.
func (a *App) segmentOrWholeFile(ctx context.Context, log *slog.Logger, srcPath string) []media.Part {
	parts, err := a.segmenter.Segment(ctx, srcPath, a.segmentSeconds)
	if err != nil || len(parts) == 0 {
		if err != nil {
			log.Warn("segmentation unavailable, using single part", "error", err)
		}
		return []media.Part{{Index: 0, Path: srcPath}}
	}
	return parts
}

// chunkBytes converts one part to 16 kHz mono WAV, falling back to the
// part's raw bytes when conversion is unavailable or fails.
func (a *App) chunkBytes(ctx context.Context, partPath string) ([]byte, string, error) {
	if wavPath, err := a.converter.Convert(ctx, partPath); err == nil {
		wav, readErr := os.ReadFile(wavPath)
		_ = os.Remove(wavPath)
		if readErr == nil {
			return wav, filepath.Base(wavPath), nil
		}
	}
	raw, err := os.ReadFile(partPath)
	if err != nil {
		return nil, "", fmt.Errorf("read audio part: %w", err)
	}
	return raw, filepath.Base(partPath), nil
}

func (a *App) failTranscript(recordingID, msg string) {
	if err := a.store.SetTranscriptStatus(recordingID, domain.TranscriptError, msg); err != nil {
		a.logger.Error("mark transcript error", "recording_id", recordingID, "error", err)
	}
	a.logger.Error("transcription failed", "recording_id", recordingID, "message", msg)
}

func removePartFiles(parts []media.Part, srcPath string) {
	for _, part := range parts {
		if part.Path != srcPath {
			_ = os.Remove(part.Path)
		}
	}
	_ = os.Remove(srcPath)
}

// formatClock renders whole seconds as H:MM:SS, omitting the hour block
// entirely when it is zero (600 -> "10:00", 3600 -> "01:00:00").
func formatClock(totalSeconds int) string {
	h := totalSeconds / 3600
	m := totalSeconds % 3600 / 60
	s := totalSeconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// previewString returns the first n characters of s, rune-safe.
func previewString(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
