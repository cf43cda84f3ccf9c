package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lectureflow/pkg/domain"
	"lectureflow/pkg/trigger"
)

const abstractPreviewChars = 200

// HandleJobCreated reacts to new AI job documents. A job whose stored status
// is no longer "pending" at invocation time is a no-op; that absorbs the
// dispatcher's at-least-once redelivery.
func (a *App) HandleJobCreated(ctx context.Context, ev trigger.JobCreated) error {
	job, ok, err := a.store.GetJob(ev.Job.ID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", ev.Job.ID, err)
	}
	if !ok {
		return nil
	}
	if job.Type == "" || job.RecordingID == "" {
		if err := a.store.SetJobStatus(job.ID, domain.JobError, "missing job type or recordingId"); err != nil {
			a.logger.Error("mark job error", "job_id", job.ID, "error", err)
		}
		return nil
	}
	// A job written without a status counts as pending; only a status that
	// is present and already past pending makes redelivery a no-op.
	if job.Status != "" && job.Status != domain.JobPending {
		return nil
	}

	a.runArtifactJob(ctx, job)
	return nil
}

func (a *App) runArtifactJob(ctx context.Context, job domain.AiJob) {
	log := a.logger.With("job_id", job.ID, "recording_id", job.RecordingID, "type", job.Type)

	if err := a.store.SetJobStatus(job.ID, domain.JobProcessing, ""); err != nil {
		log.Error("mark job processing", "error", err)
		return
	}

	rec, ok, err := a.store.GetRecording(job.RecordingID)
	if err != nil || !ok {
		msg := "recording not found"
		if err != nil {
			msg = fmt.Sprintf("load recording: %v", err)
		}
		if err := a.store.SetJobStatus(job.ID, domain.JobError, msg); err != nil {
			log.Error("mark job error", "error", err)
		}
		log.Error("artifact job failed", "message", msg)
		return
	}
	if err := a.store.SetArtifactStatus(rec.ID, job.Type, domain.ArtifactProcessing); err != nil {
		log.Error("mark artifact processing", "error", err)
	}

	transcript, err := a.loadTranscript(ctx, job.RecordingID)
	if err != nil {
		a.failArtifactJob(job, err.Error())
		return
	}

	raw, err := a.generator.GenerateText(ctx, systemPrompt(job.Type), userPrompt(job.Type, transcript))
	if err != nil {
		a.failArtifactJob(job, err.Error())
		return
	}

	payload, err := parseModelJSON(raw)
	if err != nil {
		a.failArtifactJob(job, err.Error())
		return
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		a.failArtifactJob(job, fmt.Sprintf("encode artifact: %v", err))
		return
	}
	outPath := domain.ArtifactKey(job.RecordingID, job.Type, job.ID)
	if err := a.objects.Put(ctx, outPath, encoded, domain.ArtifactContentType); err != nil {
		a.failArtifactJob(job, fmt.Sprintf("save artifact: %v", err))
		return
	}

	preview := artifactPreview(job.Type, payload)
	if err := a.store.SetJobResult(job.ID, outPath, preview); err != nil {
		log.Error("finalize job", "error", err)
		return
	}
	if err := a.store.SetArtifactResult(job.RecordingID, job.Type, outPath, preview); err != nil {
		log.Error("finalize artifact state", "error", err)
		return
	}
	log.Info("artifact generated", "path", outPath)
}

func (a *App) loadTranscript(ctx context.Context, recordingID string) (string, error) {
	key := domain.TranscriptKey(recordingID)
	exists, err := a.objects.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check transcript: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("transcript missing for recording %s", recordingID)
	}
	data, err := a.objects.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

// failArtifactJob writes the terminal error to both the job and the
// recording's per-type status. No partial artifact is ever left "done".
func (a *App) failArtifactJob(job domain.AiJob, msg string) {
	if err := a.store.SetJobStatus(job.ID, domain.JobError, msg); err != nil {
		a.logger.Error("mark job error", "job_id", job.ID, "error", err)
	}
	if err := a.store.SetArtifactStatus(job.RecordingID, job.Type, domain.ArtifactError); err != nil {
		a.logger.Error("mark artifact error", "recording_id", job.RecordingID, "error", err)
	}
	a.logger.Error("artifact job failed", "job_id", job.ID, "recording_id", job.RecordingID, "type", job.Type, "message", msg)
}

// parseModelJSON strips a surrounding markdown code fence, if any, then
// parses the result as a single JSON value. Parse failure is terminal for
// the job, never a silent fallback.
func parseModelJSON(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		first := strings.Index(s, "\n")
		lastFence := strings.LastIndex(s, "```")
		if first >= 0 && lastFence > first {
			s = strings.TrimSpace(s[first+1 : lastFence])
		}
	}
	var payload any
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %v", err)
	}
	return payload, nil
}

// artifactPreview derives the short per-type preview string.
func artifactPreview(t domain.ArtifactType, payload any) string {
	obj, _ := payload.(map[string]any)
	switch t {
	case domain.ArtifactSummary:
		abstract, _ := obj["abstract"].(string)
		return previewString(abstract, abstractPreviewChars)
	case domain.ArtifactNotes:
		outline, _ := obj["outline"].([]any)
		return fmt.Sprintf("Outline sections: %d", len(outline))
	case domain.ArtifactQuiz:
		questions, _ := obj["questions"].([]any)
		return fmt.Sprintf("Questions: %d", len(questions))
	}
	return ""
}
