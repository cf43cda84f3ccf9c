package app

import "errors"

var (
	ErrRecordingNotFound   = errors.New("recording not found")
	ErrJobNotFound         = errors.New("job not found")
	ErrTranscriptNotFound  = errors.New("transcript not found for this recording")
	ErrArtifactNotFound    = errors.New("artifact output not available")
	ErrPermissionDenied    = errors.New("not your recording")
	ErrInvalidArtifactType = errors.New("type must be summary|notes|quiz")
	// ErrTranscriptionActive indicates the recording is already pending or
	// processing, so a new transcription request is rejected.
	ErrTranscriptionActive = errors.New("transcription already in progress")
)
