package ai

import "context"

// TextGenerator produces a completion from a system prompt and user prompt.
// Implementations are expected to request deterministic sampling and a
// JSON-object response so callers can parse the output strictly.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Transcriber converts one audio chunk into text. The filename hint helps
// the remote service detect the container format.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
