package app

import (
	"strings"

	"lectureflow/pkg/domain"
)

// systemPrompt builds the strict instruction that forbids fabrication and
// mandates a single JSON object as output.
func systemPrompt(t domain.ArtifactType) string {
	return strings.Join([]string{
		"You are an extractive academic assistant.",
		"Use ONLY the provided transcript text.",
		"If the transcript lacks information, set the corresponding JSON field to null or an empty list.",
		"Never invent facts, names, equations, or examples not present in the transcript.",
		"Output MUST be a single valid JSON object that conforms to the requested schema.",
		"Task: " + string(t),
	}, " ")
}

const summarySchema = `{
  "title": string|null,           // from transcript, or null
  "abstract": string,             // 3-6 sentences, extractive/faithful
  "key_points": string[],         // 5-12 bullets from transcript
  "terms": string[]               // glossary terms if explicitly present
}`

const notesSchema = `{
  "outline": [
    {
      "heading": string,
      "bullets": string[]          // bullet points quoted or paraphrased faithfully
    }
  ],
  "equations": string[],          // equations exactly as they appear, or []
  "references": string[]          // sources/figures mentioned explicitly, or []
}`

const quizSchema = `{
  "questions": [
    {
      "type": "mcq"|"short"|"true_false",
      "prompt": string,           // faithful to transcript
      "choices": string[]|null,   // only for mcq
      "answer": string|boolean,   // ground-truth strictly from transcript
      "rationale": string|null    // cite wording from transcript if helpful
    }
  ]
}`

// userPrompt embeds the verbatim transcript between explicit delimiters,
// followed by the exact output schema for the requested type.
func userPrompt(t domain.ArtifactType, transcript string) string {
	var schema string
	switch t {
	case domain.ArtifactSummary:
		schema = summarySchema
	case domain.ArtifactNotes:
		schema = notesSchema
	case domain.ArtifactQuiz:
		schema = quizSchema
	}
	return strings.Join([]string{
		"TRANSCRIPT (verbatim):",
		"<<<TRANSCRIPT_START>>>",
		transcript,
		"<<<TRANSCRIPT_END>>>",
		"",
		"Return JSON with schema:",
		schema,
	}, "\n")
}
