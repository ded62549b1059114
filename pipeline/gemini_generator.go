package pipeline

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiNotesOptions configures the Gemini backend.
type GeminiNotesOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GeminiNotesGenerator generates notes with the Gemini API.
type GeminiNotesGenerator struct {
	opts           GeminiNotesOptions
	detectLanguage LanguageDetector
}

// NewGeminiNotesGenerator creates a generator. The API key is checked on the
// first GenerateNotes call. detector may be nil.
func NewGeminiNotesGenerator(opts GeminiNotesOptions, detector LanguageDetector) *GeminiNotesGenerator {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	return &GeminiNotesGenerator{opts: opts, detectLanguage: detector}
}

func (g *GeminiNotesGenerator) GenerateNotes(ctx context.Context, transcription string, opts NotesOptions) (string, error) {
	if g.opts.APIKey == "" {
		return "", newStageError(ErrGeneration, StageGenerate, "", fmt.Errorf("authentication: GEMINI_API_KEY is not set"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.opts.BaseURL},
	})
	if err != nil {
		return "", newStageError(ErrGeneration, StageGenerate, "", fmt.Errorf("create client: %w", err))
	}

	systemPrompt := BuildNotesPrompt(transcription, detect(g.detectLanguage, transcription))
	result, err := client.Models.GenerateContent(ctx, g.opts.Model, genai.Text(notesUserPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(opts.Temperature),
		MaxOutputTokens:   int32(maxTokensOrDefault(opts.MaxTokens)),
	})
	if err != nil {
		return "", newStageError(ErrGeneration, StageGenerate, "", fmt.Errorf("generate content: %w", err))
	}

	text := ""
	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		for _, part := range result.Candidates[0].Content.Parts {
			if part != nil {
				text += part.Text
			}
		}
	}
	if text == "" {
		return "", newStageError(ErrGeneration, StageGenerate, "", fmt.Errorf("empty response from Gemini"))
	}

	return text, nil
}
