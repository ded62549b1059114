package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/pemistahl/lingua-go"
	openai "github.com/sashabaranov/go-openai"
)

const notesUserPrompt = "Please create detailed notes from the lecture transcription provided."

// LanguageDetector names the language of a text, or reports false.
type LanguageDetector func(text string) (string, bool)

// NewLinguaDetector returns a detector over all languages known to lingua.
// The underlying detector is built on first use.
func NewLinguaDetector() LanguageDetector {
	var (
		once     sync.Once
		detector lingua.LanguageDetector
	)
	return func(text string) (string, bool) {
		once.Do(func() {
			detector = lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build()
		})
		language, ok := detector.DetectLanguageOf(text)
		if !ok {
			return "", false
		}
		return language.String(), true
	}
}

// BuildNotesPrompt embeds the transcription verbatim into the system prompt
// that asks for the four-section notes document. language may be empty.
func BuildNotesPrompt(transcription, language string) string {
	languageRule := ""
	if language != "" {
		languageRule = fmt.Sprintf("- Write the notes in %s, the language of the lecture.\n", language)
	}

	return fmt.Sprintf(`You are a diligent top student in a computer science course. You turn lecture transcriptions into detailed, well-structured study notes, and you like to add code examples and the math and science background a reader needs.

This is the lecture transcription:
<lecture_transcription>
%s
</lecture_transcription>

Structure the notes in exactly these sections:
1. Lecture Title
2. Prerequisite Concepts
3. Detailed Notes
4. Code Examples

1. Lecture Title:
   - Take or infer the main topic of the lecture and state it as a short, clear title.

2. Prerequisite Concepts:
   - Explain the concepts a student should already know before studying this material.

3. Detailed Notes:
   - Organize the lecture content into logical sections and subsections.
   - Use markdown headers (# for sections, ## for subsections).
   - Keep every important point, definition and explanation from the lecture.
   - Write mathematics with markdown math notation (for example $a^2 + b^2 = c^2$).
   - Use bullet points or numbered lists where the lecture enumerates things.
   - Keep the examples and analogies the lecturer used.

4. Code Examples:
   - Write code examples for the prerequisite concepts and for the lecture content.
   - Keep them relevant, clear and commented.
   - Put code in fenced markdown code blocks with a language tag (for example `+"```python"+`).

General rules:
- Use markdown throughout.
- Be concise but complete.
- Reflect the lecture faithfully and do not add outside material.
- If parts of the transcription are unclear, say so in the detailed notes.
%s`, transcription, languageRule)
}

// OpenAINotesOptions configures the chat completion backend.
type OpenAINotesOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAINotesGenerator generates notes with an OpenAI-compatible chat completion API.
type OpenAINotesGenerator struct {
	opts           OpenAINotesOptions
	detectLanguage LanguageDetector
}

// NewOpenAINotesGenerator creates a generator. The API key is checked on the
// first GenerateNotes call, not here. detector may be nil.
func NewOpenAINotesGenerator(opts OpenAINotesOptions, detector LanguageDetector) *OpenAINotesGenerator {
	if opts.Model == "" {
		opts.Model = openai.GPT4o
	}
	return &OpenAINotesGenerator{opts: opts, detectLanguage: detector}
}

func (g *OpenAINotesGenerator) GenerateNotes(ctx context.Context, transcription string, opts NotesOptions) (string, error) {
	if g.opts.APIKey == "" {
		return "", newStageError(ErrGeneration, StageGenerate, "", fmt.Errorf("authentication: OPENAI_API_KEY is not set"))
	}

	config := openai.DefaultConfig(g.opts.APIKey)
	if g.opts.BaseURL != "" {
		config.BaseURL = g.opts.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	// The client drops a zero temperature from the request.
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model: g.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: BuildNotesPrompt(transcription, detect(g.detectLanguage, transcription)),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: notesUserPrompt,
			},
		},
		MaxTokens:   maxTokensOrDefault(opts.MaxTokens),
		Temperature: temperature,
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", newStageError(ErrGeneration, StageGenerate, "", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", newStageError(ErrGeneration, StageGenerate, "", fmt.Errorf("empty response from %s", g.opts.Model))
	}

	return resp.Choices[0].Message.Content, nil
}

func detect(detector LanguageDetector, text string) string {
	if detector == nil {
		return ""
	}
	language, ok := detector(text)
	if !ok {
		return ""
	}
	return language
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return DefaultNotesOptions().MaxTokens
	}
	return n
}
