package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UnknownLanguage is recorded when the speech model does not report a language.
const UnknownLanguage = "unknown"

// Segment is one timed span of a transcript. Start and End are in seconds.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript is the validated result of transcribing one audio file.
// Construct it with NewTranscript; the zero value is not a valid transcript.
type Transcript struct {
	text      string
	audioPath string
	language  string
	segments  []Segment
	model     string
}

// NewTranscript validates and builds a Transcript. Text, audio path and
// language must be non-empty.
func NewTranscript(text, audioPath, language string, segments []Segment, model string) (Transcript, error) {
	if text == "" {
		return Transcript{}, newStageError(ErrValidation, StageTranscribe, audioPath, fmt.Errorf("transcription text cannot be empty"))
	}
	if audioPath == "" {
		return Transcript{}, newStageError(ErrValidation, StageTranscribe, audioPath, fmt.Errorf("audio path cannot be empty"))
	}
	if language == "" {
		return Transcript{}, newStageError(ErrValidation, StageTranscribe, audioPath, fmt.Errorf("language cannot be empty"))
	}

	return Transcript{
		text:      text,
		audioPath: audioPath,
		language:  language,
		segments:  append([]Segment(nil), segments...),
		model:     model,
	}, nil
}

func (t Transcript) Text() string      { return t.text }
func (t Transcript) AudioPath() string { return t.audioPath }
func (t Transcript) Language() string  { return t.language }
func (t Transcript) Model() string     { return t.model }

// Segments returns a copy of the timed spans.
func (t Transcript) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// TranscriptFileName returns "<stem>_transcription.txt" for an audio path.
func TranscriptFileName(audioPath string) string {
	return fileStem(audioPath) + "_transcription.txt"
}

// TranscriptFile is the content of a persisted transcription file.
type TranscriptFile struct {
	Source   string
	Language string
	Model    string
	Text     string
}

const (
	headerSource   = "Transcription of "
	headerLanguage = "Language: "
	headerModel    = "Model: "
)

// FormatTranscript renders the transcription file content.
func FormatTranscript(t Transcript) string {
	var sb strings.Builder
	sb.WriteString(headerSource + filepath.Base(t.AudioPath()) + "\n")
	sb.WriteString(headerLanguage + t.Language() + "\n")
	sb.WriteString(headerModel + t.Model() + "\n")
	sb.WriteString("\n")
	sb.WriteString(t.Text())
	sb.WriteString("\n")
	return sb.String()
}

// WriteTranscriptFile writes t into dir and returns the file path.
func WriteTranscriptFile(dir string, t Transcript) (string, error) {
	path := filepath.Join(dir, TranscriptFileName(t.AudioPath()))
	if err := os.WriteFile(path, []byte(FormatTranscript(t)), 0644); err != nil {
		return "", newStageError(ErrFileSystem, StagePersist, path, err)
	}
	return path, nil
}

// ParseTranscript reverses FormatTranscript.
func ParseTranscript(content string) (TranscriptFile, error) {
	reader := bufio.NewReader(strings.NewReader(content))

	var header [4]string
	for i := range header {
		line, err := reader.ReadString('\n')
		if err != nil {
			return TranscriptFile{}, fmt.Errorf("truncated transcription header at line %d", i+1)
		}
		header[i] = strings.TrimSuffix(line, "\n")
	}

	file := TranscriptFile{}
	var ok bool
	if file.Source, ok = strings.CutPrefix(header[0], headerSource); !ok {
		return TranscriptFile{}, fmt.Errorf("missing %q header", strings.TrimSpace(headerSource))
	}
	if file.Language, ok = strings.CutPrefix(header[1], headerLanguage); !ok {
		return TranscriptFile{}, fmt.Errorf("missing %q header", strings.TrimSpace(headerLanguage))
	}
	if file.Model, ok = strings.CutPrefix(header[2], headerModel); !ok {
		return TranscriptFile{}, fmt.Errorf("missing %q header", strings.TrimSpace(headerModel))
	}
	if header[3] != "" {
		return TranscriptFile{}, fmt.Errorf("expected blank line after header")
	}

	var body strings.Builder
	if _, err := reader.WriteTo(&body); err != nil {
		return TranscriptFile{}, fmt.Errorf("read transcription body: %w", err)
	}
	file.Text = strings.TrimSuffix(body.String(), "\n")
	return file, nil
}

// ReadTranscriptFile loads a transcription file written by WriteTranscriptFile.
func ReadTranscriptFile(path string) (TranscriptFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TranscriptFile{}, newStageError(ErrFileSystem, StagePersist, path, err)
	}
	file, err := ParseTranscript(string(data))
	if err != nil {
		return TranscriptFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return file, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
