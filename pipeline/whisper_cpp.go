package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HugeFrog24/video-notes/executor"
)

// WhisperCppOptions configures a local whisper.cpp installation.
type WhisperCppOptions struct {
	BinaryPath string
	ModelsDir  string
	// Model is one of tiny, base, small, medium, large.
	Model string
	// Device is "cpu" to disable the GPU; anything else lets whisper.cpp
	// use acceleration when it was built with it.
	Device  string
	Threads int
}

// WhisperCppTranscriber runs whisper-cli and reads its JSON report.
type WhisperCppTranscriber struct {
	exec executor.Executor
	opts WhisperCppOptions
}

func NewWhisperCppTranscriber(exec executor.Executor, opts WhisperCppOptions) *WhisperCppTranscriber {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "whisper-cli"
	}
	if opts.Model == "" {
		opts.Model = "base"
	}
	return &WhisperCppTranscriber{exec: exec, opts: opts}
}

// ModelPath returns the ggml model file for the configured size.
func (t *WhisperCppTranscriber) ModelPath() string {
	name := t.opts.Model
	if name == "large" {
		name = "large-v3"
	}
	return filepath.Join(t.opts.ModelsDir, "ggml-"+name+".bin")
}

type whisperCppReport struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (t *WhisperCppTranscriber) Transcribe(ctx context.Context, audioFile string) (Transcript, error) {
	if _, err := os.Stat(audioFile); err != nil {
		return Transcript{}, newStageError(ErrFileSystem, StageTranscribe, audioFile, err)
	}

	tmpDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return Transcript{}, newStageError(ErrFileSystem, StageTranscribe, audioFile, err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "transcript")
	args := []string{
		"-m", t.ModelPath(),
		"-f", audioFile,
		"-l", "auto",
		"-oj",
		"-of", prefix,
		"-np",
	}
	if t.opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(t.opts.Threads))
	}
	if t.opts.Device == "cpu" {
		args = append(args, "-ng")
	}

	if _, err := t.exec.Execute(ctx, t.opts.BinaryPath, args...); err != nil {
		if ctx.Err() != nil {
			return Transcript{}, ctx.Err()
		}
		return Transcript{}, newStageError(ErrTranscription, StageTranscribe, audioFile, fmt.Errorf("whisper.cpp: %w", err))
	}

	data, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return Transcript{}, newStageError(ErrTranscription, StageTranscribe, audioFile, fmt.Errorf("read whisper report: %w", err))
	}

	var report whisperCppReport
	if err := json.Unmarshal(data, &report); err != nil {
		return Transcript{}, newStageError(ErrTranscription, StageTranscribe, audioFile, fmt.Errorf("parse whisper report: %w", err))
	}

	var text strings.Builder
	segments := make([]Segment, 0, len(report.Transcription))
	for _, s := range report.Transcription {
		text.WriteString(s.Text)
		segments = append(segments, Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  strings.TrimSpace(s.Text),
		})
	}

	language := report.Result.Language
	if language == "" {
		language = UnknownLanguage
	}

	return NewTranscript(strings.TrimSpace(text.String()), audioFile, language, segments, t.opts.Model)
}
