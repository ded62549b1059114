package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HugeFrog24/video-notes/executor"
	openai "github.com/sashabaranov/go-openai"
)

// MaxUploadBytes is the largest file the hosted transcription API accepts.
const MaxUploadBytes = 25 * 1024 * 1024

// OpenAITranscriberOptions configures the OpenAI (or compatible) speech API.
type OpenAITranscriberOptions struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible server. Empty means the hosted API,
	// which only serves whisper-1.
	BaseURL string
	// Model is the speech model size requested from a compatible server.
	Model string
	// Files above MaxFileBytes are split into ChunkDuration pieces with ffmpeg.
	MaxFileBytes  int64
	ChunkDuration time.Duration
	FFmpegPath    string
	FFprobePath   string
}

// OpenAITranscriber transcribes through the audio transcription endpoint.
type OpenAITranscriber struct {
	exec executor.Executor
	opts OpenAITranscriberOptions
}

func NewOpenAITranscriber(exec executor.Executor, opts OpenAITranscriberOptions) *OpenAITranscriber {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = MaxUploadBytes
	}
	if opts.ChunkDuration <= 0 {
		opts.ChunkDuration = 10 * time.Minute
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	return &OpenAITranscriber{exec: exec, opts: opts}
}

// RequestModel is the model name sent with each request and recorded in the transcript.
func (t *OpenAITranscriber) RequestModel() string {
	if t.opts.BaseURL == "" || t.opts.Model == "" {
		return openai.Whisper1
	}
	return t.opts.Model
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioFile string) (Transcript, error) {
	info, err := os.Stat(audioFile)
	if err != nil {
		return Transcript{}, newStageError(ErrFileSystem, StageTranscribe, audioFile, err)
	}
	if t.opts.APIKey == "" {
		return Transcript{}, newStageError(ErrTranscription, StageTranscribe, audioFile, fmt.Errorf("OPENAI_API_KEY is not set"))
	}

	config := openai.DefaultConfig(t.opts.APIKey)
	if t.opts.BaseURL != "" {
		config.BaseURL = t.opts.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	chunks := []audioChunk{{path: audioFile}}
	if info.Size() > t.opts.MaxFileBytes {
		tmpDir, err := os.MkdirTemp("", "transcribe-chunks-*")
		if err != nil {
			return Transcript{}, newStageError(ErrFileSystem, StageTranscribe, audioFile, err)
		}
		defer os.RemoveAll(tmpDir)

		chunks, err = t.splitAudio(ctx, audioFile, tmpDir)
		if err != nil {
			return Transcript{}, newStageError(ErrTranscription, StageTranscribe, audioFile, fmt.Errorf("failed to split audio: %w", err))
		}
	}

	var fullTranscription strings.Builder
	var segments []Segment
	language := ""
	for _, chunk := range chunks {
		resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    t.RequestModel(),
			FilePath: chunk.path,
			Format:   openai.AudioResponseFormatVerboseJSON,
		})
		if err != nil {
			return Transcript{}, newStageError(ErrTranscription, StageTranscribe, audioFile, err)
		}

		fullTranscription.WriteString(strings.TrimSpace(resp.Text))
		fullTranscription.WriteString(" ")

		offset := chunk.start.Seconds()
		for _, s := range resp.Segments {
			segments = append(segments, Segment{
				Start: s.Start + offset,
				End:   s.End + offset,
				Text:  strings.TrimSpace(s.Text),
			})
		}
		if language == "" {
			language = resp.Language
		}
	}

	if language == "" {
		language = UnknownLanguage
	}

	return NewTranscript(strings.TrimSpace(fullTranscription.String()), audioFile, language, segments, t.RequestModel())
}

type audioChunk struct {
	path  string
	start time.Duration
}

// splitAudio cuts audioFile into 16 kHz mono WAV pieces of ChunkDuration.
func (t *OpenAITranscriber) splitAudio(ctx context.Context, audioFile, dir string) ([]audioChunk, error) {
	duration, err := t.audioDuration(ctx, audioFile)
	if err != nil {
		return nil, err
	}

	chunkSeconds := t.opts.ChunkDuration.Seconds()
	numChunks := int(math.Ceil(duration.Seconds() / chunkSeconds))
	if numChunks < 1 {
		numChunks = 1
	}

	chunks := make([]audioChunk, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := time.Duration(i) * t.opts.ChunkDuration
		chunkFile := filepath.Join(dir, fmt.Sprintf("%s_chunk_%d.wav", fileStem(audioFile), i))

		_, err := t.exec.Execute(ctx, t.opts.FFmpegPath,
			"-y",
			"-ss", strconv.FormatFloat(start.Seconds(), 'f', 3, 64),
			"-t", strconv.FormatFloat(chunkSeconds, 'f', 3, 64),
			"-i", audioFile,
			"-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1",
			chunkFile,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create audio chunk %d: %w", i, err)
		}

		chunks = append(chunks, audioChunk{path: chunkFile, start: start})
	}

	return chunks, nil
}

func (t *OpenAITranscriber) audioDuration(ctx context.Context, audioFile string) (time.Duration, error) {
	output, err := t.exec.Execute(ctx, t.opts.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioFile,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get audio duration: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse audio duration: %w", err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
