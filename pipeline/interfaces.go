// Package pipeline turns lecture videos into markdown study notes:
// discover videos, extract audio, transcribe it, generate notes and persist
// every artifact under a fixed output layout.
package pipeline

import "context"

// VideoFinder discovers video files below a root directory.
type VideoFinder interface {
	// FindVideos returns one record per matching file. The order carries no meaning.
	FindVideos(rootDir string) ([]MediaFile, error)
}

// AudioExtractor converts one video into one audio file.
type AudioExtractor interface {
	// ExtractAudio writes the audio track of videoFile to audioFile and
	// returns the path it actually wrote.
	ExtractAudio(ctx context.Context, videoFile, audioFile string) (string, error)
}

// AudioTranscriber turns one audio file into a Transcript.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audioFile string) (Transcript, error)
}

// NotesGenerator turns transcript text into a markdown notes document.
type NotesGenerator interface {
	GenerateNotes(ctx context.Context, transcription string, opts NotesOptions) (string, error)
}

// Publisher uploads a finished artifact to remote storage.
type Publisher interface {
	Publish(ctx context.Context, localPath, objectKey string) error
}

// NotesOptions tunes a single generation call.
type NotesOptions struct {
	MaxTokens   int
	Temperature float32
}

// DefaultNotesOptions asks for a deterministic generation of up to 8192 tokens.
func DefaultNotesOptions() NotesOptions {
	return NotesOptions{MaxTokens: 8192, Temperature: 0}
}
