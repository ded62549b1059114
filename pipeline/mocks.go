package pipeline

import "context"

type MockVideoFinder struct {
	FindVideosFunc func(rootDir string) ([]MediaFile, error)
}

func (m *MockVideoFinder) FindVideos(rootDir string) ([]MediaFile, error) {
	return m.FindVideosFunc(rootDir)
}

type MockAudioExtractor struct {
	ExtractAudioFunc func(ctx context.Context, videoFile, audioFile string) (string, error)
}

func (m *MockAudioExtractor) ExtractAudio(ctx context.Context, videoFile, audioFile string) (string, error) {
	return m.ExtractAudioFunc(ctx, videoFile, audioFile)
}

type MockAudioTranscriber struct {
	TranscribeFunc func(ctx context.Context, audioFile string) (Transcript, error)
}

func (m *MockAudioTranscriber) Transcribe(ctx context.Context, audioFile string) (Transcript, error) {
	return m.TranscribeFunc(ctx, audioFile)
}

type MockNotesGenerator struct {
	GenerateNotesFunc func(ctx context.Context, transcription string, opts NotesOptions) (string, error)
}

func (m *MockNotesGenerator) GenerateNotes(ctx context.Context, transcription string, opts NotesOptions) (string, error) {
	return m.GenerateNotesFunc(ctx, transcription, opts)
}

type MockPublisher struct {
	PublishFunc func(ctx context.Context, localPath, objectKey string) error
}

func (m *MockPublisher) Publish(ctx context.Context, localPath, objectKey string) error {
	return m.PublishFunc(ctx, localPath, objectKey)
}
