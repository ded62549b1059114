package pipeline

import (
	"context"
	"os"
)

// TranscriptionService transcribes batches of audio files and optionally
// persists each transcript as a text file.
type TranscriptionService struct {
	transcriber AudioTranscriber
}

func NewTranscriptionService(transcriber AudioTranscriber) *TranscriptionService {
	return &TranscriptionService{transcriber: transcriber}
}

// BatchTranscribe transcribes audioFiles in order. When outputDir is not
// empty, every transcript is written there as "<stem>_transcription.txt".
// The first failure aborts the batch.
func (s *TranscriptionService) BatchTranscribe(ctx context.Context, audioFiles []string, outputDir string) ([]Transcript, error) {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, newStageError(ErrFileSystem, StagePersist, outputDir, err)
		}
	}

	results := make([]Transcript, 0, len(audioFiles))
	for _, audioFile := range audioFiles {
		result, err := s.transcriber.Transcribe(ctx, audioFile)
		if err != nil {
			return nil, err
		}
		results = append(results, result)

		if outputDir != "" {
			if _, err := WriteTranscriptFile(outputDir, result); err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}
