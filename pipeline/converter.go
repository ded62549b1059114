package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ItemState is the progress of one video through the workflow. Transitions
// only move forward; a new run starts again from StateDiscovered.
type ItemState string

const (
	StateDiscovered     ItemState = "discovered"
	StateAudioExtracted ItemState = "audio_extracted"
	StateTranscribed    ItemState = "transcribed"
	StateNotesGenerated ItemState = "notes_generated"
	StatePersisted      ItemState = "persisted"
)

// OutputLayout is the directory contract under an output root:
//
//	<root>/audio/<stem>.mp3
//	<root>/transcriptions/<stem>_transcription.txt
//	<root>/notes/<stem>_notes.md
type OutputLayout struct {
	Root string
}

func (l OutputLayout) AudioDir() string          { return filepath.Join(l.Root, "audio") }
func (l OutputLayout) TranscriptionsDir() string { return filepath.Join(l.Root, "transcriptions") }
func (l OutputLayout) NotesDir() string          { return filepath.Join(l.Root, "notes") }

func (l OutputLayout) AudioPath(stem string) string {
	return filepath.Join(l.AudioDir(), stem+AudioExtension)
}

func (l OutputLayout) TranscriptPath(stem string) string {
	return filepath.Join(l.TranscriptionsDir(), stem+"_transcription.txt")
}

func (l OutputLayout) NotesPath(stem string) string {
	return filepath.Join(l.NotesDir(), stem+"_notes.md")
}

// Create makes the three output directories.
func (l OutputLayout) Create() error {
	for _, dir := range []string{l.AudioDir(), l.TranscriptionsDir(), l.NotesDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return newStageError(ErrFileSystem, StagePersist, dir, err)
		}
	}
	return nil
}

// ConverterOptions wires the stages of a Converter. Publisher and Logger are optional.
type ConverterOptions struct {
	Finder       VideoFinder
	Extractor    AudioExtractor
	Transcriber  AudioTranscriber
	Generator    NotesGenerator
	Publisher    Publisher
	Logger       *zap.Logger
	NotesOptions NotesOptions
}

// Converter runs videos through extraction, transcription and notes
// generation, one at a time.
type Converter struct {
	finder        VideoFinder
	audio         *AudioConverterService
	transcription *TranscriptionService
	generator     NotesGenerator
	publisher     Publisher
	logger        *zap.Logger
	notesOptions  NotesOptions
}

func NewConverter(opts ConverterOptions) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		finder:        opts.Finder,
		audio:         NewAudioConverterService(opts.Extractor),
		transcription: NewTranscriptionService(opts.Transcriber),
		generator:     opts.Generator,
		publisher:     opts.Publisher,
		logger:        logger,
		notesOptions:  opts.NotesOptions,
	}
}

// ProcessSingleVideo runs one video through the whole workflow and returns
// the path of its notes file. Errors are logged and returned unchanged;
// files written before a failure stay on disk.
func (c *Converter) ProcessSingleVideo(ctx context.Context, videoPath, outputDir string) (string, error) {
	log := c.logger.With(zap.String("video", videoPath))
	log.Info("Processing video")

	video, err := NewMediaFile(videoPath)
	if err != nil {
		return "", c.fail(log, StageDiscover, videoPath, err)
	}

	layout := OutputLayout{Root: outputDir}
	if err := layout.Create(); err != nil {
		return "", c.fail(log, StagePersist, outputDir, err)
	}
	c.transition(log, StateDiscovered)

	audioPaths, err := c.audio.BatchExtract(ctx, []MediaFile{video}, layout.AudioDir())
	if err != nil {
		return "", c.fail(log, StageExtract, videoPath, err)
	}
	audioPath := audioPaths[0]
	log.Info("Created audio file", zap.String("audio", audioPath))
	c.transition(log, StateAudioExtracted)

	transcripts, err := c.transcription.BatchTranscribe(ctx, []string{audioPath}, layout.TranscriptionsDir())
	if err != nil {
		return "", c.fail(log, StageTranscribe, audioPath, err)
	}
	transcript := transcripts[0]
	transcriptPath := filepath.Join(layout.TranscriptionsDir(), TranscriptFileName(audioPath))
	log.Info("Created transcription",
		zap.String("transcription", transcriptPath),
		zap.String("language", transcript.Language()),
		zap.String("model", transcript.Model()),
	)
	c.transition(log, StateTranscribed)

	notes, err := c.generator.GenerateNotes(ctx, transcript.Text(), c.notesOptions)
	if err != nil {
		return "", c.fail(log, StageGenerate, videoPath, err)
	}
	c.transition(log, StateNotesGenerated)

	notesPath := layout.NotesPath(video.Stem())
	if err := os.WriteFile(notesPath, []byte(notes), 0644); err != nil {
		return "", c.fail(log, StagePersist, notesPath, newStageError(ErrFileSystem, StagePersist, notesPath, err))
	}
	log.Info("Generated notes", zap.String("notes", notesPath))
	c.transition(log, StatePersisted)

	if c.publisher != nil {
		for _, artifact := range []string{audioPath, transcriptPath, notesPath} {
			key := video.Stem() + "/" + filepath.Base(artifact)
			if err := c.publisher.Publish(ctx, artifact, key); err != nil {
				return "", c.fail(log, StagePublish, artifact, err)
			}
			log.Debug("Published artifact", zap.String("object", key))
		}
	}

	return notesPath, nil
}

// ProcessDirectory discovers videos below inputDir and processes them in
// order. An empty directory is not an error. The first failing video aborts
// the run; notes already written for earlier videos are kept.
func (c *Converter) ProcessDirectory(ctx context.Context, inputDir, outputDir string) ([]string, error) {
	log := c.logger.With(zap.String("directory", inputDir))
	log.Info("Processing directory")

	videos, err := c.finder.FindVideos(inputDir)
	if err != nil {
		return nil, c.fail(log, StageDiscover, inputDir, err)
	}

	if len(videos) == 0 {
		log.Warn("No videos found")
		return []string{}, nil
	}
	log.Info("Found videos to process", zap.Int("count", len(videos)))

	notesPaths := make([]string, 0, len(videos))
	for i, video := range videos {
		log.Info("Starting video",
			zap.Int("index", i+1),
			zap.Int("total", len(videos)),
			zap.String("video", video.FullPath),
		)
		notesPath, err := c.ProcessSingleVideo(ctx, video.FullPath, outputDir)
		if err != nil {
			log.Error("Aborting directory run", zap.Int("completed", len(notesPaths)), zap.Int("total", len(videos)))
			return nil, err
		}
		notesPaths = append(notesPaths, notesPath)
	}

	return notesPaths, nil
}

func (c *Converter) fail(log *zap.Logger, stage Stage, path string, err error) error {
	log.Error("Stage failed",
		zap.String("stage", string(stage)),
		zap.String("path", path),
		zap.Error(err),
	)
	return err
}

func (c *Converter) transition(log *zap.Logger, state ItemState) {
	log.Debug("Item state changed", zap.String("state", string(state)))
}
