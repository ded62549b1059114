package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrFileSystem indicates a missing or unreadable path.
	ErrFileSystem = errors.New("file system error")

	// ErrMediaDecode indicates an unreadable video container or a missing audio track.
	ErrMediaDecode = errors.New("media decode error")

	// ErrTranscription indicates that the speech recognition call failed.
	ErrTranscription = errors.New("transcription error")

	// ErrGeneration indicates that the text generation call failed.
	ErrGeneration = errors.New("generation error")

	// ErrValidation indicates that a produced record violates its invariants.
	ErrValidation = errors.New("validation error")

	// ErrPublish indicates that uploading an artifact failed.
	ErrPublish = errors.New("publish error")
)

// Stage names a step of the per-video workflow.
type Stage string

const (
	StageDiscover   Stage = "discover"
	StageExtract    Stage = "extract_audio"
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate_notes"
	StagePersist    Stage = "persist"
	StagePublish    Stage = "publish"
)

// StageError is returned by every stage. It identifies the offending item and
// stage, matches its Kind with errors.Is and unwraps to the underlying cause.
type StageError struct {
	Kind  error
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Stage, e.Path)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error kind of e.
func (e *StageError) Is(target error) bool {
	return e.Kind == target
}

func newStageError(kind error, stage Stage, path string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Path: path, Err: err}
}
