package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/HugeFrog24/video-notes/executor"
)

const probeWithAudio = `{"programs":[],"streams":[{"codec_name":"aac"}]}`

// ffmpegWritesOutput answers ffprobe with probe and creates the output file
// named by the last ffmpeg argument.
func ffmpegWritesOutput(probe string) func(name string, args []string) (string, error) {
	return func(name string, args []string) (string, error) {
		switch name {
		case "ffprobe":
			return probe, nil
		case "ffmpeg":
			out := args[len(args)-1]
			return "", os.WriteFile(out, []byte("mp3 data"), 0644)
		}
		return "", fmt.Errorf("unexpected command %s", name)
	}
}

func TestExtractAudio(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, filepath.Join(dir, "lecture.mp4"), "video")
	audio := filepath.Join(dir, "out", "audio", "lecture.mp3")

	exec := &fakeExecutor{run: ffmpegWritesOutput(probeWithAudio)}
	extractor := NewFFmpegAudioExtractor(exec, FFmpegOptions{Quality: 4})

	got, err := extractor.ExtractAudio(context.Background(), video, audio)
	if err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	if got != audio {
		t.Errorf("ExtractAudio() = %q, want %q", got, audio)
	}
	if _, err := os.Stat(audio); err != nil {
		t.Errorf("audio file not written: %v", err)
	}

	if len(exec.calls) != 2 {
		t.Fatalf("expected probe and ffmpeg calls, got %v", exec.calls)
	}
	ffmpegArgs := exec.calls[1][1:]
	if argAfter(ffmpegArgs, "-i") != video {
		t.Errorf("ffmpeg input = %q", argAfter(ffmpegArgs, "-i"))
	}
	if !containsArg(ffmpegArgs, "-vn") || argAfter(ffmpegArgs, "-acodec") != "libmp3lame" {
		t.Errorf("ffmpeg must drop video and encode mp3: %v", ffmpegArgs)
	}
	if argAfter(ffmpegArgs, "-q:a") != "4" {
		t.Errorf("ffmpeg quality = %q, want 4", argAfter(ffmpegArgs, "-q:a"))
	}
}

func TestExtractAudioOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, filepath.Join(dir, "lecture.mp4"), "video")
	audio := writeFile(t, filepath.Join(dir, "lecture.mp3"), "stale")

	exec := &fakeExecutor{run: ffmpegWritesOutput(probeWithAudio)}
	if _, err := NewFFmpegAudioExtractor(exec, FFmpegOptions{}).ExtractAudio(context.Background(), video, audio); err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}

	if !containsArg(exec.calls[1], "-y") {
		t.Error("ffmpeg must be told to overwrite")
	}
	data, _ := os.ReadFile(audio)
	if string(data) != "mp3 data" {
		t.Errorf("audio content = %q", data)
	}
}

func TestExtractAudioErrors(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, filepath.Join(dir, "lecture.mp4"), "video")

	tests := []struct {
		name       string
		video      string
		run        func(name string, args []string) (string, error)
		wantKind   error
		wantFFmpeg bool
	}{
		{
			name:     "missing video",
			video:    filepath.Join(dir, "missing.mp4"),
			wantKind: ErrFileSystem,
		},
		{
			name:  "probe fails",
			video: video,
			run: func(name string, args []string) (string, error) {
				return "", &executor.CommandError{Name: name, Err: errors.New("exit status 1"), Stderr: "Invalid data found when processing input"}
			},
			wantKind: ErrMediaDecode,
		},
		{
			name:     "no audio track",
			video:    video,
			run:      ffmpegWritesOutput(`{"programs":[],"streams":[]}`),
			wantKind: ErrMediaDecode,
		},
		{
			name:     "unparseable probe output",
			video:    video,
			run:      ffmpegWritesOutput("not json"),
			wantKind: ErrMediaDecode,
		},
		{
			name:  "ffmpeg fails",
			video: video,
			run: func(name string, args []string) (string, error) {
				if name == "ffprobe" {
					return probeWithAudio, nil
				}
				return "", &executor.CommandError{Name: name, Err: errors.New("exit status 1")}
			},
			wantKind:   ErrMediaDecode,
			wantFFmpeg: true,
		},
		{
			name:  "ffmpeg writes nothing",
			video: video,
			run: func(name string, args []string) (string, error) {
				if name == "ffprobe" {
					return probeWithAudio, nil
				}
				return "", nil
			},
			wantKind:   ErrMediaDecode,
			wantFFmpeg: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{run: tt.run}
			out := filepath.Join(t.TempDir(), "lecture.mp3")

			_, err := NewFFmpegAudioExtractor(exec, FFmpegOptions{}).ExtractAudio(context.Background(), tt.video, out)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("ExtractAudio() error = %v, want %v", err, tt.wantKind)
			}

			var stageErr *StageError
			if !errors.As(err, &stageErr) || stageErr.Stage != StageExtract || stageErr.Path != tt.video {
				t.Errorf("unexpected stage error %#v", stageErr)
			}
			if got := exec.callsTo("ffmpeg") > 0; got != tt.wantFFmpeg {
				t.Errorf("ffmpeg called = %v, want %v", got, tt.wantFFmpeg)
			}
		})
	}
}

func TestExtractAudioProbeErrorKeepsStderr(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, filepath.Join(dir, "broken.mp4"), "garbage")

	exec := &fakeExecutor{run: func(name string, args []string) (string, error) {
		return "", &executor.CommandError{Name: name, Err: errors.New("exit status 1"), Stderr: "moov atom not found"}
	}}

	_, err := NewFFmpegAudioExtractor(exec, FFmpegOptions{}).ExtractAudio(context.Background(), video, filepath.Join(dir, "broken.mp3"))
	var cmdErr *executor.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Stderr != "moov atom not found" {
		t.Errorf("error %v does not carry the command stderr", err)
	}
}

func TestExtractAudioCanceled(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, filepath.Join(dir, "lecture.mp4"), "video")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExecutor{run: func(name string, args []string) (string, error) {
		return "", context.Canceled
	}}
	_, err := NewFFmpegAudioExtractor(exec, FFmpegOptions{}).ExtractAudio(ctx, video, filepath.Join(dir, "lecture.mp3"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ExtractAudio() error = %v, want context.Canceled", err)
	}
}

func TestBatchExtract(t *testing.T) {
	dir := t.TempDir()
	var videos []MediaFile
	for _, name := range []string{"a.mp4", "b.mp4"} {
		media, err := NewMediaFile(writeFile(t, filepath.Join(dir, name), "video"))
		if err != nil {
			t.Fatal(err)
		}
		videos = append(videos, media)
	}

	outDir := filepath.Join(dir, "audio")
	var requested []string
	service := NewAudioConverterService(&MockAudioExtractor{
		ExtractAudioFunc: func(ctx context.Context, videoFile, audioFile string) (string, error) {
			requested = append(requested, audioFile)
			return audioFile, nil
		},
	})

	paths, err := service.BatchExtract(context.Background(), videos, outDir)
	if err != nil {
		t.Fatalf("BatchExtract() error = %v", err)
	}

	want := []string{filepath.Join(outDir, "a.mp3"), filepath.Join(outDir, "b.mp3")}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("BatchExtract() = %v, want %v", paths, want)
	}
	if len(requested) != 2 {
		t.Errorf("extractor called %d times", len(requested))
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		t.Errorf("output directory not created: %v", err)
	}
}

func TestBatchExtractStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	var videos []MediaFile
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		media, err := NewMediaFile(writeFile(t, filepath.Join(dir, name), "video"))
		if err != nil {
			t.Fatal(err)
		}
		videos = append(videos, media)
	}

	calls := 0
	wantErr := newStageError(ErrMediaDecode, StageExtract, videos[1].FullPath, fs.ErrInvalid)
	service := NewAudioConverterService(&MockAudioExtractor{
		ExtractAudioFunc: func(ctx context.Context, videoFile, audioFile string) (string, error) {
			calls++
			if videoFile == videos[1].FullPath {
				return "", wantErr
			}
			return audioFile, nil
		},
	})

	paths, err := service.BatchExtract(context.Background(), videos, filepath.Join(dir, "audio"))
	if err != wantErr {
		t.Fatalf("BatchExtract() error = %v, want the extractor error unchanged", err)
	}
	if paths != nil {
		t.Errorf("BatchExtract() paths = %v, want nil", paths)
	}
	if calls != 2 {
		t.Errorf("extractor called %d times, want 2", calls)
	}
}
