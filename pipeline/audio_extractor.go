package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/HugeFrog24/video-notes/executor"
)

// AudioExtension is the extension of every extracted audio file.
const AudioExtension = ".mp3"

// FFmpegOptions locates the ffmpeg tools and sets the MP3 quality.
type FFmpegOptions struct {
	FFmpegPath  string
	FFprobePath string
	// Quality is the libmp3lame VBR quality, 0 (best) to 9.
	Quality int
}

// FFmpegAudioExtractor extracts MP3 audio with ffmpeg after checking with
// ffprobe that the input has an audio stream.
type FFmpegAudioExtractor struct {
	exec executor.Executor
	opts FFmpegOptions
}

func NewFFmpegAudioExtractor(exec executor.Executor, opts FFmpegOptions) *FFmpegAudioExtractor {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.Quality < 0 || opts.Quality > 9 {
		opts.Quality = 2
	}
	return &FFmpegAudioExtractor{exec: exec, opts: opts}
}

type probeResult struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

func (e *FFmpegAudioExtractor) ExtractAudio(ctx context.Context, videoFile, audioFile string) (string, error) {
	if _, err := os.Stat(videoFile); err != nil {
		return "", newStageError(ErrFileSystem, StageExtract, videoFile, err)
	}

	out, err := e.exec.Execute(ctx, e.opts.FFprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_name",
		"-of", "json",
		videoFile,
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", newStageError(ErrMediaDecode, StageExtract, videoFile, fmt.Errorf("probe: %w", err))
	}

	var probe probeResult
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return "", newStageError(ErrMediaDecode, StageExtract, videoFile, fmt.Errorf("parse probe output: %w", err))
	}
	if len(probe.Streams) == 0 {
		return "", newStageError(ErrMediaDecode, StageExtract, videoFile, fmt.Errorf("no audio track"))
	}

	if err := os.MkdirAll(filepath.Dir(audioFile), 0755); err != nil {
		return "", newStageError(ErrFileSystem, StageExtract, audioFile, err)
	}

	_, err = e.exec.Execute(ctx, e.opts.FFmpegPath,
		"-y",
		"-i", videoFile,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", strconv.Itoa(e.opts.Quality),
		audioFile,
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", newStageError(ErrMediaDecode, StageExtract, videoFile, fmt.Errorf("ffmpeg: %w", err))
	}

	if _, err := os.Stat(audioFile); err != nil {
		return "", newStageError(ErrMediaDecode, StageExtract, videoFile, fmt.Errorf("ffmpeg produced no output: %w", err))
	}

	return audioFile, nil
}

// AudioConverterService extracts audio for a batch of videos.
type AudioConverterService struct {
	extractor AudioExtractor
}

func NewAudioConverterService(extractor AudioExtractor) *AudioConverterService {
	return &AudioConverterService{extractor: extractor}
}

// BatchExtract writes "<stem>.mp3" into outputDir for every video, one at a
// time, and returns the written paths in input order. The first failure
// aborts the batch.
func (s *AudioConverterService) BatchExtract(ctx context.Context, videos []MediaFile, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, newStageError(ErrFileSystem, StageExtract, outputDir, err)
	}

	written := make([]string, 0, len(videos))
	for _, video := range videos {
		audioPath := filepath.Join(outputDir, video.Stem()+AudioExtension)
		path, err := s.extractor.ExtractAudio(ctx, video.FullPath, audioPath)
		if err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	return written, nil
}
