package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const verboseTranscription = `{
  "task": "transcribe",
  "language": "english",
  "duration": 2.0,
  "text": " Hello class.",
  "segments": [{"id": 0, "seek": 0, "start": 0.0, "end": 2.0, "text": " Hello class."}]
}`

type transcriptionServer struct {
	*httptest.Server

	mu     sync.Mutex
	models []string
	files  []string
}

func newTranscriptionServer(t *testing.T, status int, body string) *transcriptionServer {
	t.Helper()
	s := &transcriptionServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("response_format") != "verbose_json" {
			http.Error(w, "expected verbose_json", http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.models = append(s.models, r.FormValue("model"))
		s.files = append(s.files, header.Filename)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *transcriptionServer) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.models)
}

func TestOpenAITranscriberTranscribe(t *testing.T) {
	server := newTranscriptionServer(t, http.StatusOK, verboseTranscription)
	audio := writeFile(t, filepath.Join(t.TempDir(), "lecture.mp3"), "mp3 data")

	exec := &fakeExecutor{}
	transcriber := NewOpenAITranscriber(exec, OpenAITranscriberOptions{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Model:   "small",
	})

	tr, err := transcriber.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if tr.Text() != "Hello class." {
		t.Errorf("Text() = %q", tr.Text())
	}
	if tr.Language() != "english" {
		t.Errorf("Language() = %q", tr.Language())
	}
	if tr.Model() != "small" {
		t.Errorf("Model() = %q", tr.Model())
	}
	if segments := tr.Segments(); len(segments) != 1 || segments[0].End != 2 {
		t.Errorf("Segments() = %+v", segments)
	}
	if server.models[0] != "small" {
		t.Errorf("requested model = %q", server.models[0])
	}
	if len(exec.calls) != 0 {
		t.Errorf("small files must not be split: %v", exec.calls)
	}
}

func TestOpenAITranscriberRequestModel(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		model   string
		want    string
	}{
		{"hosted api", "", "small", openai.Whisper1},
		{"compatible server", "http://localhost:8000/v1", "medium", "medium"},
		{"compatible server without model", "http://localhost:8000/v1", "", openai.Whisper1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcriber := NewOpenAITranscriber(&fakeExecutor{}, OpenAITranscriberOptions{BaseURL: tt.baseURL, Model: tt.model})
			if got := transcriber.RequestModel(); got != tt.want {
				t.Errorf("RequestModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenAITranscriberSplitsLargeFiles(t *testing.T) {
	server := newTranscriptionServer(t, http.StatusOK, verboseTranscription)
	audio := writeFile(t, filepath.Join(t.TempDir(), "long.mp3"), "a much longer recording")

	exec := &fakeExecutor{run: func(name string, args []string) (string, error) {
		switch name {
		case "ffprobe":
			return "1200.5\n", nil
		case "ffmpeg":
			return "", os.WriteFile(args[len(args)-1], []byte("wav"), 0644)
		}
		return "", errors.New("unexpected command")
	}}

	transcriber := NewOpenAITranscriber(exec, OpenAITranscriberOptions{
		APIKey:        "test-key",
		BaseURL:       server.URL + "/v1",
		MaxFileBytes:  4,
		ChunkDuration: 10 * time.Minute,
	})

	tr, err := transcriber.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if server.requests() != 3 {
		t.Fatalf("expected 3 chunk requests, got %d", server.requests())
	}
	for _, f := range server.files {
		if !strings.HasPrefix(f, "long_chunk_") || !strings.HasSuffix(f, ".wav") {
			t.Errorf("unexpected chunk file name %q", f)
		}
	}
	if tr.Text() != "Hello class. Hello class. Hello class." {
		t.Errorf("Text() = %q", tr.Text())
	}

	segments := tr.Segments()
	if len(segments) != 3 {
		t.Fatalf("Segments() = %+v", segments)
	}
	for i, want := range []float64{0, 600, 1200} {
		if segments[i].Start != want {
			t.Errorf("segment %d starts at %v, want %v", i, segments[i].Start, want)
		}
	}

	if exec.callsTo("ffmpeg") != 3 {
		t.Errorf("ffmpeg called %d times, want 3", exec.callsTo("ffmpeg"))
	}
	lastChunk := exec.calls[len(exec.calls)-1][1:]
	if argAfter(lastChunk, "-ss") != "1200.000" || argAfter(lastChunk, "-t") != "600.000" {
		t.Errorf("last chunk args = %v", lastChunk)
	}
}

func TestOpenAITranscriberErrors(t *testing.T) {
	dir := t.TempDir()
	audio := writeFile(t, filepath.Join(dir, "lecture.mp3"), "mp3")

	t.Run("missing audio", func(t *testing.T) {
		_, err := NewOpenAITranscriber(&fakeExecutor{}, OpenAITranscriberOptions{APIKey: "k"}).
			Transcribe(context.Background(), filepath.Join(dir, "missing.mp3"))
		if !errors.Is(err, ErrFileSystem) {
			t.Errorf("error = %v, want ErrFileSystem", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewOpenAITranscriber(&fakeExecutor{}, OpenAITranscriberOptions{}).
			Transcribe(context.Background(), audio)
		if !errors.Is(err, ErrTranscription) {
			t.Errorf("error = %v, want ErrTranscription", err)
		}
	})

	t.Run("api error", func(t *testing.T) {
		server := newTranscriptionServer(t, http.StatusInternalServerError,
			`{"error": {"message": "model overloaded", "type": "server_error"}}`)
		_, err := NewOpenAITranscriber(&fakeExecutor{}, OpenAITranscriberOptions{APIKey: "k", BaseURL: server.URL + "/v1"}).
			Transcribe(context.Background(), audio)
		if !errors.Is(err, ErrTranscription) {
			t.Fatalf("error = %v, want ErrTranscription", err)
		}
		if !strings.Contains(err.Error(), "model overloaded") {
			t.Errorf("error %q does not carry the API message", err)
		}
	})

	t.Run("empty transcript", func(t *testing.T) {
		server := newTranscriptionServer(t, http.StatusOK, `{"task":"transcribe","language":"english","text":""}`)
		_, err := NewOpenAITranscriber(&fakeExecutor{}, OpenAITranscriberOptions{APIKey: "k", BaseURL: server.URL + "/v1"}).
			Transcribe(context.Background(), audio)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("error = %v, want ErrValidation", err)
		}
	})

	t.Run("split fails", func(t *testing.T) {
		exec := &fakeExecutor{run: func(name string, args []string) (string, error) {
			return "N/A", nil
		}}
		_, err := NewOpenAITranscriber(exec, OpenAITranscriberOptions{APIKey: "k", MaxFileBytes: 1}).
			Transcribe(context.Background(), audio)
		if !errors.Is(err, ErrTranscription) {
			t.Errorf("error = %v, want ErrTranscription", err)
		}
	})
}
