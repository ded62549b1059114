package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// fakeExecutor records every command and answers through run.
type fakeExecutor struct {
	calls [][]string
	run   func(name string, args []string) (string, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.run == nil {
		return "", nil
	}
	return f.run(name, args)
}

func (f *fakeExecutor) callsTo(name string) int {
	n := 0
	for _, call := range f.calls {
		if call[0] == name {
			n++
		}
	}
	return n
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func mustTranscript(t *testing.T, text, audioPath, language string, segments []Segment, model string) Transcript {
	t.Helper()
	tr, err := NewTranscript(text, audioPath, language, segments, model)
	if err != nil {
		t.Fatalf("NewTranscript() error = %v", err)
	}
	return tr
}
