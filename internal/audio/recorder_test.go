package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecorderProducesOutputFile(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir)

	recorder.encode = func(rawPath, sessionID string) (string, error) {
		data, err := os.ReadFile(rawPath)
		if err != nil {
			return "", err
		}
		out := filepath.Join(dir, sessionID+".mp3")
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return "", err
		}
		return out, nil
	}

	if err := recorder.StartSession("abc123"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if _, err := recorder.Sink().Write([]byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	path, err := recorder.EndSession()
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if path == "" {
		t.Fatal("expected output path")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output file failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected non-empty output file")
	}
}

func TestSinkOutsideSessionIsDropped(t *testing.T) {
	recorder := NewRecorder(t.TempDir())

	n, err := recorder.Sink().Write([]byte("ignored"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len("ignored") {
		t.Fatalf("expected full write, got %d", n)
	}

	path, err := recorder.EndSession()
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if path != "" {
		t.Fatalf("no session was started, got path %q", path)
	}
}

func TestRecorderCleansUpRawFile(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir)
	recorder.encode = func(rawPath, sessionID string) (string, error) {
		out := filepath.Join(dir, sessionID+".wav")
		return out, os.WriteFile(out, []byte("ok"), 0o644)
	}

	if err := recorder.StartSession("call1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, err := recorder.Sink().Write([]byte("hello-world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := recorder.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "call1.pcm")); !os.IsNotExist(err) {
		t.Fatal("raw pcm temp file must be removed after encoding")
	}
}

func TestWavHeaderLayout(t *testing.T) {
	header, err := wavHeader(1000, 16000, 1, 16)
	if err != nil {
		t.Fatalf("wavHeader failed: %v", err)
	}
	if len(header) != 44 {
		t.Fatalf("expected 44-byte header, got %d", len(header))
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		t.Fatalf("bad riff markers: %q %q", header[0:4], header[8:12])
	}
}
