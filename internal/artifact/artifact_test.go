package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_WriteAndSave(t *testing.T) {
	root := filepath.Join(t.TempDir(), "temp_audio")
	d, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	path, err := d.Write("tts_abc.wav", []byte("RIFF"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != filepath.Join(root, "tts_abc.wav") {
		t.Errorf("path = %q", path)
	}

	path, err = d.Save("source_a.wav", strings.NewReader("0123456789"), 10)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "0123456789" {
		t.Errorf("saved = %q", data)
	}
}

func TestDir_SaveLimit(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := d.Save("big.wav", strings.NewReader("0123456789"), 5); err == nil {
		t.Fatal("expected size limit error")
	}
	if _, err := os.Stat(d.Path("big.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Error("oversized upload should be removed")
	}
}

func TestDir_RejectsTraversal(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, name := range []string{"", "..", "../x.wav", "a/b.wav", `a\b.wav`} {
		if _, err := d.Write(name, nil); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Write(%q) = %v, want ErrInvalidName", name, err)
		}
	}

	for _, key := range []string{"../escape.wav", "/abs.wav", "a/../../b"} {
		if err := d.Upload(context.Background(), key, nil); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Upload(%q) = %v, want ErrInvalidName", key, err)
		}
	}
}

func TestDir_UploadDownload(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	if err := d.Upload(ctx, "job-1/LJ001-0001.wav", []byte("wav")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	got, err := d.Download(ctx, "job-1/LJ001-0001.wav")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(got) != "wav" {
		t.Errorf("Download = %q", got)
	}
}

func TestUploadName(t *testing.T) {
	tests := map[string]string{
		"voice.wav":             "voice.wav",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\voice.wav`: "voice.wav",
		"":                      "upload",
		"..":                    "upload",
		"/":                     "upload",
	}
	for in, want := range tests {
		if got := UploadName(in); got != want {
			t.Errorf("UploadName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHashName(t *testing.T) {
	a := HashName("tts", "hello", "0.5", "0.5")
	b := HashName("tts", "hello", "0.5", "0.5")
	c := HashName("tts", "hello", "0.6", "0.5")

	if a != b {
		t.Errorf("HashName not deterministic: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different params must hash differently")
	}
	if !strings.HasPrefix(a, "tts_") || len(a) != len("tts_")+16 {
		t.Errorf("HashName = %q, want tts_ + 16 hex chars", a)
	}
}
