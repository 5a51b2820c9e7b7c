package doctor_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/voiceapi/internal/doctor"
)

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	dir := t.TempDir()
	cfg := doctor.Config{
		Models: []doctor.ModelCheck{
			{Kind: "tts", Model: stubModel{name: "tts-http"}},
			{Kind: "vc", Model: nil},
		},
		Profiles:     func(context.Context) (int, error) { return 4, nil },
		WritableDirs: []string{filepath.Join(dir, "temp_audio")},
		DatasetsDir:  dir,
		Broker:       func(context.Context) error { return nil },
	}

	var out strings.Builder
	result := doctor.Run(context.Background(), cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	body := out.String()
	for _, want := range []string{
		"tts model (tts-http): ready",
		"vc model: disabled",
		"voice profiles: 4 available",
		"writable",
		"job broker: reachable",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
}

// ---------------------------------------------------------------------------
// model backends
// ---------------------------------------------------------------------------

func TestRun_ModelUnreachableFails(t *testing.T) {
	cfg := doctor.Config{
		Models: []doctor.ModelCheck{
			{Kind: "whisper", Model: stubModel{name: "whisper-server", err: errUnreachable}},
		},
	}

	var out strings.Builder
	result := doctor.Run(context.Background(), cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when a backend does not load")
	}

	if !hasFailureContaining(result.Failures(), "whisper-server") {
		t.Errorf("expected failure naming the backend, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// profiles, directories, broker
// ---------------------------------------------------------------------------

func TestRun_ProfileStoreErrorFails(t *testing.T) {
	cfg := doctor.Config{
		Profiles: func(context.Context) (int, error) { return 0, sentinelError("corrupt json") },
	}

	var out strings.Builder
	result := doctor.Run(context.Background(), cfg, &out)

	if !hasFailureContaining(result.Failures(), "voice profiles") {
		t.Errorf("expected profile failure, got: %v", result.Failures())
	}
}

func TestRun_WritableDirCreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	cfg := doctor.Config{WritableDirs: []string{dir}}

	var out strings.Builder
	result := doctor.Run(context.Background(), cfg, &out)

	if result.Failed() {
		t.Fatalf("unexpected failures: %v", result.Failures())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("directory was not created: %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("temp file left behind: %v", entries)
	}
}

func TestRun_WritableDirBlockedByFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := doctor.Config{WritableDirs: []string{file}}

	var out strings.Builder
	result := doctor.Run(context.Background(), cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when the directory path is a file")
	}
}

func TestRun_DatasetsDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		dir      string
		wantFail bool
	}{
		{"missing is fine", filepath.Join(t.TempDir(), "missing"), false},
		{"directory", t.TempDir(), false},
		{"file", file, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			result := doctor.Run(context.Background(), doctor.Config{DatasetsDir: tt.dir}, &out)

			if result.Failed() != tt.wantFail {
				t.Fatalf("Failed() = %v; want %v (%v)", result.Failed(), tt.wantFail, result.Failures())
			}
		})
	}
}

func TestRun_BrokerUnreachable(t *testing.T) {
	cfg := doctor.Config{Broker: func(context.Context) error { return errUnreachable }}

	var out strings.Builder
	result := doctor.Run(context.Background(), cfg, &out)

	if !hasFailureContaining(result.Failures(), "broker") {
		t.Errorf("expected broker failure, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// colour-coded output
// ---------------------------------------------------------------------------

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := doctor.Config{
		Models: []doctor.ModelCheck{
			{Kind: "tts", Model: stubModel{name: "tts-http"}},
			{Kind: "vc", Model: stubModel{name: "vc-http", err: errUnreachable}},
		},
	}

	var out strings.Builder
	doctor.Run(context.Background(), cfg, &out)

	body := out.String()
	if !strings.Contains(body, doctor.PassMark) {
		t.Errorf("output missing pass marker %q:\n%s", doctor.PassMark, body)
	}

	if !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing fail marker %q:\n%s", doctor.FailMark, body)
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	r.AddFailure("external")

	if !r.Failed() || r.Failures()[0] != "external" {
		t.Fatalf("AddFailure not recorded: %v", r.Failures())
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type stubModel struct {
	name string
	err  error
}

func (m stubModel) Name() string               { return m.name }
func (m stubModel) Load(context.Context) error { return m.err }

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

var errUnreachable = sentinelError("connection refused")

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}

	return false
}
