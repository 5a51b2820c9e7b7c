// Package doctor provides environment preflight checks for voiceapi.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Model is a backend whose readiness doctor checks. It matches the Name and
// Load methods of the tts, vc and transcribe models.
type Model interface {
	Name() string
	Load(ctx context.Context) error
}

// ModelCheck names a configured backend. A nil Model means the backend is
// disabled.
type ModelCheck struct {
	Kind  string
	Model Model
}

// Config holds injectable dependencies for each doctor check.
type Config struct {
	Models []ModelCheck
	// Profiles counts the stored voice profiles.
	Profiles func(ctx context.Context) (int, error)
	// WritableDirs are created if missing and tested with a temp file.
	WritableDirs []string
	// DatasetsDir is optional; a missing directory only disables batch jobs.
	DatasetsDir string
	// Broker pings the batch job broker. Nil means in-process jobs.
	Broker func(ctx context.Context) error
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(w io.Writer, label string, err error) {
	r.failures = append(r.failures, fmt.Sprintf("%s: %v", label, err))
	fmt.Fprintf(w, "%s %s: %v\n", FailMark, label, err)
}

func pass(w io.Writer, label, detail string) {
	fmt.Fprintf(w, "%s %s: %s\n", PassMark, label, detail)
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(ctx context.Context, cfg Config, w io.Writer) Result {
	var res Result

	for _, mc := range cfg.Models {
		label := mc.Kind + " model"
		if mc.Model == nil {
			pass(w, label, "disabled")
			continue
		}
		label += " (" + mc.Model.Name() + ")"
		if err := mc.Model.Load(ctx); err != nil {
			res.fail(w, label, err)
			continue
		}
		pass(w, label, "ready")
	}

	if cfg.Profiles != nil {
		n, err := cfg.Profiles(ctx)
		if err != nil {
			res.fail(w, "voice profiles", err)
		} else {
			pass(w, "voice profiles", fmt.Sprintf("%d available", n))
		}
	}

	for _, dir := range cfg.WritableDirs {
		label := "directory " + dir
		if err := checkWritable(dir); err != nil {
			res.fail(w, label, err)
			continue
		}
		pass(w, label, "writable")
	}

	if cfg.DatasetsDir != "" {
		label := "datasets " + cfg.DatasetsDir
		info, err := os.Stat(cfg.DatasetsDir)
		switch {
		case errors.Is(err, os.ErrNotExist):
			pass(w, label, "absent (batch processing has nothing to read)")
		case err != nil:
			res.fail(w, label, err)
		case !info.IsDir():
			res.fail(w, label, errors.New("not a directory"))
		default:
			pass(w, label, "present")
		}
	}

	if cfg.Broker != nil {
		if err := cfg.Broker(ctx); err != nil {
			res.fail(w, "job broker", err)
		} else {
			pass(w, "job broker", "reachable")
		}
	}

	return res
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(filepath.Clean(name))
}
