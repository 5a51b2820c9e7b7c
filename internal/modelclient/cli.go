package modelclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrEmptyOutput is returned when a model CLI exits cleanly without output.
var ErrEmptyOutput = errors.New("model CLI produced no output")

// CLI runs a model executable that writes its result to stdout.
type CLI struct {
	Path   string
	Stderr io.Writer
}

// Check verifies the executable resolves on PATH or as a file path.
func (c CLI) Check() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("executable path is not configured")
	}
	if _, err := exec.LookPath(c.Path); err != nil {
		return fmt.Errorf("executable %q not found: %w", c.Path, err)
	}
	return nil
}

// Run executes the CLI with args, feeding stdin, and returns stdout.
func (c CLI) Run(ctx context.Context, args []string, stdin string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Path, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(c.Stderr, &errBuf)
	} else {
		cmd.Stderr = &errBuf
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(errBuf.String())
		if msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", c.Path, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", c.Path, err)
	}
	if out.Len() == 0 {
		return nil, ErrEmptyOutput
	}

	return out.Bytes(), nil
}
