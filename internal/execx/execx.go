package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external tool and returns its stdout. Implementations
// must return a *ToolError when the tool exits nonzero.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ToolError reports a failed external tool invocation.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	s := strings.TrimSpace(e.Stderr)
	if len(s) > 400 {
		s = s[len(s)-400:]
	}
	if s == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, s)
}

// System runs tools via os/exec. Every invocation gets a deadline so a hung
// tool fails the job instead of stalling the batch.
type System struct {
	Timeout time.Duration
}

func (s System) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out after %s", name, s.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &ToolError{Tool: name, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return nil, fmt.Errorf("run %s: %w", name, err)
}

// Available reports whether a tool can be found on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
