package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
)

const (
	DefaultTimeout = 15 * time.Second
	maxOutputBytes = 4096
)

// Runner executes revive side-effect commands directly, without a shell.
// Arguments are split on whitespace after placeholders are rendered.
type Runner struct {
	Timeout time.Duration
}

var _ ports.ProcessRunner = (*Runner)(nil)

func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{Timeout: timeout}
}

func (r *Runner) Run(ctx context.Context, command string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return errors.New("command is required")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output bytes.Buffer
	cmd := exec.CommandContext(runCtx, fields[0], fields[1:]...)
	cmd.Stdout = &limitedWriter{buf: &output, limit: maxOutputBytes}
	cmd.Stderr = cmd.Stdout

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.process"), slog.String("program", fields[0]))
	startedAt := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(startedAt)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("revive command %q timed out after %s", fields[0], timeout)
		}
		return errs.Wrapf(runErr, "revive command %q failed: %s", fields[0], strings.TrimSpace(output.String()))
	}

	logging.Debug(logCtx, "revive command finished", slog.Duration("elapsed", elapsed), slog.String("output", strings.TrimSpace(output.String())))
	return nil
}

type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
