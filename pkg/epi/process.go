package epi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kurobako-go/kurobako/pkg/kerrors"
)

// process owns the spawned child and the channel layered over its
// stdin/stdout. Killing it is the teardown path for both solver and
// problem hosts (§4.3 "drop").
type process struct {
	cmd     *exec.Cmd
	channel *channel

	closeOnce sync.Once
	closeErr  error
}

// spawn starts command with args in a fresh process group-less child,
// wiring its stdin/stdout through an NDJSON channel and forwarding its
// stderr directly to the host's own stderr.
func spawn(ctx context.Context, command string, args []string, env map[string]string, log *slog.Logger) (*process, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = os.Stderr
	if len(env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, kerrors.Wrap(kerrors.IoError, "open child stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, kerrors.Wrap(kerrors.IoError, "open child stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, kerrors.Wrapf(kerrors.IoError, err, "start external program %q", command)
	}

	return &process{
		cmd:     cmd,
		channel: newChannel(stdin, stdout, log),
	}, nil
}

// close kills the child if it is still running and waits for it to exit,
// per §4.3's "the host never waits for a graceful child exit on drop".
func (p *process) close() error {
	p.closeOnce.Do(func() {
		_ = p.cmd.Process.Kill()
		p.closeErr = p.cmd.Wait()
	})
	return nil
}

// embeddedScript materializes an inline script to a temp file, marks it
// executable, and returns a command/args pair that runs it directly —
// letting the embedded-script recipe variant reuse the same process/channel
// plumbing as the command variant (§6 "embedded-script transport").
func embeddedScript(interpreter, body string) (command string, args []string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "kurobako-script-")
	if err != nil {
		return "", nil, nil, kerrors.Wrap(kerrors.IoError, "create temp dir for embedded script", err)
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	ext := ".sh"
	if interpreter == "" && runtime.GOOS == "windows" {
		ext = ".bat"
	}
	path := filepath.Join(dir, "script"+ext)
	if err := os.WriteFile(path, []byte(body), 0o700); err != nil {
		cleanup()
		return "", nil, nil, kerrors.Wrap(kerrors.IoError, "write embedded script", err)
	}

	if interpreter != "" {
		parts := strings.Fields(interpreter)
		return parts[0], append(parts[1:], path), cleanup, nil
	}
	if runtime.GOOS == "windows" {
		return path, nil, cleanup, nil
	}
	return path, nil, cleanup, nil
}
