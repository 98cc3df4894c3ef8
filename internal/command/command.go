// Package command runs external feedback commands (beep players, vibration
// helpers) configured in the device profile.
package command

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Default and max timeout for feedback commands.
const (
	DefaultTimeout = 2 * time.Second
	MaxTimeout     = 30 * time.Second
)

// Result holds the output of running a single command.
type Result struct {
	Output   string
	Err      error
	Duration time.Duration
}

// Execute runs a shell command with the given timeout and environment.
// The command is executed via "sh -c"; env is overlaid on the process
// environment.
func Execute(ctx context.Context, command string, timeout time.Duration, env map[string]string) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command) //nolint:gosec // commands come from the operator's device profile
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond // children of sh may hold the pipes open

	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	start := time.Now()
	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())
	if output == "" {
		output = strings.TrimSpace(stderr.String())
	}

	return Result{Output: output, Err: err, Duration: time.Since(start)}
}
