package gitsync

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandOutput captures what a child process wrote and how it exited.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an external command in dir.
// A non-zero exit is reported through ExitCode, not the error.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (CommandOutput, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (CommandOutput, error) {
	command := exec.CommandContext(ctx, name, args...)
	command.Dir = dir

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	output := CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		output.ExitCode = exitErr.ExitCode()
		return output, nil
	}
	if err != nil {
		output.ExitCode = -1
		return output, err
	}
	return output, nil
}
