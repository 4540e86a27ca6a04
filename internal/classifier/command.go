// Package classifier drives the local machine-learning model, which lives
// outside the process and is invoked as a command.
package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Command is an external program and its arguments
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one
	Dir string
	// Timeout bounds a single run; zero means unbounded
	Timeout time.Duration
}

// ParseCommand builds a Command from a program followed by its arguments
func ParseCommand(argv []string) (Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Command{}, errors.New("empty command")
	}
	return Command{Name: argv[0], Args: argv[1:]}, nil
}

// String renders the command line for logs
func (c Command) String() string {
	return fmt.Sprint(append([]string{c.Name}, c.Args...))
}

type runResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// run executes the command, feeding stdin when non-nil. A non-zero exit is
// reported as an error alongside the captured output.
func (c Command) run(ctx context.Context, stdin []byte) (runResult, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := runResult{stdout: stdout.String(), stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.exitCode = exitErr.ExitCode()
			return res, fmt.Errorf("%s exited with code %d: %w", c.Name, res.exitCode, err)
		}
		return res, fmt.Errorf("failed to run %s: %w", c.Name, err)
	}
	return res, nil
}
