// Package main implements the promptlint CLI, which validates prompt
// documents against a declarative rules file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes.
const (
	exitSuccess         = 0
	exitValidationError = 1
	exitConfigError     = 2
	exitFileNotFound    = 3
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitError carries the process exit code out of a command.
// A nil err means there is nothing further to print.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}

	// Anything without an exit code comes from cobra's flag and argument parsing.
	fmt.Fprintf(stderr, "Error: %v\n", err)
	fmt.Fprintln(stderr, cmd.UsageString())
	return exitConfigError
}
