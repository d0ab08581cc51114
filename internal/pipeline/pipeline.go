// Package pipeline implements the Pipeline Executor (spec 4.6): running a
// Pipeline of Stages, wiring redirections and pipes between them, and
// isolating builtin stages that run inside a multi-stage pipeline by
// re-executing the shell binary (spec 9's "fork-and-mutate" redesign — Go
// exposes no safe user-level fork, so a stage that must run a builtin
// out-of-process does so by re-invoking ReExecPath, os.Args[0] by default,
// with ReExecFlag instead of os.Fork()).
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/shellkit/posh/internal/ast"
	"github.com/shellkit/posh/internal/builtin"
	"github.com/shellkit/posh/internal/pathresolve"
	"github.com/shellkit/posh/internal/redirect"
)

// ErrNotFound mirrors the teacher's executor.ErrNotFound: returned when a
// stage's command cannot be resolved as a builtin or a PATH executable.
var ErrNotFound = fmt.Errorf("command not found")

// ReExecFlag is the hidden app/main.go flag used to isolate a builtin stage
// inside a multi-stage pipeline (SPEC_FULL 10.4).
const ReExecFlag = "--exec-builtin"

// Executor runs Pipelines. Registry supplies builtin lookup; Path resolves
// external commands; Opener opens redirection targets; ReExecPath is the
// binary to re-invoke for isolated builtin stages (normally os.Args[0]).
type Executor struct {
	Registry   builtin.Registry
	Path       pathresolve.List
	Opener     redirect.FileOpener
	ReExecPath string
}

// StreamSet is the pipeline-wide base streams: the REPL's own stdin,
// stdout, and stderr before any per-stage redirection or pipe wiring is
// applied.
type StreamSet struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes p against base and returns the exit code of its last stage,
// per spec 4.6's "the pipeline's exit code is the last stage's exit code".
func (e *Executor) Run(ctx context.Context, p ast.Pipeline, base StreamSet) (int, error) {
	if len(p.Stages) == 1 {
		return e.runSingle(ctx, p.Stages[0], base)
	}
	return e.runMulti(ctx, p.Stages, base)
}

// runSingle implements spec 4.6 cases 1 and 2: no pipe context, so a
// builtin stage runs in-process with its streams rebound for the
// redirection scope, and an external stage runs as a single child process.
func (e *Executor) runSingle(ctx context.Context, stage ast.Stage, base StreamSet) (int, error) {
	name := stage.Argv[0]
	args := stage.Argv[1:]

	bindings, cleanup, err := redirect.Apply(stage.Redirections, redirect.Bindings{
		Stdin:  base.Stdin,
		Stdout: base.Stdout,
		Stderr: base.Stderr,
	}, e.Opener)
	if err != nil {
		fmt.Fprintf(base.Stderr, "posh: %v\n", err)
		return 1, nil
	}
	defer cleanup()

	if desc, ok := e.Registry[name]; ok {
		code := desc.Invoke(args, bindings.Stdin, bindings.Stdout, bindings.Stderr)
		return code, nil
	}

	path, ok := e.Path.Resolve(name)
	if !ok {
		fmt.Fprintf(bindings.Stderr, "%s: command not found\n", name)
		return 127, ErrNotFound
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Args = append([]string{name}, args...)
	cmd.Stdin = bindings.Stdin
	cmd.Stdout = bindings.Stdout
	cmd.Stderr = bindings.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// runMulti implements spec 4.6 case 3: N-1 pipes wired stage to stage,
// every stage launched concurrently in its own goroutine, and each
// goroutine closing the parent's copies of its stage's pipe ends as soon as
// that stage finishes, so the next stage's reader sees EOF. runMulti
// returns once every stage has finished.
func (e *Executor) runMulti(ctx context.Context, stages []ast.Stage, base StreamSet) (int, error) {
	n := len(stages)
	readers := make([]*os.File, n-1)
	writers := make([]*os.File, n-1)
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			return -1, err
		}
		readers[i] = r
		writers[i] = w
	}

	type result struct {
		code int
		err  error
	}
	results := make([]result, n)
	done := make(chan int, n)

	for i, stage := range stages {
		i, stage := i, stage

		var stdin io.Reader = base.Stdin
		var stdout io.Writer = base.Stdout

		if i > 0 {
			stdin = readers[i-1]
		}
		if i < n-1 {
			stdout = writers[i]
		}

		go func() {
			defer func() {
				if i > 0 {
					readers[i-1].Close()
				}
				if i < n-1 {
					writers[i].Close()
				}
				done <- i
			}()

			code, err := e.runStage(ctx, stage, stdin, stdout, base.Stderr)
			results[i] = result{code: code, err: err}
		}()
	}

	for range stages {
		<-done
	}

	last := results[n-1]
	return last.code, last.err
}

// runStage executes one stage of a multi-stage pipeline. Builtins that
// mutate shared state (cd, history — Descriptor.InProcessSafe == false)
// are isolated by re-executing the shell binary (ReExecPath) with
// ReExecFlag so their mutations land in a throwaway child process rather
// than the shell's own address space, per spec 4.8's shared-resource
// policy; builtins with no shared-state side effects (echo, pwd, type)
// run in-process like any single-stage builtin. External stages spawn
// directly, same as the single-stage path.
func (e *Executor) runStage(ctx context.Context, stage ast.Stage, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	name := stage.Argv[0]
	args := stage.Argv[1:]

	bindings, cleanup, err := redirect.Apply(stage.Redirections, redirect.Bindings{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, e.Opener)
	if err != nil {
		fmt.Fprintf(stderr, "posh: %v\n", err)
		return 1, nil
	}
	defer cleanup()

	if desc, ok := e.Registry[name]; ok {
		if desc.InProcessSafe {
			return desc.Invoke(args, bindings.Stdin, bindings.Stdout, bindings.Stderr), nil
		}
		return e.runReExecedBuiltin(ctx, stage.Argv, bindings)
	}

	path, ok := e.Path.Resolve(name)
	if !ok {
		fmt.Fprintf(bindings.Stderr, "%s: command not found\n", name)
		return 127, ErrNotFound
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Args = append([]string{name}, args...)
	cmd.Stdin = bindings.Stdin
	cmd.Stdout = bindings.Stdout
	cmd.Stderr = bindings.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

func (e *Executor) runReExecedBuiltin(ctx context.Context, argv []string, bindings redirect.Bindings) (int, error) {
	reExecPath := e.ReExecPath
	if reExecPath == "" {
		reExecPath = os.Args[0]
	}

	cmdArgs := append([]string{ReExecFlag}, argv...)
	cmd := exec.CommandContext(ctx, reExecPath, cmdArgs...)
	cmd.Stdin = bindings.Stdin
	cmd.Stdout = bindings.Stdout
	cmd.Stderr = bindings.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}
