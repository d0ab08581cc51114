// Package shell provides the shell facade: the REPL Driver (spec 4.8) that
// wires the tokenizer, parser, redirection applier, pipeline executor,
// builtin registry, history buffer, and line editor/completer together
// into a runnable interactive shell.
//
// # Basic usage
//
//	sh := shell.New(os.Stdin, os.Stdout, os.Stderr)
//	if err := sh.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Testing with custom streams
//
//	input := strings.NewReader("echo hello\n")
//	var stdout, stderr bytes.Buffer
//	sh := shell.New(input, &stdout, &stderr)
//	sh.Run()
//
// Run returns when the input reaches EOF. The exit builtin, by contrast,
// terminates the whole process with os.Exit after persisting history, so
// input fed to Run in a test should end with EOF rather than "exit".
//
// When stdin is not a terminal (a test's strings.Reader, or input
// redirected from a file), Run falls back to a plain line-at-a-time
// reader instead of the readline-backed line editor, preserving the
// teacher's documented "Testing with Custom Streams" behavior.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/shellkit/posh/internal/ast"
	"github.com/shellkit/posh/internal/builtin"
	"github.com/shellkit/posh/internal/complete"
	"github.com/shellkit/posh/internal/history"
	"github.com/shellkit/posh/internal/pathresolve"
	"github.com/shellkit/posh/internal/pipeline"
	"github.com/shellkit/posh/internal/redirect"
	"github.com/shellkit/posh/internal/token"
)

const prompt = "$ "

// lineSource abstracts how Run reads one logical line, so the REPL driver
// doesn't care whether it's backed by chzyer/readline or a plain
// bufio.Reader.
type lineSource interface {
	Readline() (string, error)
	Close() error
}

// Shell is a fully wired shell instance. Fields are unexported, matching
// the teacher's own encapsulation stance; use New to construct one.
type Shell struct {
	out io.Writer
	err io.Writer

	registry builtin.Registry
	path     pathresolve.List
	executor *pipeline.Executor
	hist     *history.Buffer
	histPath string

	reader lineSource
}

// New creates a Shell reading from in and writing to out/errw. PATH and
// HISTFILE are captured from the environment at construction time, exactly
// as the teacher's constructor captures PATH once.
func New(in io.Reader, out, errw io.Writer) *Shell {
	path := pathresolve.Parse(os.Getenv("PATH"))
	hist := history.New()

	histPath := os.Getenv("HISTFILE")
	if histPath != "" {
		if err := hist.Load(histPath); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(errw, "history: %s: %v\n", histPath, err)
		}
	}

	registry := builtin.New(path, hist)

	s := &Shell{
		out:      out,
		err:      errw,
		registry: registry,
		path:     path,
		hist:     hist,
		histPath: histPath,
		executor: &pipeline.Executor{
			Registry: registry,
			Path:     path,
			Opener:   redirect.DefaultFileOpener{},
		},
	}

	s.reader = newLineSource(in, out, registry, path)
	return s
}

// newLineSource picks the readline-backed editor when in is an interactive
// terminal (golang.org/x/term.IsTerminal), falling back to a plain
// bufio.Reader otherwise (SPEC_FULL 11).
func newLineSource(in io.Reader, out io.Writer, registry builtin.Registry, path pathresolve.List) lineSource {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		names := make([]string, 0, len(registry))
		for name := range registry {
			names = append(names, name)
		}
		names = append(names, "exit")

		engine := &complete.Engine{Builtins: names, Path: path, Out: out, Prompt: prompt}

		rl, err := readline.NewEx(&readline.Config{
			Prompt:       prompt,
			Stdin:        f,
			Stdout:       out,
			AutoComplete: engine,
		})
		if err == nil {
			return &readlineSource{rl: rl}
		}
	}

	return &bufioSource{r: bufio.NewReader(in), out: out}
}

// readlineSource wraps github.com/chzyer/readline; the bell-then-list
// protocol is handled entirely inside complete.Engine.Do as the line is
// being edited, so Readline itself is a thin pass-through.
type readlineSource struct {
	rl *readline.Instance
}

func (s *readlineSource) Readline() (string, error) {
	return s.rl.Readline()
}

func (s *readlineSource) Close() error { return s.rl.Close() }

// bufioSource reads newline-delimited lines from a plain reader, used for
// non-interactive input (tests, redirected stdin).
type bufioSource struct {
	r   *bufio.Reader
	out io.Writer
}

func (s *bufioSource) Readline() (string, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\n")
	if line == "" && err == io.EOF {
		return "", io.EOF
	}
	return line, nil
}

func (s *bufioSource) Close() error { return nil }

// Run starts the REPL loop (spec 4.8): print prompt, read one line, on EOF
// persist history and terminate 0, on a blank line loop, otherwise add to
// history, parse, execute, and surface errors to stderr without aborting
// the loop.
func (s *Shell) Run() error {
	defer s.reader.Close()

	for {
		line, err := s.reader.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			if err == readline.ErrInterrupt {
				continue
			}
			s.persistHistory()
			return nil
		}
		if err != nil {
			return err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		s.hist.Add(line)
		s.execute(line)
	}
}

func (s *Shell) execute(line string) {
	tokens, err := token.Tokenize(line)
	if err != nil {
		fmt.Fprintln(s.err, "posh:", err)
		return
	}

	p, err := ast.Parse(tokens, homeDir)
	if err != nil {
		fmt.Fprintln(s.err, "posh:", err)
		return
	}

	if len(p.Stages) == 1 && p.Stages[0].Argv[0] == "exit" {
		s.runExit(p.Stages[0].Argv[1:])
		return
	}

	if _, err := s.executor.Run(context.Background(), p, pipeline.StreamSet{
		Stdin:  os.Stdin,
		Stdout: s.out,
		Stderr: s.err,
	}); err != nil && err != pipeline.ErrNotFound {
		fmt.Fprintln(s.err, "posh:", err)
	}
}

func (s *Shell) runExit(args []string) {
	code, msg := builtin.ExitFunc(args, s.persistHistory)
	if msg != "" {
		fmt.Fprintln(s.err, msg)
	}
	os.Exit(code)
}

// homeDir resolves the expansion target for a bare leading tilde (spec
// 4.1), preferring HOME the same way the teacher's cd builtin did before
// tilde handling moved into internal/ast.
func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}

func (s *Shell) persistHistory() error {
	if s.histPath == "" {
		return nil
	}
	if err := s.hist.WriteAll(s.histPath); err != nil {
		fmt.Fprintf(s.err, "history: %s: %v\n", s.histPath, err)
		return err
	}
	return nil
}
