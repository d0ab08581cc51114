// Command posh is an interactive command-line shell.
//
// It supports built-in commands (echo, exit, type, pwd, cd, history),
// external commands resolved via PATH, pipes, and stdout/stderr
// redirection. See pkg/shell for the REPL implementation.
//
// Start it interactively:
//
//	$ ./posh
//	$ echo "Hello, World!"
//	Hello, World!
//	$ exit
//
// Or feed it a script over stdin:
//
//	$ ./posh < script.sh
package main

import (
	"flag"
	"log"
	"os"

	"github.com/shellkit/posh/internal/builtin"
	"github.com/shellkit/posh/internal/history"
	"github.com/shellkit/posh/internal/pathresolve"
	"github.com/shellkit/posh/pkg/shell"
)

func main() {
	execBuiltin := flag.Bool("exec-builtin", false, "internal: run a single builtin against os.Stdin/Stdout/Stderr and exit")
	flag.Parse()

	if *execBuiltin {
		os.Exit(runExecBuiltin(flag.Args()))
	}

	s := shell.New(os.Stdin, os.Stdout, os.Stderr)
	if err := s.Run(); err != nil {
		log.Fatal(err)
	}
}

// runExecBuiltin implements the hidden --exec-builtin re-exec path
// (SPEC_FULL 10.4): the pipeline executor re-invokes this binary with this
// flag to isolate a builtin stage's mutations (cd, history) inside a
// throwaway child process. argv[0] is the builtin name; the rest are its
// arguments.
func runExecBuiltin(argv []string) int {
	if len(argv) == 0 {
		log.Fatal("--exec-builtin requires a builtin name")
	}

	name := argv[0]
	args := argv[1:]

	path := pathresolve.Parse(os.Getenv("PATH"))
	hist := history.New()
	if histPath := os.Getenv("HISTFILE"); histPath != "" {
		_ = hist.Load(histPath)
	}

	registry := builtin.New(path, hist)

	if name == "exit" {
		code, msg := builtin.ExitFunc(args, nil)
		if msg != "" {
			os.Stderr.WriteString(msg + "\n")
		}
		return code
	}

	desc, ok := registry[name]
	if !ok {
		os.Stderr.WriteString(name + ": not a builtin\n")
		return 1
	}

	return desc.Invoke(args, os.Stdin, os.Stdout, os.Stderr)
}
