// Package builtin implements the Builtin Registry (spec 4.4): a lookup
// table from name to a callable contract that takes post-expansion argv
// and three explicit stream handles, rather than closing over a shared
// *Shell the way the teacher's registerBuiltins does. This lets a pipeline
// stage invoke a builtin against whatever stdin/stdout/stderr the
// Redirection Applier or pipe wiring bound for that stage, in-process or
// re-executed, without any global mutable state.
package builtin

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shellkit/posh/internal/history"
	"github.com/shellkit/posh/internal/pathresolve"
)

// Func is the contract every builtin satisfies: post-expansion arguments
// plus three explicit streams, returning a process-style exit code.
type Func func(args []string, stdin io.Reader, stdout, stderr io.Writer) int

// Descriptor names a builtin and records whether it is safe to run
// in-process within the shell's own address space. cd and history mutate
// shared state (CWD, the in-memory HistoryBuffer) that only means anything
// to the parent process; per spec 4.8's shared-resource policy, a pipeline
// context must run them out-of-process instead, where their mutation is
// silently lost by design.
type Descriptor struct {
	Name          string
	Invoke        Func
	InProcessSafe bool
}

// Registry is a name -> Descriptor lookup table. Exit is special-cased by
// callers (it terminates the process), so it is not entered into Registry
// itself; ExitFunc below has its own signature (args plus a persist hook,
// returning a code and a message) and is called directly by pkg/shell and
// by the re-exec dispatch path in app/main.go.
type Registry map[string]Descriptor

// New builds the registry of required builtins (spec 4.4), wired against
// path for PATH resolution (type) and hist for the in-memory history
// buffer (history). No builtin does tilde handling of its own: cd receives
// an already-expanded path per SPEC_FULL's redesigned tilde rule.
func New(path pathresolve.List, hist *history.Buffer) Registry {
	r := Registry{}

	r["echo"] = Descriptor{Name: "echo", InProcessSafe: true, Invoke: echoFunc}
	r["pwd"] = Descriptor{Name: "pwd", InProcessSafe: true, Invoke: pwdFunc}
	r["cd"] = Descriptor{Name: "cd", InProcessSafe: false, Invoke: cdFunc}
	r["history"] = Descriptor{Name: "history", InProcessSafe: false, Invoke: historyFunc(hist)}
	r["type"] = Descriptor{Name: "type", InProcessSafe: true, Invoke: typeFunc(r, path)}

	return r
}

func echoFunc(args []string, _ io.Reader, stdout, _ io.Writer) int {
	fmt.Fprintln(stdout, strings.Join(args, " "))
	return 0
}

func pwdFunc(_ []string, _ io.Reader, stdout, stderr io.Writer) int {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(stderr, "pwd:", err)
		return 1
	}
	fmt.Fprintln(stdout, dir)
	return 0
}

func cdFunc(args []string, _ io.Reader, _ io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "cd: missing argument")
		return 1
	}

	target := args[0]
	if err := os.Chdir(target); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(stderr, "cd: %s: No such file or directory\n", target)
		} else if os.IsPermission(err) {
			fmt.Fprintf(stderr, "cd: %s: Permission denied\n", target)
		} else {
			fmt.Fprintf(stderr, "cd: %s: %v\n", target, err)
		}
		return 1
	}

	return 0
}

// typeFunc is built from the already-populated registry so that "type
// type" and friends report correctly; it does not mutate r after
// construction.
func typeFunc(r Registry, path pathresolve.List) Func {
	return func(args []string, _ io.Reader, stdout, stderr io.Writer) int {
		if len(args) == 0 {
			fmt.Fprintln(stderr, "type: usage: type NAME")
			return 1
		}

		code := 0
		for _, name := range args {
			if _, ok := r[name]; ok || name == "exit" {
				fmt.Fprintln(stdout, name, "is a shell builtin")
				continue
			}

			if resolved, ok := path.Resolve(name); ok {
				fmt.Fprintln(stdout, name, "is", resolved)
				continue
			}

			fmt.Fprintln(stderr, name+": not found")
			code = 1
		}
		return code
	}
}

func historyFunc(hist *history.Buffer) Func {
	return func(args []string, _ io.Reader, stdout, stderr io.Writer) int {
		if len(args) >= 2 {
			switch args[0] {
			case "-r":
				if err := hist.Load(args[1]); err != nil {
					fmt.Fprintln(stderr, "history:", err)
					return 1
				}
				return 0
			case "-a":
				if err := hist.AppendNew(args[1]); err != nil {
					fmt.Fprintln(stderr, "history:", err)
					return 1
				}
				return 0
			case "-w":
				if err := hist.WriteAll(args[1]); err != nil {
					fmt.Fprintln(stderr, "history:", err)
					return 1
				}
				return 0
			}
		}

		n := -1
		if len(args) == 1 {
			if parsed, err := strconv.Atoi(args[0]); err == nil {
				n = parsed
			}
		}

		for _, line := range hist.Format(n) {
			fmt.Fprintln(stdout, line)
		}
		return 0
	}
}

// ExitFunc implements the exit builtin's contract (spec 4.4): parse an
// optional integer argument (default 0), persisting history first via
// persist if provided. A non-integer argument reports exit code 2.
// Kept outside Registry because it never returns to the REPL loop; the
// caller is responsible for actually terminating the process with the
// returned code.
func ExitFunc(args []string, persist func() error) (code int, message string) {
	code = 0
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return 2, fmt.Sprintf("exit: %s: numeric argument required", args[0])
		}
		code = parsed
	}

	if persist != nil {
		_ = persist()
	}

	return code, ""
}
