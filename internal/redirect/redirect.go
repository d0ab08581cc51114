// Package redirect implements the Redirection Applier (spec 4.5): opening
// redirection targets and binding them onto a stage's fd-keyed I/O
// bindings, generalized from the teacher's fixed Stdout/Stderr pair
// (pkg/shell/redirections.go's IOBindings) to an fd-keyed map so the same
// applier serves any fd the tokenizer and parser recognize (spec's data
// model keeps fd extensible beyond {1,2}).
package redirect

import (
	"fmt"
	"io"
	"os"

	"github.com/shellkit/posh/internal/ast"
	"github.com/shellkit/posh/internal/token"
)

// Bindings holds the three standard streams for a stage's execution scope,
// plus any additional fds a redirection rebinds. Stdin/Stdout/Stderr mirror
// the teacher's IOBindings fields; Extra covers every redirected fd other
// than 1 and 2 (including 0) so the
// model stays open-ended the way spec 3's glossary describes fd.
type Bindings struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Extra  map[int]io.Writer
}

// FileOpener abstracts filesystem access so tests can substitute a fake,
// mirroring the teacher's FileOpener interface in pkg/shell/redirections.go.
type FileOpener interface {
	OpenWrite(name string, truncate bool) (io.WriteCloser, error)
}

// DefaultFileOpener opens real files on disk.
type DefaultFileOpener struct{}

// OpenWrite implements FileOpener using os.OpenFile with create-or-truncate
// or create-if-absent-append flags depending on mode.
func (DefaultFileOpener) OpenWrite(name string, truncate bool) (io.WriteCloser, error) {
	flag := os.O_CREATE | os.O_WRONLY
	if truncate {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_APPEND
	}
	return os.OpenFile(name, flag, 0644)
}

// Apply opens every redirection target in order (even when several target
// the same fd) and returns Bindings with each fd bound to its
// last-opened file, per spec 4.5: "later redirections to the same fd
// override earlier ones, but all targets must still be opened". The
// returned cleanup closes every opened file regardless of which ended up
// bound; callers must invoke it once done with the bindings.
//
// If any target fails to open, every file opened so far is closed, the
// base bindings are returned unchanged, and the error identifies the
// failing target so the caller can report "<shell>: <path>: <reason>".
func Apply(redirections []ast.Redirection, base Bindings, opener FileOpener) (Bindings, func(), error) {
	if len(redirections) == 0 {
		return base, func() {}, nil
	}

	bindings := base
	if bindings.Extra == nil {
		bindings.Extra = map[int]io.Writer{}
	} else {
		extra := make(map[int]io.Writer, len(bindings.Extra))
		for k, v := range bindings.Extra {
			extra[k] = v
		}
		bindings.Extra = extra
	}

	var opened []io.Closer

	for _, r := range redirections {
		f, err := opener.OpenWrite(r.Target, r.Mode == token.Truncate)
		if err != nil {
			for _, c := range opened {
				c.Close()
			}
			return base, nil, fmt.Errorf("%s: %w", r.Target, err)
		}
		opened = append(opened, f)

		switch r.FD {
		case 1:
			bindings.Stdout = f
		case 2:
			bindings.Stderr = f
		default:
			bindings.Extra[r.FD] = f
		}
	}

	cleanup := func() {
		for _, c := range opened {
			c.Close()
		}
	}

	return bindings, cleanup, nil
}
