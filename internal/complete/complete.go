// Package complete implements the Line Editor & Completer's TAB contract
// (spec 4.7): building the candidate set, computing the longest common
// prefix, and running the two-TAB bell-then-list protocol the Python
// original's complete_command carries via function attributes
// (_last_tab_text, _last_tab_bell) — kept here as explicit struct fields
// per spec 9's "no global mutable state" redesign note, rather than
// package-level variables.
package complete

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shellkit/posh/internal/pathresolve"
)

// Engine implements github.com/chzyer/readline's AutoCompleter interface
// (Do(line []rune, pos int) (newLine [][]rune, length int)), so the
// two-TAB protocol runs inside the line editor's own read loop rather than
// through a separate completion callback wired in by hand.
//
// Out and Prompt are only needed when Engine is wired into an active
// readline.Instance: ringing the bell and printing the candidate list are
// side effects on the terminal, not text edits, exactly as the Python
// original's complete_command writes straight to sys.stdout rather than
// returning text for readline to insert. Tests that don't set Out instead
// observe the same moment via the Bell/Pending fields below.
type Engine struct {
	Builtins []string
	Path     pathresolve.List
	Out      io.Writer
	Prompt   string

	lastPrefix  string
	lastWasBell bool

	// Bell and Pending record, for tests, whether the most recent Do call
	// rang the bell or queued a candidate list — the same two events Do
	// also writes to Out when one is configured.
	Bell    bool
	Pending []string
}

// Do implements readline.AutoCompleter. line is the full input buffer (as
// runes) and pos is the cursor offset; only the single bare word ending at
// pos is completed, matching this shell's Non-goal of skipping anything
// beyond a single enumerated candidate lookup.
func (e *Engine) Do(line []rune, pos int) ([][]rune, int) {
	e.Pending = nil
	e.Bell = false

	prefix := currentWord(line, pos)

	candidates := e.candidates(prefix)
	if len(candidates) == 0 {
		e.ringBell()
		e.lastPrefix = ""
		e.lastWasBell = false
		return nil, 0
	}

	if len(candidates) == 1 {
		return [][]rune{[]rune(candidates[0][len(prefix):] + " ")}, len(prefix)
	}

	lcp := longestCommonPrefix(candidates)
	if len(lcp) > len(prefix) {
		e.lastPrefix = ""
		e.lastWasBell = false
		return [][]rune{[]rune(lcp[len(prefix):])}, len(prefix)
	}

	if e.lastPrefix == prefix && e.lastWasBell {
		e.listCandidates(candidates, line)
		e.lastWasBell = false
		return nil, 0
	}

	e.ringBell()
	e.lastPrefix = prefix
	e.lastWasBell = true
	return nil, 0
}

func (e *Engine) ringBell() {
	e.Bell = true
	if e.Out != nil {
		fmt.Fprint(e.Out, "\a")
	}
}

func (e *Engine) listCandidates(candidates []string, line []rune) {
	e.Pending = candidates
	if e.Out != nil {
		prompt := e.Prompt
		if prompt == "" {
			prompt = "$ "
		}
		fmt.Fprintf(e.Out, "\n%s\n%s%s", strings.Join(candidates, "  "), prompt, string(line))
	}
}

// candidates builds the deduplicated, sorted union of builtin names and
// PATH executables starting with prefix (spec 4.7 step 1).
func (e *Engine) candidates(prefix string) []string {
	set := map[string]struct{}{}

	for _, b := range e.Builtins {
		if strings.HasPrefix(b, prefix) {
			set[b] = struct{}{}
		}
	}

	for _, dir := range e.Path {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.Mode().IsRegular() || info.Mode()&0111 == 0 {
				continue
			}
			set[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func longestCommonPrefix(words []string) string {
	if len(words) == 0 {
		return ""
	}
	lcp := words[0]
	for _, w := range words[1:] {
		for !strings.HasPrefix(w, lcp) {
			lcp = lcp[:len(lcp)-1]
			if lcp == "" {
				return ""
			}
		}
	}
	return lcp
}

// currentWord returns the bare word ending at pos, scanning back to the
// previous space (or start of line).
func currentWord(line []rune, pos int) string {
	if pos > len(line) {
		pos = len(line)
	}
	start := pos
	for start > 0 && line[start-1] != ' ' {
		start--
	}
	return string(line[start:pos])
}
