// Package ast groups a token stream into the shell's structural model: a
// Pipeline of Stages, each carrying its argv and redirections, per spec
// section 4.2 (the Parser component).
package ast

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shellkit/posh/internal/token"
)

// ErrEmptyStage is the underlying sentinel for every "empty stage" parse
// failure: an empty pipeline stage (e.g. "a || b"), a stage whose argv is
// empty once redirection targets are extracted, or a redirection operator
// with no following word.
var ErrEmptyStage = errors.New("syntax error near unexpected token")

// Redirection rebinds a stage's file descriptor to a target file.
type Redirection struct {
	FD     int
	Mode   token.Mode
	Target string
}

// Stage is one pipeline component: a non-empty argv plus its redirections.
type Stage struct {
	Argv         []string
	Redirections []Redirection
}

// Pipeline is an ordered, non-empty sequence of Stages joined left to right.
type Pipeline struct {
	Stages []Stage
}

// HomeDirFunc resolves the expansion target for a standalone leading tilde.
// Parse takes it as a parameter (rather than reading os.Getenv directly) so
// tests can supply a fixed value, mirroring the teacher parser's injectable
// newReader/newBuilder dependencies.
type HomeDirFunc func() string

// Parse groups a tokenized line into a Pipeline.
//
// Redir tokens are paired with the Word token that must immediately follow
// them and become Redirections on the current stage; the target word is
// removed from argv. Per spec 4.1's Design Notes, tilde expansion is
// performed uniformly here for any bare word that is exactly "~" or has the
// prefix "~/", rather than being special-cased inside the cd builtin.
func Parse(tokens []token.Token, home HomeDirFunc) (Pipeline, error) {
	groups := splitOnPipe(tokens)

	stages := make([]Stage, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 {
			return Pipeline{}, fmt.Errorf("%w `|'", ErrEmptyStage)
		}

		stage, err := parseStage(group, home)
		if err != nil {
			return Pipeline{}, err
		}

		stages = append(stages, stage)
	}

	return Pipeline{Stages: stages}, nil
}

func splitOnPipe(tokens []token.Token) [][]token.Token {
	var groups [][]token.Token
	var current []token.Token

	for _, tok := range tokens {
		if tok.Kind == token.Pipe {
			groups = append(groups, current)
			current = nil
			continue
		}
		current = append(current, tok)
	}
	groups = append(groups, current)

	return groups
}

func parseStage(tokens []token.Token, home HomeDirFunc) (Stage, error) {
	var stage Stage

	i := 0
	for i < len(tokens) {
		tok := tokens[i]

		switch tok.Kind {
		case token.Word:
			stage.Argv = append(stage.Argv, expandTilde(tok.Text, home))
			i++

		case token.Redir:
			if i+1 >= len(tokens) || tokens[i+1].Kind != token.Word {
				return Stage{}, fmt.Errorf("%w `newline'", ErrEmptyStage)
			}

			target := tokens[i+1].Text
			if target == "" {
				return Stage{}, fmt.Errorf("%w `newline'", ErrEmptyStage)
			}

			stage.Redirections = append(stage.Redirections, Redirection{
				FD:     tok.FD,
				Mode:   tok.Mode,
				Target: target,
			})
			i += 2

		default:
			i++
		}
	}

	if len(stage.Argv) == 0 {
		return Stage{}, fmt.Errorf("%w `newline'", ErrEmptyStage)
	}

	return stage, nil
}

func expandTilde(word string, home HomeDirFunc) string {
	if home == nil {
		return word
	}

	if word == "~" {
		if h := home(); h != "" {
			return h
		}
		return word
	}

	if strings.HasPrefix(word, "~/") {
		if h := home(); h != "" {
			return filepath.Join(h, word[2:])
		}
		return word
	}

	return word
}
