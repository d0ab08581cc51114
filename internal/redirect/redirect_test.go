package redirect

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shellkit/posh/internal/ast"
	"github.com/shellkit/posh/internal/token"
)

func TestApply_NoRedirectionsReturnsBaseUnchanged(t *testing.T) {
	base := Bindings{Stdin: bytes.NewBufferString(""), Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	got, cleanup, err := Apply(nil, base, DefaultFileOpener{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if got.Stdout != base.Stdout || got.Stderr != base.Stderr {
		t.Fatalf("expected bindings unchanged")
	}
}

func TestApply_TruncateOpensForWriting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	base := Bindings{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	redirs := []ast.Redirection{{FD: 1, Mode: token.Truncate, Target: path}}

	bindings, cleanup, err := Apply(redirs, base, DefaultFileOpener{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	io.WriteString(bindings.Stdout, "hello")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", string(data))
	}
}

func TestApply_AppendPreservesExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(path, []byte("existing-"), 0644); err != nil {
		t.Fatal(err)
	}

	base := Bindings{Stdout: &bytes.Buffer{}}
	redirs := []ast.Redirection{{FD: 1, Mode: token.Append, Target: path}}

	bindings, cleanup, err := Apply(redirs, base, DefaultFileOpener{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	io.WriteString(bindings.Stdout, "new")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "existing-new" {
		t.Fatalf("expected append, got %q", string(data))
	}
}

func TestApply_MultipleSameFDOpensAllBindsLast(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	base := Bindings{Stdout: &bytes.Buffer{}}
	redirs := []ast.Redirection{
		{FD: 1, Mode: token.Truncate, Target: a},
		{FD: 1, Mode: token.Truncate, Target: b},
	}

	bindings, cleanup, err := Apply(redirs, base, DefaultFileOpener{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	io.WriteString(bindings.Stdout, "last")
	cleanup()

	if _, err := os.Stat(a); err != nil {
		t.Fatalf("expected a.txt to have been opened: %v", err)
	}

	data, err := os.ReadFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "last" {
		t.Fatalf("expected b.txt bound as stdout, got %q", string(data))
	}
}

type failingOpener struct{}

func (failingOpener) OpenWrite(name string, truncate bool) (io.WriteCloser, error) {
	return nil, errors.New("boom")
}

func TestApply_FailureClosesAlreadyOpenedAndReturnsBase(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")

	base := Bindings{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	redirs := []ast.Redirection{
		{FD: 1, Mode: token.Truncate, Target: good},
		{FD: 2, Mode: token.Truncate, Target: "whatever"},
	}

	opener := &mixedOpener{failAfter: 1}
	got, cleanup, err := Apply(redirs, base, opener)
	if err == nil {
		t.Fatalf("expected error")
	}
	if cleanup != nil {
		t.Fatalf("expected nil cleanup on failure")
	}
	if got.Stdout != base.Stdout {
		t.Fatalf("expected base bindings returned on failure")
	}
}

type mixedOpener struct {
	failAfter int
	calls     int
}

func (m *mixedOpener) OpenWrite(name string, truncate bool) (io.WriteCloser, error) {
	defer func() { m.calls++ }()
	if m.calls >= m.failAfter {
		return nil, errors.New("boom")
	}
	return DefaultFileOpener{}.OpenWrite(name, truncate)
}
