package builtin

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shellkit/posh/internal/history"
	"github.com/shellkit/posh/internal/pathresolve"
)

func TestEcho_JoinsArgsWithSpace(t *testing.T) {
	var out bytes.Buffer
	code := echoFunc([]string{"hello", "world"}, nil, &out, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if out.String() != "hello world\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestPwd_PrintsWorkingDirectory(t *testing.T) {
	want, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	code := pwdFunc(nil, nil, &out, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if out.String() != want+"\n" {
		t.Fatalf("expected %q, got %q", want+"\n", out.String())
	}
}

func TestCd_ChangesDirectory(t *testing.T) {
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	dir := t.TempDir()
	var errOut bytes.Buffer
	code := cdFunc([]string{dir}, nil, nil, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, errOut.String())
	}

	got, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// resolve symlinks (e.g. macOS /tmp) before comparing
	wantResolved, _ := filepath.EvalSymlinks(dir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != wantResolved {
		t.Fatalf("expected cwd %q, got %q", wantResolved, gotResolved)
	}
}

func TestCd_MissingDirectoryReportsError(t *testing.T) {
	var errOut bytes.Buffer
	code := cdFunc([]string{filepath.Join(t.TempDir(), "nope")}, nil, nil, &errOut)
	if code == 0 {
		t.Fatalf("expected nonzero exit code")
	}
	if errOut.Len() == 0 {
		t.Fatalf("expected an error message")
	}
}

func TestType_ReportsBuiltinAndExternalAndMissing(t *testing.T) {
	dir := t.TempDir()
	toolPath := filepath.Join(dir, "tool")
	if err := os.WriteFile(toolPath, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	r := New(pathresolve.List{dir}, history.New())

	var out, errOut bytes.Buffer
	code := r["type"].Invoke([]string{"echo", "tool", "nonesuch"}, nil, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit code 1 (nonesuch missing), got %d", code)
	}

	wantOut := "echo is a shell builtin\ntool is " + toolPath + "\n"
	if out.String() != wantOut {
		t.Fatalf("expected %q, got %q", wantOut, out.String())
	}
	if errOut.String() != "nonesuch: not found\n" {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestHistory_ListsFormattedEntries(t *testing.T) {
	hist := history.New()
	hist.Add("echo a")
	hist.Add("echo b")

	r := New(pathresolve.List{}, hist)

	var out bytes.Buffer
	code := r["history"].Invoke(nil, nil, &out, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	want := "    1  echo a\n    2  echo b\n"
	if out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
}

func TestHistory_WriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "histfile")

	hist := history.New()
	hist.Add("one")
	hist.Add("two")
	r := New(pathresolve.List{}, hist)

	if code := r["history"].Invoke([]string{"-w", path}, nil, nil, nil); code != 0 {
		t.Fatalf("expected exit code 0 for -w, got %d", code)
	}

	loaded := history.New()
	r2 := New(pathresolve.List{}, loaded)
	if code := r2["history"].Invoke([]string{"-r", path}, nil, nil, nil); code != 0 {
		t.Fatalf("expected exit code 0 for -r, got %d", code)
	}

	if loaded.Len() != 2 {
		t.Fatalf("expected 2 entries after round trip, got %d", loaded.Len())
	}
}

func TestExitFunc_DefaultsToZero(t *testing.T) {
	code, msg := ExitFunc(nil, nil)
	if code != 0 || msg != "" {
		t.Fatalf("expected code 0 and no message, got %d %q", code, msg)
	}
}

func TestExitFunc_ParsesIntegerArgument(t *testing.T) {
	code, msg := ExitFunc([]string{"7"}, nil)
	if code != 7 || msg != "" {
		t.Fatalf("expected code 7 and no message, got %d %q", code, msg)
	}
}

func TestExitFunc_NonIntegerArgumentReportsCode2(t *testing.T) {
	code, msg := ExitFunc([]string{"abc"}, nil)
	if code != 2 || msg == "" {
		t.Fatalf("expected code 2 with a message, got %d %q", code, msg)
	}
}

func TestExitFunc_CallsPersist(t *testing.T) {
	called := false
	ExitFunc(nil, func() error {
		called = true
		return nil
	})
	if !called {
		t.Fatalf("expected persist to be called")
	}
}
