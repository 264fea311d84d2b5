package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gridci/internal/app"
	"github.com/specialistvlad/gridci/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "failed to set up test file")
	return path
}

func TestRun_PrintPipeline(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "ci.hcl", `
job "hello" {
  matrix {
    axis "os" { values = ["linux"] }
  }
  step "greet" {
    uses = "print"
    with {
      message = "hello from ${matrix.os}"
    }
  }
}
`)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"--log-format", "json", path})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[hello[os=linux]]")
	assert.Contains(t, out.String(), `message = "hello from linux"`)
}

func TestRun_FailedPipeline(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "ci.yaml", `
jobs:
  broken:
    steps:
      - uses: shell
        with: {run: "exit 3"}
`)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{path})
	var failed *app.PipelineFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{"broken"}, failed.Failed)
}

func TestRun_InvalidDefinition(t *testing.T) {
	t.Parallel()

	// Missing closing brace.
	path := writeFile(t, "main.hcl", `
job "a" {
  step "s" {
`)
	err := run(context.Background(), &bytes.Buffer{}, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse HCL file")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "flag provided but not defined: -this-is-not-a-valid-flag")
}
