package hcl

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/gridci/internal/config"
	"github.com/specialistvlad/gridci/internal/matrix"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
	"github.com/specialistvlad/gridci/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineHCL = `
	pipeline "ci" {
	  allow_failure = ["bench"]
	}

	job "lint" {
	  step "vet" {
	    uses = "shell"
	    with {
	      run     = "go vet ./..."
	      literal = "cost $${price}"
	      count   = 3
	    }
	  }
	}

	job "test" {
	  needs         = ["lint"]
	  condition     = "success() && trigger.branch == \"main\""
	  allow_failure = true
	  fail_fast     = false
	  timeout       = "10m"
	  env           = { GOFLAGS = "-count=1" }

	  matrix {
	    axis "os" { values = ["linux", "macos"] }
	    axis "go" { values = ["1.22", "1.23"] }
	    exclude {
	      os = "macos"
	      go = "1.22"
	    }
	    include {
	      os = "windows"
	      go = "1.23"
	    }
	  }

	  retry {
	    max_retries = 2
	    backoff     = "5s"
	  }

	  step "unit" {
	    uses = "shell"
	    with {
	      run = "go test ./... # ${matrix.os}"
	    }
	    reads  = ["bin"]
	    writes = ["coverage"]
	  }
	}

	job "all" {
	  needs = ["lint", "test"]
	  check {
	    allow_failure = ["test"]
	  }
	}
`

func TestLoadFile(t *testing.T) {
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{"ci.hcl": pipelineHCL})
	path := filepath.Join(root, "ci.hcl")

	f, err := NewLoader().LoadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "ci", f.Name)
	assert.Equal(t, []string{"bench"}, f.AllowFailure)
	require.Len(t, f.Jobs, 3)

	lint := f.Jobs[0]
	assert.Equal(t, "lint", lint.ID)
	assert.Equal(t, path, lint.FSInformation.String())
	require.Len(t, lint.Steps, 1)
	assert.Equal(t, map[string]string{
		"run":     "go vet ./...",
		"literal": "cost $${price}",
		"count":   "3",
	}, lint.Steps[0].With)
	assert.True(t, lint.FailFastEnabled())

	test := f.Jobs[1]
	assert.Equal(t, []string{"lint"}, test.Needs)
	assert.Equal(t, `success() && trigger.branch == "main"`, test.Condition)
	assert.True(t, test.AllowFailure)
	assert.False(t, test.FailFastEnabled())
	assert.Equal(t, 10*time.Minute, test.Timeout)
	assert.Equal(t, model.RetryPolicy{MaxRetries: 2, Backoff: 5 * time.Second}, test.Retry)
	assert.Equal(t, map[string]string{"GOFLAGS": "-count=1"}, test.Env)

	require.NotNil(t, test.Matrix)
	assert.Equal(t, []model.Axis{
		{Name: "os", Values: []string{"linux", "macos"}},
		{Name: "go", Values: []string{"1.22", "1.23"}},
	}, test.Matrix.Axes)
	assert.Equal(t, []model.Combination{{{Name: "os", Value: "macos"}, {Name: "go", Value: "1.22"}}}, test.Matrix.Exclude)
	assert.Equal(t, []model.Combination{{{Name: "os", Value: "windows"}, {Name: "go", Value: "1.23"}}}, test.Matrix.Include)

	step := test.Steps[0]
	assert.Equal(t, "unit", step.Name)
	assert.Equal(t, "shell", step.Uses)
	assert.Equal(t, []string{"bin"}, step.Reads)
	assert.Equal(t, []string{"coverage"}, step.Writes)
	assert.Equal(t, "go test ./... # ${matrix.os}", step.With["run"])

	all := f.Jobs[2]
	require.True(t, all.IsCheck())
	assert.Equal(t, []string{"test"}, all.Check.AllowFailure)
}

func TestLoadFile_InputsRenderPerInstance(t *testing.T) {
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{"ci.hcl": pipelineHCL})

	f, err := NewLoader().LoadFile(ctx, filepath.Join(root, "ci.hcl"))
	require.NoError(t, err)

	evalCtx := matrix.EvalContext(nodeid.New("test", nodeid.AxisValue{Name: "os", Value: "linux"}))
	out, err := matrix.Render(f.Jobs[1].Steps[0].With["run"], evalCtx, "run")
	require.NoError(t, err)
	assert.Equal(t, "go test ./... # linux", out)

	out, err = matrix.Render(f.Jobs[0].Steps[0].With["literal"], evalCtx, "literal")
	require.NoError(t, err)
	assert.Equal(t, "cost ${price}", out)
}

func TestLoadFile_Errors(t *testing.T) {
	ctx, _ := testutil.Context(t)

	cases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "syntax",
			src:     `job "a" {`,
			wantErr: "failed to parse HCL file",
		},
		{
			name:    "unknown block",
			src:     `stage "a" {}`,
			wantErr: "failed to decode HCL file",
		},
		{
			name: "bad timeout",
			src: `
				job "a" {
				  timeout = "soon"
				}
			`,
			wantErr: "Invalid timeout",
		},
		{
			name: "bad backoff",
			src: `
				job "a" {
				  retry {
				    backoff = "later"
				  }
				}
			`,
			wantErr: "Invalid retry backoff",
		},
		{
			name: "unquoted variable input",
			src: `
				job "a" {
				  step "s" {
				    uses = "print"
				    with {
				      os = matrix.os
				    }
				  }
				}
			`,
			wantErr: "Unsupported step input",
		},
		{
			name: "non scalar matrix value",
			src: `
				job "a" {
				  matrix {
				    axis "os" { values = ["linux"] }
				    include {
				      os = ["linux"]
				    }
				  }
				}
			`,
			wantErr: "Unsuitable matrix value",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := testutil.WriteFiles(t, map[string]string{"bad.hcl": tc.src})
			_, err := NewLoader().LoadFile(ctx, filepath.Join(root, "bad.hcl"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_DirectoryThroughConfig(t *testing.T) {
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{
		"10-build.hcl": `
			job "build" {
			  step "compile" { uses = "shell" }
			}
		`,
		"20-deploy.hcl": `
			pipeline "release" {}

			job "deploy" {
			  needs = ["build"]
			  gated = true
			}
		`,
	})

	p, err := config.Load(ctx, root, NewLoader())
	require.NoError(t, err)
	assert.Equal(t, "release", p.Name)
	assert.Equal(t, []string{"build", "deploy"}, p.JobIDs())
	assert.True(t, p.Jobs[1].Gated)
	require.NoError(t, p.Validate())
}
