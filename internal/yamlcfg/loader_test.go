package yamlcfg

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/gridci/internal/config"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineYAML = `
	name: ci
	allow_failure: [bench]
	jobs:
	  lint:
	    steps:
	      - name: vet
	        uses: shell
	        with:
	          run: go vet ./...
	          count: 3
	  test:
	    needs: [lint]
	    condition: success() && trigger.branch == "main"
	    allow_failure: true
	    fail_fast: false
	    timeout: 10m
	    env:
	      GOFLAGS: -count=1
	    matrix:
	      axes:
	        python: [3.10, 3.9]
	        os: [linux, macos]
	      exclude:
	        - {os: macos, python: 3.9}
	      include:
	        - {python: 3.12, os: windows}
	    retry:
	      max_retries: 2
	      backoff: 5s
	    steps:
	      - name: unit
	        uses: shell
	        with:
	          run: "pytest # ${matrix.python}"
	        reads: [bin]
	        writes: [coverage]
	  all:
	    needs: [lint, test]
	    check:
	      allow_failure: [test]
`

func TestLoadFile(t *testing.T) {
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{"ci.yaml": pipelineYAML})
	path := filepath.Join(root, "ci.yaml")

	f, err := NewLoader().LoadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "ci", f.Name)
	assert.Equal(t, []string{"bench"}, f.AllowFailure)
	require.Len(t, f.Jobs, 3)
	assert.Equal(t, "lint", f.Jobs[0].ID)
	assert.Equal(t, "test", f.Jobs[1].ID)
	assert.Equal(t, "all", f.Jobs[2].ID)

	lint := f.Jobs[0]
	assert.Equal(t, path, lint.FSInformation.String())
	assert.Equal(t, map[string]string{"run": "go vet ./...", "count": "3"}, lint.Steps[0].With)

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
		{Name: "python", Values: []string{"3.10", "3.9"}},
		{Name: "os", Values: []string{"linux", "macos"}},
	}, test.Matrix.Axes)
	assert.Equal(t, []model.Combination{{{Name: "os", Value: "macos"}, {Name: "python", Value: "3.9"}}}, test.Matrix.Exclude)
	assert.Equal(t, []model.Combination{{{Name: "python", Value: "3.12"}, {Name: "os", Value: "windows"}}}, test.Matrix.Include)

	step := test.Steps[0]
	assert.Equal(t, model.StepDescriptor{
		Name:   "unit",
		Uses:   "shell",
		With:   map[string]string{"run": "pytest # ${matrix.python}"},
		Reads:  []string{"bin"},
		Writes: []string{"coverage"},
	}, step)

	all := f.Jobs[2]
	require.True(t, all.IsCheck())
	assert.Equal(t, []string{"test"}, all.Check.AllowFailure)
}

func TestLoadFile_Errors(t *testing.T) {
	ctx, _ := testutil.Context(t)

	cases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "syntax", src: "jobs: [", wantErr: "failed to decode YAML file"},
		{name: "unknown top-level key", src: "stages: {}", wantErr: "field stages not found"},
		{name: "jobs not a mapping", src: "jobs: [a, b]", wantErr: "jobs must be a mapping"},
		{
			name: "unknown job key",
			src: `
				jobs:
				  a:
				    depends_on: [b]
			`,
			wantErr: "field depends_on not found",
		},
		{
			name: "bad timeout",
			src: `
				jobs:
				  a:
				    timeout: soon
			`,
			wantErr: "invalid timeout",
		},
		{
			name: "bad backoff",
			src: `
				jobs:
				  a:
				    retry: {backoff: later}
			`,
			wantErr: "invalid retry.backoff",
		},
		{
			name: "non scalar include value",
			src: `
				jobs:
				  a:
				    matrix:
				      axes: {os: [linux]}
				      include:
				        - {os: [linux]}
			`,
			wantErr: `matrix.include[0]: value of "os" must be a scalar`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := testutil.WriteFiles(t, map[string]string{"bad.yml": tc.src})
			_, err := NewLoader().LoadFile(ctx, filepath.Join(root, "bad.yml"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadFile_Empty(t *testing.T) {
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{"empty.yaml": "# nothing yet"})

	f, err := NewLoader().LoadFile(ctx, filepath.Join(root, "empty.yaml"))
	require.NoError(t, err)
	assert.Empty(t, f.Jobs)
}

func TestLoad_MixedFormats(t *testing.T) {
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{
		"a.yml": `
			jobs:
			  build:
			    steps:
			      - uses: shell
			        with: {run: make}
		`,
		"b.yaml": `
			name: release
			jobs:
			  publish:
			    needs: [build]
		`,
	})

	p, err := config.Load(ctx, root, NewLoader())
	require.NoError(t, err)
	assert.Equal(t, "release", p.Name)
	assert.Equal(t, []string{"build", "publish"}, p.JobIDs())
	require.NoError(t, p.Validate())
}
