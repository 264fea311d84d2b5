package integration_tests

import (
	"testing"

	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/engine"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/status"
	"github.com/specialistvlad/gridci/internal/testutil"
	"github.com/specialistvlad/gridci/modules/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellModule_PassesArtifactsBetweenJobs(t *testing.T) {
	// --- Arrange ---
	p, err := load(t, map[string]string{
		"ci.hcl": `
			job "version" {
			  env = { RELEASE = "1.4.0" }
			  step "stamp" {
			    uses   = "shell"
			    with {
			      run = "printf '%s-%s' \"$RELEASE\" \"$GRIDCI_BRANCH\" > version"
			    }
			    writes = ["version"]
			  }
			}

			job "package" {
			  needs = ["version"]
			  step "bundle" {
			    uses   = "shell"
			    with {
			      run = "printf 'pkg:%s' \"$(cat version)\" > bundle"
			    }
			    reads  = ["version"]
			    writes = ["bundle"]
			  }
			}
		`,
	})
	require.NoError(t, err)

	ctx, _ := testutil.Context(t)
	registry := executor.NewRegistry()
	registry.RegisterModules(&shell.Module{})
	eng := engine.New(engine.Options{Registry: registry})

	// --- Act ---
	run, err := eng.Execute(ctx, p, condition.Trigger{Event: "push", Branch: "main"})

	// --- Assert ---
	require.NoError(t, err)
	rep, err := run.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.Succeeded, rep.Pipeline)

	payload, err := run.Artifacts().Get("bundle")
	require.NoError(t, err)
	assert.Equal(t, "pkg:1.4.0-main", string(payload))
}
