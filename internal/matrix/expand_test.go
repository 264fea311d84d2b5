package matrix

import (
	"testing"

	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
	"github.com/specialistvlad/gridci/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(t *testing.T, job *model.JobDefinition) []string {
	t.Helper()
	instances, err := Expand(job)
	require.NoError(t, err)
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Key())
		assert.Equal(t, status.Pending, inst.Outcome())
	}
	return out
}

func TestExpand_NoMatrix(t *testing.T) {
	job := &model.JobDefinition{ID: "lint"}
	assert.Equal(t, []string{"lint"}, keys(t, job))
}

func TestExpand_CartesianOrder(t *testing.T) {
	job := &model.JobDefinition{
		ID: "test",
		Matrix: &model.MatrixSpec{Axes: []model.Axis{
			{Name: "os", Values: []string{"linux", "mac"}},
			{Name: "py", Values: []string{"3.9", "3.12"}},
		}},
	}

	expected := []string{
		"test[os=linux,py=3.9]",
		"test[os=linux,py=3.12]",
		"test[os=mac,py=3.9]",
		"test[os=mac,py=3.12]",
	}
	assert.Equal(t, expected, keys(t, job))
	// Expansion is deterministic across calls.
	assert.Equal(t, expected, keys(t, job))
}

func TestExpand_ExcludeAndInclude(t *testing.T) {
	job := &model.JobDefinition{
		ID: "test",
		Matrix: &model.MatrixSpec{
			Axes: []model.Axis{
				{Name: "os", Values: []string{"linux", "mac", "windows"}},
				{Name: "py", Values: []string{"3.9", "3.12"}},
			},
			Exclude: []model.Combination{
				{{Name: "os", Value: "windows"}},
				{{Name: "os", Value: "mac"}, {Name: "py", Value: "3.9"}},
			},
			Include: []model.Combination{
				{{Name: "os", Value: "windows"}, {Name: "py", Value: "3.12"}, {Name: "experimental", Value: "true"}},
			},
		},
	}

	assert.Equal(t, []string{
		"test[os=linux,py=3.9]",
		"test[os=linux,py=3.12]",
		"test[os=mac,py=3.12]",
		"test[os=windows,py=3.12,experimental=true]",
	}, keys(t, job))
}

func TestExpand_IncludeIsNeverExcluded(t *testing.T) {
	job := &model.JobDefinition{
		ID: "test",
		Matrix: &model.MatrixSpec{
			Axes:    []model.Axis{{Name: "os", Values: []string{"linux"}}},
			Exclude: []model.Combination{{{Name: "os", Value: "linux"}}},
			Include: []model.Combination{{{Name: "os", Value: "linux"}, {Name: "extra", Value: "1"}}},
		},
	}

	assert.Equal(t, []string{"test[os=linux,extra=1]"}, keys(t, job))
}

func TestExpand_EverythingExcluded(t *testing.T) {
	job := &model.JobDefinition{
		ID: "test",
		Matrix: &model.MatrixSpec{
			Axes:    []model.Axis{{Name: "os", Values: []string{"linux", "mac"}}},
			Exclude: []model.Combination{{{Name: "os", Value: "linux"}}, {{Name: "os", Value: "mac"}}},
		},
	}

	instances, err := Expand(job)
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestExpand_DuplicateInclude(t *testing.T) {
	job := &model.JobDefinition{
		ID: "test",
		Matrix: &model.MatrixSpec{
			Axes:    []model.Axis{{Name: "os", Values: []string{"linux"}}},
			Include: []model.Combination{{{Name: "os", Value: "linux"}}},
		},
	}

	_, err := Expand(job)
	assert.ErrorContains(t, err, "more than once")
}

func TestExpand_SubstitutesInputs(t *testing.T) {
	job := &model.JobDefinition{
		ID: "test",
		Matrix: &model.MatrixSpec{
			Axes: []model.Axis{{Name: "os", Values: []string{"linux", "mac"}}},
		},
		Steps: []model.StepDescriptor{{
			Name: "run",
			Uses: "shell",
			With: map[string]string{
				"run":   "make test OS=${matrix.os}",
				"label": "${job.id}/${matrix.os}",
				"plain": "echo hello",
			},
			Writes: []string{"report"},
		}},
	}
	instances, err := Expand(job)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	mac := instances[1]
	assert.Equal(t, "make test OS=mac", mac.Steps[0].With["run"])
	assert.Equal(t, "test/mac", mac.Steps[0].With["label"])
	assert.Equal(t, "echo hello", mac.Steps[0].With["plain"])
	assert.Equal(t, []string{"report"}, mac.Steps[0].Writes)

	// The job definition itself is left untouched.
	assert.Equal(t, "make test OS=${matrix.os}", job.Steps[0].With["run"])
}

func TestExpand_UndeclaredAxisReference(t *testing.T) {
	job := &model.JobDefinition{
		ID:    "lint",
		Steps: []model.StepDescriptor{{Uses: "shell", With: map[string]string{"run": "echo ${matrix.os}"}}},
	}

	_, err := Expand(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lint")
}

func TestRender_PlainString(t *testing.T) {
	out, err := Render("no templates here", EvalContext(nodeid.New("a")), "x")
	require.NoError(t, err)
	assert.Equal(t, "no templates here", out)
}
