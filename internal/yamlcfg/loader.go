package yamlcfg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/specialistvlad/gridci/internal/config"
	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Name         string    `yaml:"name"`
	AllowFailure []string  `yaml:"allow_failure"`
	Jobs         yaml.Node `yaml:"jobs"`
}

type yamlJob struct {
	Needs        []string          `yaml:"needs"`
	Condition    string            `yaml:"condition"`
	AllowFailure bool              `yaml:"allow_failure"`
	FailFast     *bool             `yaml:"fail_fast"`
	Timeout      string            `yaml:"timeout"`
	Gated        bool              `yaml:"gated"`
	Env          map[string]string `yaml:"env"`
	Matrix       *yamlMatrix       `yaml:"matrix"`
	Retry        *yamlRetry        `yaml:"retry"`
	Check        *yamlCheck        `yaml:"check"`
	Steps        []yamlStep        `yaml:"steps"`
}

type yamlMatrix struct {
	Axes    yaml.Node   `yaml:"axes"`
	Include []yaml.Node `yaml:"include"`
	Exclude []yaml.Node `yaml:"exclude"`
}

type yamlRetry struct {
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"`
}

type yamlCheck struct {
	AllowFailure []string `yaml:"allow_failure"`
}

type yamlStep struct {
	Name   string            `yaml:"name"`
	Uses   string            `yaml:"uses"`
	With   map[string]string `yaml:"with"`
	Reads  []string          `yaml:"reads"`
	Writes []string          `yaml:"writes"`
}

// Loader reads `.yaml` and `.yml` definition files. It implements
// config.Loader.
type Loader struct{}

var _ config.Loader = Loader{}

// NewLoader creates a Loader.
func NewLoader() Loader {
	return Loader{}
}

// Extensions implements config.Loader.
func (Loader) Extensions() []string {
	return []string{".yaml", ".yml"}
}

// LoadFile decodes a single YAML definition file.
func (Loader) LoadFile(ctx context.Context, path string) (*config.File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding YAML definition file.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}

	var parsed yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}

	jobs, err := decodeJobs(&parsed.Jobs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}

	logger.Debug("Successfully decoded YAML definition file.", "path", path, "jobs_found", len(jobs))
	return &config.File{
		Path:         path,
		Name:         parsed.Name,
		AllowFailure: parsed.AllowFailure,
		Jobs:         jobs,
	}, nil
}

func decodeJobs(node *yaml.Node, path string) ([]*model.JobDefinition, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	pairs, err := mappingPairs(node, "jobs")
	if err != nil {
		return nil, err
	}

	jobs := make([]*model.JobDefinition, 0, len(pairs))
	for _, pair := range pairs {
		id := pair.key.Value
		var j yamlJob
		if err := decodeStrict(pair.value, &j); err != nil {
			return nil, fmt.Errorf("job %q: %w", id, err)
		}
		job, err := translateJob(id, &j, path)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func translateJob(id string, j *yamlJob, path string) (*model.JobDefinition, error) {
	job := &model.JobDefinition{
		ID:            id,
		Needs:         j.Needs,
		Condition:     j.Condition,
		AllowFailure:  j.AllowFailure,
		FailFast:      j.FailFast,
		Gated:         j.Gated,
		Env:           j.Env,
		FSInformation: model.NewFSInfo(path),
	}

	var err error
	if job.Timeout, err = parseDuration("timeout", j.Timeout); err != nil {
		return nil, err
	}
	if j.Retry != nil {
		job.Retry.MaxRetries = j.Retry.MaxRetries
		if job.Retry.Backoff, err = parseDuration("retry.backoff", j.Retry.Backoff); err != nil {
			return nil, err
		}
	}
	if j.Check != nil {
		job.Check = &model.CheckSpec{AllowFailure: j.Check.AllowFailure}
	}
	if j.Matrix != nil {
		if job.Matrix, err = translateMatrix(j.Matrix); err != nil {
			return nil, err
		}
	}

	for _, s := range j.Steps {
		job.Steps = append(job.Steps, model.StepDescriptor{
			Name:   s.Name,
			Uses:   s.Uses,
			With:   s.With,
			Reads:  s.Reads,
			Writes: s.Writes,
		})
	}
	return job, nil
}

func translateMatrix(m *yamlMatrix) (*model.MatrixSpec, error) {
	spec := &model.MatrixSpec{}

	if m.Axes.Kind != 0 {
		pairs, err := mappingPairs(&m.Axes, "matrix.axes")
		if err != nil {
			return nil, err
		}
		for _, pair := range pairs {
			var values []string
			if err := pair.value.Decode(&values); err != nil {
				return nil, fmt.Errorf("matrix axis %q: %w", pair.key.Value, err)
			}
			spec.Axes = append(spec.Axes, model.Axis{Name: pair.key.Value, Values: values})
		}
	}

	for i := range m.Include {
		c, err := combination(&m.Include[i], fmt.Sprintf("matrix.include[%d]", i))
		if err != nil {
			return nil, err
		}
		spec.Include = append(spec.Include, c)
	}
	for i := range m.Exclude {
		c, err := combination(&m.Exclude[i], fmt.Sprintf("matrix.exclude[%d]", i))
		if err != nil {
			return nil, err
		}
		spec.Exclude = append(spec.Exclude, c)
	}
	return spec, nil
}

func combination(node *yaml.Node, field string) (model.Combination, error) {
	pairs, err := mappingPairs(node, field)
	if err != nil {
		return nil, err
	}
	out := make(model.Combination, 0, len(pairs))
	for _, pair := range pairs {
		if pair.value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s: value of %q must be a scalar", field, pair.key.Value)
		}
		out = append(out, nodeid.AxisValue{Name: pair.key.Value, Value: pair.value.Value})
	}
	return out, nil
}

type pair struct {
	key, value *yaml.Node
}

// mappingPairs returns the entries of a mapping node in document order.
func mappingPairs(node *yaml.Node, field string) ([]pair, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping", field)
	}
	out := make([]pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, pair{key: node.Content[i], value: node.Content[i+1]})
	}
	return out, nil
}

// decodeStrict decodes node into v rejecting unknown fields.
func decodeStrict(node *yaml.Node, v any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}
