package hcl

import "github.com/hashicorp/hcl/v2"

// hclFile is the top-level structure of a definition file.
type hclFile struct {
	Pipeline *hclPipeline `hcl:"pipeline,block"`
	Jobs     []*hclJob    `hcl:"job,block"`
}

type hclPipeline struct {
	Name         string   `hcl:"name,label"`
	AllowFailure []string `hcl:"allow_failure,optional"`
}

type hclJob struct {
	ID           string            `hcl:"id,label"`
	Needs        []string          `hcl:"needs,optional"`
	Condition    string            `hcl:"condition,optional"`
	AllowFailure bool              `hcl:"allow_failure,optional"`
	FailFast     *bool             `hcl:"fail_fast,optional"`
	Timeout      string            `hcl:"timeout,optional"`
	Gated        bool              `hcl:"gated,optional"`
	Env          map[string]string `hcl:"env,optional"`

	Matrix *hclMatrix `hcl:"matrix,block"`
	Retry  *hclRetry  `hcl:"retry,block"`
	Check  *hclCheck  `hcl:"check,block"`
	Steps  []*hclStep `hcl:"step,block"`

	DefRange hcl.Range `hcl:",def_range"`
}

type hclMatrix struct {
	Axes    []*hclAxis  `hcl:"axis,block"`
	Include []*hclTuple `hcl:"include,block"`
	Exclude []*hclTuple `hcl:"exclude,block"`
}

type hclAxis struct {
	Name   string   `hcl:"name,label"`
	Values []string `hcl:"values"`
}

// hclTuple is an include or exclude entry. Its attributes are read in
// source order.
type hclTuple struct {
	Body hcl.Body `hcl:",remain"`
}

type hclRetry struct {
	MaxRetries int    `hcl:"max_retries,optional"`
	Backoff    string `hcl:"backoff,optional"`
}

type hclCheck struct {
	AllowFailure []string `hcl:"allow_failure,optional"`
}

type hclStep struct {
	Name   string   `hcl:"name,label"`
	Uses   string   `hcl:"uses"`
	With   *hclWith `hcl:"with,block"`
	Reads  []string `hcl:"reads,optional"`
	Writes []string `hcl:"writes,optional"`
}

// hclWith holds the step inputs as raw attributes.
type hclWith struct {
	Body hcl.Body `hcl:",remain"`
}
