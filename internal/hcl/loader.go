package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/gridci/internal/config"
	"github.com/specialistvlad/gridci/internal/ctxlog"
)

// Loader reads `.hcl` definition files. It implements config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a Loader with its own parser cache.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string {
	return []string{".hcl"}
}

// LoadFile parses and decodes a single HCL definition file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding HCL definition file.", "path", path)

	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	out := &config.File{Path: path}
	if parsed.Pipeline != nil {
		out.Name = parsed.Pipeline.Name
		out.AllowFailure = parsed.Pipeline.AllowFailure
	}

	var all hcl.Diagnostics
	for _, j := range parsed.Jobs {
		job, diags := translateJob(j, file.Bytes, path)
		all = append(all, diags...)
		if job != nil {
			out.Jobs = append(out.Jobs, job)
		}
	}
	if all.HasErrors() {
		return nil, fmt.Errorf("error decoding jobs in file %s: %w", path, all)
	}

	logger.Debug("Successfully decoded HCL definition file.", "path", path, "jobs_found", len(out.Jobs))
	return out, nil
}
