// Package config turns pipeline definition files into a model.Pipeline.
//
// The package is format agnostic. A Loader decodes one file of a concrete
// format (see the hcl and yamlcfg packages) into a File; Load discovers the
// files under a path, picks a loader by extension and merges the results in
// a stable order so that jobs can be split across many files.
package config
