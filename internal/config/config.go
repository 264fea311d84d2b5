package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/fsutil"
	"github.com/specialistvlad/gridci/internal/model"
)

// File is the decoded content of a single definition file.
type File struct {
	Path string
	// Name is the pipeline name declared in the file, if any.
	Name         string
	AllowFailure []string
	Jobs         []*model.JobDefinition
}

// Loader decodes one definition file of a concrete format.
type Loader interface {
	// Extensions lists the file suffixes the loader understands, with the
	// leading dot.
	Extensions() []string
	LoadFile(ctx context.Context, path string) (*File, error)
}

// NoFilesError is returned when a directory holds no definition files.
type NoFilesError struct {
	Path       string
	Extensions []string
}

func (e *NoFilesError) Error() string {
	return fmt.Sprintf("no pipeline definitions (%s) found in %s", strings.Join(e.Extensions, ", "), e.Path)
}

// NameConflictError is returned when two files declare different pipeline
// names.
type NameConflictError struct {
	First, Second         string
	FirstPath, SecondPath string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("pipeline name %q in %s conflicts with %q in %s", e.Second, e.SecondPath, e.First, e.FirstPath)
}

// Load reads every definition file under path (a file or a directory) and
// merges them into one pipeline. Files are processed in lexical path order
// and jobs keep their in-file declaration order. When no file declares a
// name, the pipeline is named after path.
func Load(ctx context.Context, path string, loaders ...Loader) (*model.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading pipeline definitions.", "path", path)

	byExt := map[string]Loader{}
	var exts []string
	for _, l := range loaders {
		for _, ext := range l.Extensions() {
			if _, dup := byExt[ext]; dup {
				panic(fmt.Sprintf("config: extension %q registered by more than one loader", ext))
			}
			byExt[ext] = l
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)

	files, err := discover(path, exts)
	if err != nil {
		return nil, err
	}

	p := model.NewPipeline(defaultName(path))
	var namedBy string
	for _, file := range files {
		loader := byExt[matchExt(file, exts)]
		f, err := loader.LoadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if f.Name != "" {
			if namedBy != "" && f.Name != p.Name {
				return nil, &NameConflictError{First: p.Name, FirstPath: namedBy, Second: f.Name, SecondPath: file}
			}
			p.Name = f.Name
			namedBy = file
		}
		p.AllowFailure = append(p.AllowFailure, f.AllowFailure...)
		p.Jobs = append(p.Jobs, f.Jobs...)
		logger.Debug("Loaded definition file.", "file", file, "jobs", len(f.Jobs))
	}

	logger.Info("Pipeline definitions loaded.", "pipeline", p.Name, "files", len(files), "jobs", len(p.Jobs))
	return p, nil
}

func discover(path string, exts []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline path: %w", err)
	}
	if !info.IsDir() {
		if matchExt(path, exts) == "" {
			return nil, fmt.Errorf("unsupported pipeline file %s: expected one of %s", path, strings.Join(exts, ", "))
		}
		return []string{path}, nil
	}

	var files []string
	for _, ext := range exts {
		found, err := fsutil.FindFilesByExtension(path, ext)
		if err != nil {
			return nil, fmt.Errorf("failed to find pipeline files in %s: %w", path, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, &NoFilesError{Path: path, Extensions: exts}
	}
	sort.Strings(files)
	return files, nil
}

func matchExt(path string, exts []string) string {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return ext
		}
	}
	return ""
}

func defaultName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
