// Package http_request hands a step to an external runner over HTTP.
package http_request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/model"
)

// Module implements the executor.Module interface for this package.
type Module struct {
	// Client performs the requests; a client with a 30s timeout is used
	// when nil.
	Client *http.Client
}

// Register registers the action with the engine.
func (m *Module) Register(r *executor.Registry) {
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	r.Register("http_request", executor.AdapterFunc(func(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
		return run(ctx, client, env)
	}))
}

// run sends the request described by the inputs `url`, `method`, `body` and
// `expect_status`. A response whose status differs from the expectation (any
// 2xx when unset) fails the step. When `artifact` is set the response body is
// written under that name.
func run(ctx context.Context, client *http.Client, env *executor.Environment) (executor.Result, error) {
	url := env.Input("url", "")
	if url == "" {
		return executor.Result{}, fmt.Errorf("input 'url' is required")
	}
	method := strings.ToUpper(env.Input("method", http.MethodGet))
	logger := ctxlog.FromContext(ctx).With("action", "http_request", "instance", env.Instance)
	logger.Info("Making HTTP request", "method", method, "url", url)

	var body io.Reader
	if raw := env.Input("body", ""); raw != "" {
		body = strings.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return executor.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Gridci-Run", env.RunID)
	req.Header.Set("X-Gridci-Instance", env.Instance)
	if ct := env.Input("content_type", ""); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := client.Do(req)
	if err != nil {
		return executor.Result{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return executor.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if err := checkStatus(resp.StatusCode, env.Input("expect_status", "")); err != nil {
		return executor.Result{Output: string(bodyBytes)}, err
	}

	result := executor.Result{Output: resp.Status}
	if name := env.Input("artifact", ""); name != "" {
		result.Artifacts = map[string][]byte{name: bodyBytes}
	}
	return result, nil
}

func checkStatus(got int, expect string) error {
	if expect == "" {
		if got < 200 || got > 299 {
			return fmt.Errorf("unexpected status code %d", got)
		}
		return nil
	}
	want, err := strconv.Atoi(expect)
	if err != nil {
		return fmt.Errorf("invalid expect_status %q: %w", expect, err)
	}
	if got != want {
		return fmt.Errorf("unexpected status code %d, want %d", got, want)
	}
	return nil
}
