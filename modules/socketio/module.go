// Package socketio hands a step to a remote runner over Socket.IO: it
// connects, emits an event and waits for a reply event.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const defaultTimeout = 10 * time.Second

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers the action with the engine.
func (m *Module) Register(r *executor.Registry) {
	r.Register("socketio", executor.AdapterFunc(run))
}

// request is the decoded form of the step inputs.
type request struct {
	URL                *url.URL
	Namespace          string
	EmitEvent          string
	EmitData           any
	OnEvent            string
	FailEvent          string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Artifact           string
}

type opResult struct {
	data any
	err  error
}

func parseRequest(env *executor.Environment) (*request, error) {
	raw := env.Input("url", "")
	if raw == "" {
		return nil, fmt.Errorf("input 'url' is required")
	}
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	req := &request{
		URL:                parsedURL,
		Namespace:          env.Input("namespace", "/"),
		EmitEvent:          env.Input("emit_event", ""),
		OnEvent:            env.Input("on_event", ""),
		FailEvent:          env.Input("fail_event", ""),
		Timeout:            defaultTimeout,
		InsecureSkipVerify: env.Input("insecure_skip_verify", "false") == "true",
		Artifact:           env.Input("artifact", ""),
	}
	if req.OnEvent == "" {
		return nil, fmt.Errorf("input 'on_event' is required")
	}
	if data := env.Input("emit_data", ""); data != "" {
		if err := json.Unmarshal([]byte(data), &req.EmitData); err != nil {
			return nil, fmt.Errorf("emit_data is not valid JSON: %w", err)
		}
	}
	if t := env.Input("timeout", ""); t != "" {
		req.Timeout, err = time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timeout: %w", err)
		}
	}
	return req, nil
}

func run(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
	req, err := parseRequest(env)
	if err != nil {
		return executor.Result{}, err
	}
	logger := ctxlog.FromContext(ctx).With("action", "socketio", "url", req.URL.String(), "onEvent", req.OnEvent, "emitEvent", req.EmitEvent)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	var isConnected atomic.Bool
	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	opts.SetPath(req.URL.Path)
	if req.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", req.URL.Scheme, req.URL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(req.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	deliver := func(res opResult) {
		select {
		case done <- res:
		default:
		}
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Successfully connected", "namespace", req.Namespace, "sid", io.Id())
		if req.EmitEvent != "" {
			payload := map[string]any{
				"run_id":   env.RunID,
				"instance": env.Instance,
				"matrix":   env.Matrix,
				"data":     req.EmitData,
			}
			io.Emit(req.EmitEvent, payload)
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("socket.io connection failed")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = fmt.Errorf("socket.io connection failed: %w", e)
			}
		}
		deliver(opResult{err: err})
	})
	io.On(types.EventName(req.OnEvent), func(data ...any) {
		var response any
		if len(data) > 0 {
			response = data[0]
		}
		deliver(opResult{data: response})
	})
	if req.FailEvent != "" {
		io.On(types.EventName(req.FailEvent), func(data ...any) {
			deliver(opResult{err: fmt.Errorf("remote runner reported failure: %v", data)})
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return executor.Result{}, ctx.Err()
		}
		if isConnected.Load() {
			return executor.Result{}, fmt.Errorf("timed out after connecting while waiting for event '%s'", req.OnEvent)
		}
		return executor.Result{}, fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		if res.err != nil {
			return executor.Result{}, res.err
		}
		encoded, err := json.Marshal(res.data)
		if err != nil {
			return executor.Result{}, fmt.Errorf("failed to encode response: %w", err)
		}
		result := executor.Result{Output: string(encoded)}
		if req.Artifact != "" {
			result.Artifacts = map[string][]byte{req.Artifact: encoded}
		}
		return result, nil
	}
}
