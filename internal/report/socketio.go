package report

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	EventInstance    = "instance_event"
	EventRunFinished = "run_finished"
)

// Emitter is the part of a Socket.IO client the sink needs.
type Emitter interface {
	Emit(ev string, args ...any) error
}

// SocketIOSink pushes the event stream to a Socket.IO server, typically a
// dashboard.
type SocketIOSink struct {
	client Emitter
}

func NewSocketIOSink(client Emitter) *SocketIOSink {
	return &SocketIOSink{client: client}
}

func (s *SocketIOSink) InstanceEvent(_ context.Context, ev InstanceEvent) error {
	if err := s.client.Emit(EventInstance, ev); err != nil {
		return fmt.Errorf("emit %s: %w", EventInstance, err)
	}
	return nil
}

func (s *SocketIOSink) RunFinished(_ context.Context, summary RunSummary) error {
	if err := s.client.Emit(EventRunFinished, summary); err != nil {
		return fmt.Errorf("emit %s: %w", EventRunFinished, err)
	}
	return nil
}

// DialSocketIO connects a websocket-only client and waits for the connection
// to be established.
func DialSocketIO(ctx context.Context, rawURL, namespace string, timeout time.Duration) (*socket.Socket, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", rawURL)
	logger.Info("Creating new client instance...")

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return io, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}
