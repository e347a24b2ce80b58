package notify_socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/cipipe/internal/ctxlog"
)

// emit connects to the server, emits n and waits for the acknowledgement
// event when one is configured.
func emit(ctx context.Context, target Target, n Notification) error {
	logger := ctxlog.FromContext(ctx).With("url", target.URL, "event", target.Event)
	logger.Debug("Notification started")
	defer logger.Debug("Notification finished")

	parsedURL, err := url.Parse(target.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, target.Timeout)
	defer cancel()

	var isConnected atomic.Bool
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if target.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(target.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	payload := map[string]any{
		"run_id":  n.RunID,
		"result":  n.Result,
		"module":  n.Module,
		"kind":    n.Kind,
		"message": n.Message,
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Debug("Connected", "namespace", target.Namespace, "sid", io.Id())
		io.Emit(target.Event, payload)
		if target.AckEvent == "" {
			finish(nil)
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				finish(err)
				return
			}
		}
		finish(fmt.Errorf("connection failed"))
	})

	if target.AckEvent != "" {
		io.On(types.EventName(target.AckEvent), func(...any) {
			finish(nil)
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return fmt.Errorf("timed out after connecting while waiting for event '%s'", target.AckEvent)
		}
		return fmt.Errorf("timed out while waiting for initial connection")
	case err := <-done:
		return err
	}
}
