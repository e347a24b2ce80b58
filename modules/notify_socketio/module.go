// Package notify_socketio reports the outcome of a pipeline to a socket.io
// server when the pipeline is torn down.
package notify_socketio

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/pipeline"
)

const name = "notify-socketio"

// Notification is the payload emitted to the server.
type Notification = pipeline.Summary

// Target says where and how a notification is delivered.
type Target struct {
	URL                string
	Namespace          string
	Event              string
	AckEvent           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// PublishFunc delivers n to target.
type PublishFunc func(ctx context.Context, target Target, n Notification) error

// Module registers the notify-socketio module. Publish defaults to a
// socket.io client.
type Module struct {
	Publish PublishFunc
}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	publish := m.Publish
	if publish == nil {
		publish = emit
	}
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Emits the pipeline result to a socket.io server when the pipeline ends.",
		Group:       "notify",
		Options: []module.Option{
			{Name: "url", Short: "u", Required: true, Help: "Server URL, e.g. wss://ci.example.com/socket.io/."},
			{Name: "namespace", Default: "/", Help: "Socket.io namespace."},
			{Name: "event", Default: "pipeline-result", Help: "Event carrying the notification."},
			{Name: "ack-event", Help: "Wait for this event from the server before disconnecting."},
			{Name: "timeout", Default: "10s", Help: "Maximum time spent delivering the notification."},
			{Name: "insecure-skip-verify", Kind: module.Bool, Help: "Skip TLS certificate verification."},
		},
		New: func(base *module.Base) module.Module { return &notifier{Base: base, publish: publish} },
	})
}

type notifier struct {
	*module.Base
	publish PublishFunc
	target  Target
}

func (m *notifier) Sanity(context.Context) error {
	if _, err := url.Parse(m.Option("url")); err != nil {
		return failure.Wrap(failure.KindConfig, err, "invalid url")
	}
	timeout, err := time.ParseDuration(m.Option("timeout"))
	if err != nil || timeout <= 0 {
		return failure.Config("invalid timeout '%s'", m.Option("timeout"))
	}
	m.target = Target{
		URL:                m.Option("url"),
		Namespace:          m.Option("namespace"),
		Event:              m.Option("event"),
		AckEvent:           m.Option("ack-event"),
		Timeout:            timeout,
		InsecureSkipVerify: m.OptionBool("insecure-skip-verify"),
	}
	return nil
}

func (m *notifier) Execute(context.Context) error {
	m.Logger().Debug("Pipeline result will be sent on destroy", "url", m.target.URL, "event", m.target.Event)
	return nil
}

// Destroy sends the notification.
func (m *notifier) Destroy(ctx context.Context, f *failure.Failure) error {
	if m.target.URL == "" {
		// Options never got validated, there is nowhere to send to.
		return nil
	}
	n := pipeline.Summarize(m.RunID(), f)
	m.Logger().Info("📣 Sending pipeline result", "result", n.Result, "url", m.target.URL)
	if err := m.publish(ctx, m.target, n); err != nil {
		return fmt.Errorf("failed to send pipeline result: %w", err)
	}
	return nil
}
