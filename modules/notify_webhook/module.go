// Package notify_webhook posts the outcome of a pipeline to an HTTP endpoint
// when the pipeline is torn down.
package notify_webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/pipeline"
)

const name = "notify-webhook"

// maxErrorBody limits how much of a failed response ends up in the error.
const maxErrorBody = 512

// Module registers the notify-webhook module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Posts the pipeline result as JSON to a webhook when the pipeline ends.",
		Group:       "notify",
		Options: []module.Option{
			{Name: "url", Short: "u", Required: true, Help: "Webhook URL."},
			{Name: "method", Default: http.MethodPost, Help: "HTTP method."},
			{Name: "header", Short: "H", Kind: module.List, Help: "Extra request header as 'Name: value'. May be repeated."},
			{Name: "timeout", Default: "10s", Help: "Request timeout."},
		},
		New: func(base *module.Base) module.Module { return &webhook{Base: base} },
	})
}

type webhook struct {
	*module.Base
	client  *http.Client
	url     string
	method  string
	headers http.Header
}

func (m *webhook) Sanity(context.Context) error {
	if m.Option("url") == "" {
		// Reported by the required-option check.
		return nil
	}
	u, err := url.Parse(m.Option("url"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return failure.Config("invalid webhook url '%s'", m.Option("url"))
	}

	timeout, err := time.ParseDuration(m.Option("timeout"))
	if err != nil || timeout <= 0 {
		return failure.Config("invalid timeout '%s'", m.Option("timeout"))
	}

	headers := http.Header{}
	for _, h := range m.OptionList("header") {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return failure.Config("invalid header '%s', expected 'Name: value'", h)
		}
		headers.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	m.url = u.String()
	m.method = strings.ToUpper(m.Option("method"))
	m.headers = headers
	m.client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return nil
}

func (m *webhook) Execute(context.Context) error {
	m.Logger().Debug("Pipeline result will be posted on destroy", "url", m.url, "method", m.method)
	return nil
}

// Destroy posts the pipeline summary and closes idle connections.
func (m *webhook) Destroy(ctx context.Context, f *failure.Failure) error {
	if m.client == nil {
		return nil
	}
	defer m.client.CloseIdleConnections()

	summary := pipeline.Summarize(m.RunID(), f)
	m.Logger().Info("📣 Posting pipeline result", "result", summary.Result, "url", m.url)
	if err := m.post(ctx, summary); err != nil {
		return fmt.Errorf("failed to post pipeline result: %w", err)
	}
	return nil
}

func (m *webhook) post(ctx context.Context, summary pipeline.Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, m.method, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = m.headers.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	m.Logger().Debug("Received HTTP response", "status", resp.Status)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
