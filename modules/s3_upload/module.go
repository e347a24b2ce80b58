// Package s3_upload uploads pipeline artifacts, such as the schedule report,
// to pre-signed S3 URLs.
package s3_upload

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
)

const name = "s3-upload"

// Module registers the s3-upload module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Uploads files to pre-signed S3 URLs.",
		Group:       "report",
		Options: []module.Option{
			{Name: "upload", Short: "u", Kind: module.List, Required: true, Help: "Upload as PATH=PRESIGNED_URL. May be repeated."},
			{Name: "timeout", Default: "5m", Help: "Maximum duration of one upload."},
		},
		New: func(base *module.Base) module.Module { return &uploader{Base: base} },
	})
}

type upload struct {
	path string
	url  string
}

type uploader struct {
	*module.Base
	client  *http.Client
	uploads []upload
}

func (m *uploader) Sanity(context.Context) error {
	timeout, err := time.ParseDuration(m.Option("timeout"))
	if err != nil || timeout <= 0 {
		return failure.Config("invalid timeout '%s'", m.Option("timeout"))
	}
	m.client = &http.Client{Timeout: timeout}

	m.uploads = nil
	for _, spec := range m.OptionList("upload") {
		path, url, ok := strings.Cut(spec, "=")
		if !ok || path == "" || !strings.HasPrefix(url, "http") {
			return failure.Config("invalid upload '%s', expected PATH=PRESIGNED_URL", spec)
		}
		m.uploads = append(m.uploads, upload{path: path, url: url})
	}
	return nil
}

func (m *uploader) Execute(ctx context.Context) error {
	for _, u := range m.uploads {
		if err := m.put(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (m *uploader) Destroy(context.Context, *failure.Failure) error {
	if m.client != nil {
		m.client.CloseIdleConnections()
	}
	return nil
}

// put uploads one file to its pre-signed URL.
func (m *uploader) put(ctx context.Context, u upload) error {
	logger := ctxlog.FromContext(ctx).With("action", "upload")

	file, err := os.Open(u.path)
	if err != nil {
		return failure.Wrap(failure.KindConfig, err, "failed to open source file '%s'", u.path)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file stats for '%s': %w", u.path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.url, file)
	if err != nil {
		return failure.Wrap(failure.KindConfig, err, "failed to create S3 upload request")
	}

	contentType := mime.TypeByExtension(filepath.Ext(u.path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("☁️ Uploading file to S3", "source", u.path, "size", stat.Size(), "contentType", contentType)

	resp, err := m.client.Do(req)
	if err != nil {
		return failure.Wrap(failure.KindInfra, err, "failed to execute S3 upload request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure.Infra("S3 upload of '%s' failed with status: %s", u.path, resp.Status)
	}

	logger.Debug("Successfully uploaded file", "status", resp.Status)
	fmt.Fprintf(m.Out(), "Uploaded %s\n", u.path)
	return nil
}
