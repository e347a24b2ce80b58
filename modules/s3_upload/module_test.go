package s3_upload

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/testutil"
)

func TestUploader_Execute(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	report := testutil.WriteFile(t, dir, "report.yaml", "result: PASSED\n")

	var gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	h := testutil.NewHarness(t)

	// --- Act ---
	inst, err := h.Execute(t, &Module{}, name, "--upload", report+"="+srv.URL+"/bucket/report.yaml?X-Amz-Signature=abc")

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, gotBody, "result: PASSED")
	assert.NotEmpty(t, gotType)
	assert.Contains(t, h.Out.String(), "Uploaded "+report)
	require.NoError(t, inst.Destroy(h.Context(), nil))
}

func TestUploader_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := testutil.WriteFile(t, dir, "report.yaml", "result: PASSED\n")
	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(denied.Close)

	testCases := []struct {
		name      string
		args      []string
		wantKind  failure.Kind
		wantError string
	}{
		{name: "malformed upload", args: []string{"--upload", "report.yaml"}, wantKind: failure.KindConfig, wantError: "expected PATH=PRESIGNED_URL"},
		{name: "missing file", args: []string{"--upload", dir + "/nope.yaml=" + denied.URL}, wantKind: failure.KindConfig, wantError: "failed to open source file"},
		{name: "rejected", args: []string{"--upload", report + "=" + denied.URL}, wantKind: failure.KindInfra, wantError: "403 Forbidden"},
		{name: "missing option", args: nil, wantKind: failure.KindConfig, wantError: "Missing required 'upload' option"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := testutil.NewHarness(t)

			_, err := h.Execute(t, &Module{}, name, tc.args...)

			require.Error(t, err)
			assert.Equal(t, tc.wantKind, failure.KindOf(err))
			assert.Contains(t, err.Error(), tc.wantError)
		})
	}
}
