package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cipipe/internal/failure"
)

func TestLoadInstructions(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "instructions.yaml")
	content := `
- rule: ARCH == 'x86_64'
  log: intel
- rule: true
  log: always
- log: no rule
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// --- Act ---
	instructions, err := LoadInstructions(path)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, instructions, 3)
	assert.Equal(t, "ARCH == 'x86_64'", instructions[0][RuleKey])
	assert.Equal(t, "intel", instructions[0]["log"])
	assert.Equal(t, true, instructions[1][RuleKey])
	assert.NotContains(t, instructions[2], RuleKey)
}

func TestParseInstructions_Invalid(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"not a list":   "rule: x",
		"empty item":   "- \n",
		"numeric rule": "- rule: 42\n  log: x\n",
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseInstructions([]byte(content))
			require.Error(t, err)
			assert.Equal(t, failure.KindConfig, failure.KindOf(err))
		})
	}
}

func TestLoadInstructions_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadInstructions(filepath.Join(t.TempDir(), "absent.yaml"))

	require.ErrorIs(t, err, os.ErrNotExist)
}
