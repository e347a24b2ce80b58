package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnindent(t *testing.T) {
	t.Parallel()

	got := Unindent(`
		- arch: x86_64
		  compose: Fedora-33
		- arch: s390x
	`)

	assert.Equal(t, "- arch: x86_64\n  compose: Fedora-33\n- arch: s390x", got)
}
