package schedule

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/cipipe/internal/failure"
)

// Any is the wildcard value of an environment property: a provisioner may
// pick whatever it likes.
const Any = "ANY"

// Environment describes what a test run needs from its guest.
type Environment struct {
	// Arch is the architecture the guest must run, e.g. "x86_64".
	Arch string `yaml:"arch" json:"arch"`
	// Compose identifies the distribution, image or tree to install.
	Compose string `yaml:"compose" json:"compose"`
}

// String serializes the environment as "arch=...,compose=...".
func (e Environment) String() string {
	return fmt.Sprintf("arch=%s,compose=%s", e.Arch, e.Compose)
}

// Satisfies reports whether e meets the requirement req. Empty or Any
// properties of req match everything.
func (e Environment) Satisfies(req Environment) bool {
	return propertyMatches(req.Arch, e.Arch) && propertyMatches(req.Compose, e.Compose)
}

func propertyMatches(want, have string) bool {
	return want == "" || want == Any || have == Any || want == have
}

// ParseEnvironment is the inverse of Environment.String. Whitespace around
// keys and values is ignored; unknown properties are an error.
func ParseEnvironment(s string) (Environment, error) {
	var env Environment
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Environment{}, failure.Config("invalid testing environment property '%s', expected key=value", part)
		}
		switch strings.TrimSpace(key) {
		case "arch":
			env.Arch = strings.TrimSpace(value)
		case "compose":
			env.Compose = strings.TrimSpace(value)
		default:
			return Environment{}, failure.Config("testing environment does not have property '%s'", strings.TrimSpace(key))
		}
	}
	return env, nil
}
