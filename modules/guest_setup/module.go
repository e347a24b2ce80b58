package guest_setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

const name = "guest-setup"

// maxOutput is how much command output is kept in error messages.
const maxOutput = 2048

// Module registers the guest-setup module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Prepares provisioned guests by running a shell command for each of them.",
		Group:       "provision",
		Options: []module.Option{
			{Name: "command", Short: "c", Required: true, Help: "Shell command run once per guest. GUEST_NAME, GUEST_ARCH and GUEST_COMPOSE are set."},
			{Name: "timeout", Default: "10m", Help: "Maximum duration of one guest setup."},
		},
		Shared: []string{capabilities.SetupGuest.Name()},
		New:    func(base *module.Base) module.Module { return &guestSetup{Base: base} },
	})
}

type guestSetup struct {
	*module.Base
	timeout time.Duration
}

func (m *guestSetup) Sanity(context.Context) error {
	timeout, err := time.ParseDuration(m.Option("timeout"))
	if err != nil || timeout <= 0 {
		return failure.Config("invalid timeout '%s'", m.Option("timeout"))
	}
	m.timeout = timeout
	return nil
}

func (m *guestSetup) Execute(context.Context) error {
	m.Logger().Debug("Guest setup command configured", "command", m.Option("command"), "timeout", m.timeout)
	return nil
}

// setup runs the command for g. Guests are set up concurrently, so nothing
// here touches module state besides reading options.
func (m *guestSetup) setup(ctx context.Context, g schedule.Guest) error {
	logger := ctxlog.FromContext(ctx).With("guest", g.Name())
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	env := g.Environment()
	cmd := exec.CommandContext(ctx, "sh", "-c", m.Option("command"))
	cmd.Env = append(os.Environ(),
		"GUEST_NAME="+g.Name(),
		"GUEST_ARCH="+env.Arch,
		"GUEST_COMPOSE="+env.Compose,
	)

	cmd.WaitDelay = time.Second

	logger.Debug("Running guest setup command")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failure.Infra("setup of guest '%s' timed out after %s", g.Name(), m.timeout)
		}
		return failure.Wrap(failure.KindInfra, err, "setup of guest '%s' failed: %s", g.Name(), tail(out))
	}
	logger.Debug("Guest setup command finished", "output", tail(out))
	return nil
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutput {
		s = "..." + s[len(s)-maxOutput:]
	}
	if s == "" {
		return "<no output>"
	}
	return fmt.Sprintf("%q", s)
}

func (m *guestSetup) SharedFunctions() []registry.Binding {
	return []registry.Binding{capabilities.SetupGuest.Bind(m.setup)}
}
