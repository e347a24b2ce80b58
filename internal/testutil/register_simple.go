package testutil

import "github.com/specialistvlad/cipipe/internal/module"

// SimpleModule registers the descriptors it holds. It lets tests put ad hoc
// modules into a catalog.
type SimpleModule struct {
	Descriptors []module.Descriptor
}

// Register implements the module.Registrar interface.
func (m *SimpleModule) Register(c *module.Catalog) {
	for _, d := range m.Descriptors {
		c.MustRegister(d)
	}
}
