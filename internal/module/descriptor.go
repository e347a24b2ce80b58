package module

import (
	"fmt"
	"sort"
	"sync"
)

// OptionKind is the value type of an option.
type OptionKind int

const (
	String OptionKind = iota
	Bool
	Int
	// List options may be repeated on the command line; values from files
	// and repetitions are joined with commas.
	List
)

// Option describes one module option.
type Option struct {
	Name     string
	Short    string
	Kind     OptionKind
	Default  string
	Required bool
	Help     string
}

// Descriptor is the static description of a module.
type Descriptor struct {
	Name        string
	Description string
	// Group is used to organize the module list, e.g. "provision" or "rules".
	Group   string
	Options []Option
	// Shared lists the shared functions the module publishes.
	Shared []string
	// Requires lists the shared functions the module expects to find.
	Requires []string
	// New builds the module around its Base. It must not perform I/O.
	New func(base *Base) Module
}

func (d *Descriptor) option(name string) (Option, bool) {
	for _, opt := range d.Options {
		if opt.Name == name {
			return opt, true
		}
	}
	return Option{}, false
}

func (d *Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("module descriptor has no name")
	}
	if d.New == nil {
		return fmt.Errorf("module '%s' has no constructor", d.Name)
	}
	seen := map[string]bool{"help": true}
	shorts := map[string]bool{"h": true}
	for _, opt := range d.Options {
		if opt.Name == "" {
			return fmt.Errorf("module '%s' has an option without a name", d.Name)
		}
		if seen[opt.Name] {
			return fmt.Errorf("module '%s' declares option '%s' twice or uses a reserved name", d.Name, opt.Name)
		}
		seen[opt.Name] = true
		if opt.Short != "" {
			if len(opt.Short) != 1 || shorts[opt.Short] {
				return fmt.Errorf("module '%s' option '%s' has an invalid short flag '%s'", d.Name, opt.Name, opt.Short)
			}
			shorts[opt.Short] = true
		}
	}
	return nil
}

// Catalog holds the descriptors of every module compiled into the binary.
type Catalog struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{descriptors: make(map[string]*Descriptor)}
}

// Register adds d. Names must be unique.
func (c *Catalog) Register(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.descriptors[d.Name]; exists {
		return fmt.Errorf("module '%s' already registered", d.Name)
	}
	c.descriptors[d.Name] = &d
	return nil
}

// MustRegister is Register that panics on error. Descriptors are static, so
// an error here is a programming mistake.
func (c *Catalog) MustRegister(d Descriptor) {
	if err := c.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under name.
func (c *Catalog) Lookup(name string) (*Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.descriptors[name]
	return d, ok
}

// Has reports whether a module called name is registered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Names returns all module names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.descriptors))
	for name := range c.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group is a named set of modules.
type Group struct {
	Name    string
	Modules []*Descriptor
}

// Groups returns modules organized by group, groups and modules sorted by
// name. Modules without a group are listed under "other".
func (c *Catalog) Groups() []Group {
	byGroup := make(map[string][]*Descriptor)
	for _, name := range c.Names() {
		d, _ := c.Lookup(name)
		group := d.Group
		if group == "" {
			group = "other"
		}
		byGroup[group] = append(byGroup[group], d)
	}

	groups := make([]Group, 0, len(byGroup))
	for name, mods := range byGroup {
		groups = append(groups, Group{Name: name, Modules: mods})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
