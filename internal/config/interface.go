package config

import "context"

// Values maps option names to their raw string values. List values are
// joined with commas.
type Values map[string]string

// Source provides persisted configuration for a module.
type Source interface {
	// ModuleConfig returns the configuration stored for module. A module
	// without any configuration yields an empty map and no error.
	ModuleConfig(ctx context.Context, module string) (Values, error)
}
