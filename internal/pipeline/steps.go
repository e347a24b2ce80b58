package pipeline

import (
	"fmt"
	"strings"
)

// Step is one module of the pipeline together with its own arguments.
type Step struct {
	Module string
	Args   []string
}

func (s Step) String() string {
	if len(s.Args) == 0 {
		return s.Module
	}
	return s.Module + " " + strings.Join(s.Args, " ")
}

// SplitSteps partitions args at every word that isModule recognizes. Words
// before the first module name are an error, as are empty pipelines.
func SplitSteps(args []string, isModule func(string) bool) ([]Step, error) {
	var steps []Step
	for _, arg := range args {
		if isModule(arg) {
			steps = append(steps, Step{Module: arg, Args: []string{}})
			continue
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("unknown module '%s'", arg)
		}
		last := &steps[len(steps)-1]
		last.Args = append(last.Args, arg)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no module specified, use --list to list available modules")
	}
	return steps, nil
}

// CommandLine renders steps back into the arguments that recreate them.
func CommandLine(steps []Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " ")
}
