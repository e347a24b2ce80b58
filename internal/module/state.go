package module

import "fmt"

// State is the lifecycle position of a module instance.
type State int

const (
	Constructed State = iota
	OptionsLoaded
	ArgsParsed
	SanityChecked
	RequiredOptionsChecked
	Executing
	Executed
	Destroyed
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case OptionsLoaded:
		return "options-loaded"
	case ArgsParsed:
		return "args-parsed"
	case SanityChecked:
		return "sanity-checked"
	case RequiredOptionsChecked:
		return "required-options-checked"
	case Executing:
		return "executing"
	case Executed:
		return "executed"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
