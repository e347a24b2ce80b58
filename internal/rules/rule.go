package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Rule is a single boolean-ish expression evaluated against a caller-supplied
// context. The compiled program is built on first use and reused afterwards.
type Rule struct {
	source string

	once     sync.Once
	program  *vm.Program
	names    []string
	guarded  map[string]struct{}
	err      error
	compiles int
}

// New returns an uncompiled rule for source.
func New(source string) *Rule {
	return &Rule{source: source}
}

// String returns the rule source.
func (r *Rule) String() string { return r.source }

// Compile validates and compiles the rule. It is safe to call repeatedly and
// concurrently; the work, and any error, happens once.
func (r *Rule) Compile() error {
	r.once.Do(func() {
		r.compiles++
		r.program, r.names, r.guarded, r.err = compile(r.source)
	})
	return r.err
}

// Variables returns the context names the rule refers to, sorted.
func (r *Rule) Variables() ([]string, error) {
	if err := r.Compile(); err != nil {
		return nil, err
	}
	return append([]string(nil), r.names...), nil
}

// Evaluate runs the rule with vars as its only namespace and returns the
// resulting value. Every name the rule refers to must be in vars, including
// names in branches that never run, unless an EXISTS call guards it:
// "A or B" fails without B even when A is true.
func (r *Rule) Evaluate(vars map[string]any) (any, error) {
	if err := r.Compile(); err != nil {
		return nil, err
	}

	for _, name := range r.names {
		if _, ok := vars[name]; ok {
			continue
		}
		if _, ok := r.guarded[name]; !ok {
			return nil, &UnknownVariableError{Source: r.source, Name: name}
		}
	}

	env := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		env[k] = v
	}
	if _, ok := env[predicateExists]; !ok {
		env[predicateExists] = func(name string) bool {
			_, ok := vars[name]
			return ok
		}
	}

	out, err := expr.Run(r.program, env)
	if err != nil {
		return nil, &EvaluationError{Source: r.source, Err: err}
	}
	return out, nil
}

// EvaluateBool runs the rule and reports the truthiness of its result: nil,
// false, zero numbers and empty strings or collections are false.
func (r *Rule) EvaluateBool(vars map[string]any) (bool, error) {
	out, err := r.Evaluate(vars)
	if err != nil {
		return false, err
	}
	return Truthy(out), nil
}

func compile(source string) (*vm.Program, []string, map[string]struct{}, error) {
	normalized := normalize(source)

	tree, err := parser.Parse(normalized)
	if err != nil {
		return nil, nil, nil, &SyntaxError{Source: source, Err: err}
	}

	v := &validator{source: source, names: make(map[string]struct{}), guarded: make(map[string]struct{})}
	if err := v.walk(tree.Node); err != nil {
		return nil, nil, nil, err
	}

	program, err := expr.Compile(normalized,
		expr.Patch(predicatePatcher{}),
		expr.Function(predicateMatch, regexPredicate(true)),
		expr.Function(predicateSearch, regexPredicate(false)),
	)
	if err != nil {
		return nil, nil, nil, &SyntaxError{Source: source, Err: err}
	}

	names := make([]string, 0, len(v.names))
	for name := range v.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return program, names, v.guarded, nil
}

// regexPredicate implements match (anchored) and search (unanchored). Both
// take (value, pattern[, caseInsensitive]) and are case-insensitive unless
// the third argument is false.
func regexPredicate(anchored bool) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) < 2 || len(params) > 3 {
			return nil, fmt.Errorf("expected 1 or 2 arguments, got %d", len(params)-1)
		}
		if params[0] == nil {
			return false, nil
		}
		value := fmt.Sprint(params[0])

		pattern, ok := params[1].(string)
		if !ok {
			return nil, fmt.Errorf("pattern must be a string, got %T", params[1])
		}

		caseInsensitive := true
		if len(params) == 3 {
			b, ok := params[2].(bool)
			if !ok {
				return nil, fmt.Errorf("case-insensitivity flag must be a bool, got %T", params[2])
			}
			caseInsensitive = b
		}

		if anchored {
			pattern = `\A(?:` + pattern + `)`
		}
		if caseInsensitive {
			pattern = `(?i)` + pattern
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return re.MatchString(value), nil
	}
}

// Truthy reports whether v counts as true in a rule context.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
